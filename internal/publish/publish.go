// Package publish sends measurement readings to Redis.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the pub/sub channel readings go to.
const DefaultChannel = "instrument:readings"

// historyLen is how many readings are kept per port.
const historyLen = 1000

// Reading is one measured value.
type Reading struct {
	Port      string    `json:"port"`
	Identity  string    `json:"identity"`
	Quantity  string    `json:"quantity"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Config selects the Redis server and channel.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// Publisher publishes readings and keeps a capped history list per port.
type Publisher struct {
	client  client
	channel string
	log     logrus.FieldLogger
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Publisher, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log.WithField("addr", cfg.Addr).Info("connected to redis")
	return newPublisher(rc, cfg.Channel, log), nil
}

func newPublisher(c client, channel string, log logrus.FieldLogger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: c, channel: channel, log: log}
}

// HistoryKey is the list holding the latest readings for port.
func HistoryKey(port string) string {
	return fmt.Sprintf("instrument:%s:readings", strings.TrimPrefix(port, "/dev/"))
}

// Publish sends r to the channel and prepends it to the port's history.
// Only a failed publish is returned; history failures are logged.
func (p *Publisher) Publish(ctx context.Context, r Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	key := HistoryKey(r.Port)
	if err := p.client.LPush(ctx, key, data).Err(); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("save reading history")
		return nil
	}
	if err := p.client.LTrim(ctx, key, 0, historyLen-1).Err(); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("trim reading history")
	}
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
