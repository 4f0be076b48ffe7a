// Package metrics exports instrument traffic as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	instrument "github.com/allbin/go-instrument"
)

// Collector implements instrument.Observer. Its collectors live on a
// private registry so several collectors can exist in one process.
type Collector struct {
	registry      *prometheus.Registry
	commands      *prometheus.CounterVec
	bytesRead     *prometheus.CounterVec
	deviceErrors  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

var _ instrument.Observer = (*Collector)(nil)

// New creates a Collector with its metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrument_commands_total",
			Help: "Command lines written to instruments.",
		}, []string{"port"}),
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrument_bytes_read_total",
			Help: "Response bytes read from instruments.",
		}, []string{"port"}),
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrument_device_errors_total",
			Help: "Errors instruments reported in their error queue.",
		}, []string{"port"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "instrument_query_duration_seconds",
			Help: "Time from writing a query to reading its response.",
			// Each exchange costs two inter-op delays, 1s with defaults.
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}, []string{"port"}),
	}

	c.registry.MustRegister(c.commands, c.bytesRead, c.deviceErrors, c.queryDuration)
	return c
}

// CommandWritten counts a command line.
func (c *Collector) CommandWritten(port, _ string) {
	c.commands.WithLabelValues(port).Inc()
}

// ResponseRead counts response bytes.
func (c *Collector) ResponseRead(port string, n int) {
	c.bytesRead.WithLabelValues(port).Add(float64(n))
}

// QueryCompleted records how long a query took.
func (c *Collector) QueryCompleted(port string, elapsed time.Duration) {
	c.queryDuration.WithLabelValues(port).Observe(elapsed.Seconds())
}

// DeviceError counts an error queue entry.
func (c *Collector) DeviceError(port, _, _ string) {
	c.deviceErrors.WithLabelValues(port).Inc()
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves /metrics and /health.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
