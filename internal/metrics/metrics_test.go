package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := New()

	c.CommandWritten("/dev/ttyUSB0", "*IDN?")
	c.CommandWritten("/dev/ttyUSB0", ":SYST:ERR?")
	c.CommandWritten("/dev/ttyUSB1", "*RST")
	c.ResponseRead("/dev/ttyUSB0", 35)
	c.DeviceError("/dev/ttyUSB0", "BOGUS", `-113,"Undefined header"`)
	c.QueryCompleted("/dev/ttyUSB0", 1200*time.Millisecond)

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"commands ttyUSB0", testutil.ToFloat64(c.commands.WithLabelValues("/dev/ttyUSB0")), 2},
		{"commands ttyUSB1", testutil.ToFloat64(c.commands.WithLabelValues("/dev/ttyUSB1")), 1},
		{"bytes", testutil.ToFloat64(c.bytesRead.WithLabelValues("/dev/ttyUSB0")), 35},
		{"device errors", testutil.ToFloat64(c.deviceErrors.WithLabelValues("/dev/ttyUSB0")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.expected)
		}
	}

	if n := testutil.CollectAndCount(c.queryDuration); n != 1 {
		t.Errorf("Expected 1 query duration series, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	c := New()
	c.CommandWritten("/dev/ttyUSB0", "*IDN?")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `instrument_commands_total{port="/dev/ttyUSB0"} 1`) {
		t.Errorf("Expected commands counter in output, got:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected /health 200, got %d", resp.StatusCode)
	}
}

func TestCollectorsArePrivate(t *testing.T) {
	a, b := New(), New()
	a.CommandWritten("p", "x")
	if got := testutil.ToFloat64(b.commands.WithLabelValues("p")); got != 0 {
		t.Errorf("Expected separate collectors, got %v", got)
	}
}
