package cmd

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allbin/go-instrument/internal/publish"
	"github.com/allbin/go-instrument/serial"
	"github.com/spf13/viper"
)

// setConfig overrides viper keys for the duration of a test.
func setConfig(t *testing.T, kv map[string]interface{}) {
	t.Helper()
	for k, v := range kv {
		viper.Set(k, v)
	}
	t.Cleanup(func() {
		for k := range kv {
			viper.Set(k, nil)
		}
	})
}

func TestUnescapeTerminator(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`\r\n`, "\r\n", false},
		{`\n`, "\n", false},
		{`;`, ";", false},
		{``, "", false},
		{`\x`, "", true},
	}

	for _, tt := range tests {
		got, err := unescapeTerminator(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("unescapeTerminator(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("unescapeTerminator(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestSerialOptions(t *testing.T) {
	setConfig(t, map[string]interface{}{
		"serial.baud":      19200,
		"serial.parity":    "even",
		"serial.stop-bits": 2,
		"serial.data-bits": 7,
	})

	opts, err := serialOptions()
	if err != nil {
		t.Fatalf("serialOptions failed: %v", err)
	}
	config := serial.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			t.Fatalf("option failed: %v", err)
		}
	}
	if got := config.String(); got != "19200 7E2" {
		t.Errorf("Expected framing 19200 7E2, got %q", got)
	}
}

func TestHandleOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		kv   map[string]interface{}
	}{
		{"bad parity", map[string]interface{}{"serial.parity": "sideways"}},
		{"bad terminator", map[string]interface{}{"terminator": `\q`}},
		{"missing registry", map[string]interface{}{"registry": filepath.Join(t.TempDir(), "nope.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setConfig(t, tt.kv)
			if _, err := handleOptions(); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestHandleOptionsDefaults(t *testing.T) {
	opts, err := handleOptions()
	if err != nil {
		t.Fatalf("handleOptions failed: %v", err)
	}
	if len(opts) == 0 {
		t.Error("Expected options, got none")
	}
}

func TestModelFraming(t *testing.T) {
	f, err := modelFraming("HEWLETT-PACKARD,34401A,0,11-5-2")
	if err != nil {
		t.Fatalf("modelFraming failed: %v", err)
	}
	if got := f.String(); got != "9600 8N1" {
		t.Errorf("Expected framing 9600 8N1, got %q", got)
	}
	if f.Terminator != "\r\n" {
		t.Errorf("Expected CRLF terminator, got %q", f.Terminator)
	}

	for _, model := range []string{"ACME,NOPE,0,1.0", "HEWLETT-PACKARD,33120A,0,10.0-5.0-1.0"} {
		if _, err := modelFraming(model); err == nil {
			t.Errorf("modelFraming(%q): expected error, got nil", model)
		}
	}
}

func TestHandleOptionsModel(t *testing.T) {
	base, err := handleOptions()
	if err != nil {
		t.Fatalf("handleOptions failed: %v", err)
	}

	setConfig(t, map[string]interface{}{"model": "HEWLETT-PACKARD,34401A,0,11-5-2"})
	opts, err := handleOptions()
	if err != nil {
		t.Fatalf("handleOptions failed: %v", err)
	}
	if len(opts) != len(base)+1 {
		t.Errorf("Expected %d options with --model, got %d", len(base)+1, len(opts))
	}

	viper.Set("model", "ACME,NOPE,0,1.0")
	if _, err := handleOptions(); err == nil {
		t.Error("Expected error for unknown model, got nil")
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := loadRegistry()
	if err != nil {
		t.Fatalf("loadRegistry failed: %v", err)
	}
	if got := reg.Lookup("HEWLETT-PACKARD,34401A,0,11-5-2"); got.String() != "multimeter" {
		t.Errorf("Expected built-in multimeter, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "registry.yaml")
	data := "signatures:\n  - identity: \"ACME,DMM1,0,1.0\"\n    category: dmm\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	setConfig(t, map[string]interface{}{"registry": path})

	reg, err = loadRegistry()
	if err != nil {
		t.Fatalf("loadRegistry failed: %v", err)
	}
	if got := reg.Lookup("ACME,DMM1,0,1.0"); got.String() != "multimeter" {
		t.Errorf("Expected custom multimeter, got %v", got)
	}
}

func TestReadCommands(t *testing.T) {
	in := "# setup\n:conf:volt:dc 10,0.001\n\n  read?  \r\n"
	got, err := readCommands(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readCommands failed: %v", err)
	}
	want := []string{":conf:volt:dc 10,0.001", "read?"}
	if len(got) != len(want) {
		t.Fatalf("readCommands = %q, expected %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	sink := csvSink(csv.NewWriter(&buf))

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := sink(publish.Reading{
		Port:      "/dev/ttyUSB0",
		Quantity:  "volt",
		Unit:      "V",
		Value:     1.5,
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("sink failed: %v", err)
	}

	want := "2025-03-01T12:00:00Z,/dev/ttyUSB0,volt,1.5,V\n"
	if buf.String() != want {
		t.Errorf("Expected row %q, got %q", want, buf.String())
	}
}

func TestUSBID(t *testing.T) {
	tests := []struct {
		info serial.PortInfo
		want string
	}{
		{serial.PortInfo{IsUSB: true, VendorID: "0403", ProductID: "6001"}, "0403:6001"},
		{serial.PortInfo{IsUSB: true, VendorID: "067B", ProductID: "2303"}, "067b:2303"},
		{serial.PortInfo{IsUSB: false}, "-"},
		{serial.PortInfo{IsUSB: true}, "-"},
	}

	for _, tt := range tests {
		if got := usbID(&tt.info); got != tt.want {
			t.Errorf("usbID(%+v) = %q, expected %q", tt.info, got, tt.want)
		}
	}
}

func TestQuantityUnits(t *testing.T) {
	if quantityUnits["volt"] != "V" || quantityUnits["curr"] != "A" {
		t.Errorf("unexpected units %v", quantityUnits)
	}
	if _, ok := quantityUnits["ohm"]; ok {
		t.Error("Expected ohm to be unsupported")
	}
}

func TestFilterPortsAll(t *testing.T) {
	ports := []string{"/dev/ttyUSB0", "/dev/ttyS0"}
	for _, f := range []string{"", "all"} {
		if got := filterPorts(ports, f); len(got) != 2 {
			t.Errorf("filterPorts(%q) = %v, expected all ports", f, got)
		}
	}
}

func TestRenderScanTable(t *testing.T) {
	out := renderScanTable([]scanResult{
		{port: "/dev/ttyUSB0", identity: "HEWLETT-PACKARD,34401A,0,11-5-2"},
		{port: "/dev/ttyUSB1", err: errors.New("boom")},
	}, false)

	for _, want := range []string{"Port", "Identity", "/dev/ttyUSB0", "34401A", "/dev/ttyUSB1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Category") {
		t.Error("Expected no category column without classify")
	}
}
