package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LoveWonYoung/egsdiag/driver"
)

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egsdiag.yaml")
	doc := `
adapter:
  type: passthru
  name: "Macchina A0"
kwp:
  read_timeout: 1s
reconnect:
  attempts: 2
passthru:
  - name: "Macchina A0"
    vendor: "Macchina"
    library: "/usr/lib/libmacchina.so"
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KWP.ReadTimeout != time.Second || cfg.KWP.WriteTimeout != 2500*time.Millisecond {
		t.Errorf("timeouts %v %v", cfg.KWP.ReadTimeout, cfg.KWP.WriteTimeout)
	}
	if cfg.KWP.SendID != 0x7E1 || cfg.Adapter.BaudRate != 921600 {
		t.Errorf("defaults lost: %+v", cfg)
	}

	dc, err := cfg.Diag()
	if err != nil {
		t.Fatal(err)
	}
	if dc.Type != driver.AdapterPassthru || dc.ReconnectAttempts != 2 || len(dc.Scan.PassthruLibraries) != 1 {
		t.Errorf("diag config %+v", dc)
	}
	if dc.KWP.ReadTimeout != time.Second || dc.KWP.IsoTP.CANSpeed != 500000 {
		t.Errorf("kwp options %+v", dc.KWP)
	}
	if cfg.HardwareInfo().Name != "Macchina A0" {
		t.Errorf("info %v", cfg.HardwareInfo())
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Adapter.Type != "usb" {
		t.Errorf("type %q", cfg.Adapter.Type)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"adapter":  "adapter:\n  type: bluetooth\n",
		"ids":      "kwp:\n  send_id: 0x7E9\n",
		"timeout":  "kwp:\n  read_timeout: -1s\n",
		"not yaml": "adapter: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			os.WriteFile(path, []byte(doc), 0644)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Adapter.Type = "socketcan"
	cfg.Adapter.Interface = "can0"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Adapter.Interface != "can0" || got.HardwareInfo().Name != "can0" {
		t.Errorf("got %+v", got.Adapter)
	}
	if got.Reconnect.Delay != 1500*time.Millisecond {
		t.Errorf("delay %v", got.Reconnect.Delay)
	}
}
