package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/ble"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Protocol.CommandTimeout != 5*time.Second || cfg.Protocol.Retries != 2 {
		t.Errorf("protocol defaults = %+v", cfg.Protocol)
	}
	if cfg.Device.WriteUUID != ble.WriteCharUUID || len(cfg.Device.NamePrefixes) != len(ble.NamePrefixes) {
		t.Errorf("device defaults = %+v", cfg.Device)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
store_dir: /tmp/dives
log_level: debug
device:
  address: "C8:5C:A2:01:02:03"
  scan_timeout: 30s
protocol:
  retries: 5
download:
  set_clock: true
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreDir != "/tmp/dives" || cfg.LogLevel != "debug" {
		t.Errorf("top level = %q, %q", cfg.StoreDir, cfg.LogLevel)
	}
	if cfg.Device.Address != "C8:5C:A2:01:02:03" || cfg.Device.ScanTimeout != 30*time.Second {
		t.Errorf("device = %+v", cfg.Device)
	}
	// Unset fields keep their defaults.
	if cfg.Device.NotifyUUID != ble.NotifyCharUUID || cfg.Protocol.CommandTimeout != 5*time.Second {
		t.Errorf("defaults lost: %+v %+v", cfg.Device, cfg.Protocol)
	}
	if cfg.Protocol.Retries != 5 || !cfg.Download.SetClock || !cfg.Download.SaveRaw {
		t.Errorf("protocol/download = %+v %+v", cfg.Protocol, cfg.Download)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "device: [", "failed to parse"},
		{"negative retries", "protocol:\n  retries: -1\n", "retries"},
		{"zero timeout", "protocol:\n  command_timeout: 0s\n", "command_timeout"},
		{"no way to find device", "device:\n  name_prefixes: []\n", "name_prefixes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.StoreDir = "/data/dives"
	cfg.Protocol.Retries = 4

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.StoreDir != cfg.StoreDir || got.Protocol != cfg.Protocol {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/etc/geniusdl.yaml")
	if p, err := GetConfigPath(); err != nil || p != "/etc/geniusdl.yaml" {
		t.Errorf("GetConfigPath() = %q, %v", p, err)
	}

	t.Setenv(ConfigEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	p, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error: %v", err)
	}
	if !strings.HasSuffix(p, filepath.Join("geniusdl", "config.yaml")) {
		t.Errorf("GetConfigPath() = %q", p)
	}
}

func TestResolveStoreDir(t *testing.T) {
	cfg := Default()
	cfg.StoreDir = "/srv/dives"
	if dir, _ := cfg.ResolveStoreDir(); dir != "/srv/dives" {
		t.Errorf("ResolveStoreDir() = %q", dir)
	}

	cfg.StoreDir = ""
	dir, err := cfg.ResolveStoreDir()
	if err != nil {
		t.Fatalf("ResolveStoreDir() error: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".geniusdl", "store")) {
		t.Errorf("ResolveStoreDir() = %q", dir)
	}
}

func TestWrite(t *testing.T) {
	var b strings.Builder
	if err := Write(&b, Default()); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	for _, want := range []string{"command_timeout: 5s", "retries: 2", "save_raw: true", ble.WriteCharUUID} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("output is missing %q:\n%s", want, b.String())
		}
	}
}
