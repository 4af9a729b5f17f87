package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitaminmoo/geniusdl/internal/ble"
)

const (
	appName    = "geniusdl"
	configFile = "config.yaml"

	// ConfigEnvVar overrides the config file location.
	ConfigEnvVar = "GENIUSDL_CONFIG"
)

// Config is the on-disk configuration.
type Config struct {
	StoreDir string         `yaml:"store_dir"`
	LogLevel string         `yaml:"log_level"`
	Device   DeviceConfig   `yaml:"device"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Download DownloadConfig `yaml:"download"`
}

// DeviceConfig selects and connects to the dive computer.
type DeviceConfig struct {
	// Address pins a specific device; empty means first match by name.
	Address      string        `yaml:"address"`
	NamePrefixes []string      `yaml:"name_prefixes"`
	WriteUUID    string        `yaml:"write_uuid"`
	NotifyUUID   string        `yaml:"notify_uuid"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
}

// ProtocolConfig tunes the transfer engine.
type ProtocolConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// Retries is how many times a failed object read is repeated.
	Retries int `yaml:"retries"`
}

// DownloadConfig controls dive downloads.
type DownloadConfig struct {
	SetClock bool `yaml:"set_clock"`
	// SaveRaw keeps the raw header and profile objects in the store.
	SaveRaw bool `yaml:"save_raw"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			NamePrefixes: append([]string(nil), ble.NamePrefixes...),
			WriteUUID:    ble.WriteCharUUID,
			NotifyUUID:   ble.NotifyCharUUID,
			ScanTimeout:  15 * time.Second,
		},
		Protocol: ProtocolConfig{
			CommandTimeout: 5 * time.Second,
			Retries:        2,
		},
		Download: DownloadConfig{
			SetClock: false,
			SaveRaw:  true,
		},
	}
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/geniusdl or $HOME/.config/geniusdl
//   - macOS: $HOME/.config/geniusdl
//   - Windows: %LOCALAPPDATA%\geniusdl
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the config file path, honouring GENIUSDL_CONFIG.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file at path. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the config from GetConfigPath.
func LoadDefault() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes cfg to path, creating the directory with user-only permissions.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Protocol.CommandTimeout <= 0 {
		return fmt.Errorf("protocol.command_timeout must be positive")
	}
	if c.Protocol.Retries < 0 {
		return fmt.Errorf("protocol.retries must not be negative")
	}
	if c.Device.WriteUUID == "" || c.Device.NotifyUUID == "" {
		return fmt.Errorf("device.write_uuid and device.notify_uuid are required")
	}
	if len(c.Device.NamePrefixes) == 0 && c.Device.Address == "" {
		return fmt.Errorf("device.name_prefixes or device.address is required")
	}
	return nil
}

// ResolveStoreDir returns StoreDir, defaulting to ~/.geniusdl/store.
func (c *Config) ResolveStoreDir() (string, error) {
	if c.StoreDir != "" {
		return c.StoreDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".geniusdl", "store"), nil
}
