// Package conf loads the sensorbridge YAML configuration and watches it for
// live changes.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BridgeConf holds service-level configuration parameters.
type BridgeConf struct {
	// --- Identity ---
	Name string `yaml:"name"`

	// --- Listener ---
	Host string `yaml:"host"` // Bind address (empty = all interfaces)
	Port int    `yaml:"port"`

	// --- Gate and queues ---
	PressureThreshold float64 `yaml:"pressure_threshold"`
	QueueCapacity     int     `yaml:"queue_capacity"`

	// --- Per-connection limits ---
	MaxFrameBytes int64   `yaml:"max_frame_bytes"`
	ReadTimeout   int     `yaml:"read_timeout"` // Seconds without a frame before disconnect, 0 = never
	FrameRate     float64 `yaml:"frame_rate"`   // Frames per second per controller, 0 = unlimited
	FrameBurst    int     `yaml:"frame_burst"`

	// --- Upgrade policy ---
	UpgradeRate    int      `yaml:"upgrade_rate"` // Upgrade attempts per minute per IP, 0 = unlimited
	AllowedOrigins []string `yaml:"allowed_origins"`

	// --- Settings persistence ---
	SettingsDB string `yaml:"settings_db"` // bbolt file for operator settings, empty = none

	// --- Reference consumer ---
	TickRate int `yaml:"tick_rate"` // Ticks per second for the logging consumer, 0 = off

	// --- Admin API ---
	AdminEnabled      bool   `yaml:"admin_enabled"`
	AdminPasswordHash string `yaml:"admin_password_hash"` // bcrypt hash; empty leaves the API open
	JWTSecret         string `yaml:"jwt_secret"`          // Generated per run if empty
	JWTExpiry         int    `yaml:"jwt_expiry"`          // Seconds

	Verbose bool `yaml:"verbose"`
}

// DefaultBridgeConf returns a BridgeConf with the stock defaults.
func DefaultBridgeConf() *BridgeConf {
	return &BridgeConf{
		Name:              "sensorbridge",
		Port:              3030,
		PressureThreshold: 200,
		QueueCapacity:     50,
		MaxFrameBytes:     4096,
		UpgradeRate:       60,
		AdminEnabled:      true,
		JWTExpiry:         86400,
	}
}

// LoadBridgeConf reads a YAML file over the defaults.
func LoadBridgeConf(path string) (*BridgeConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	bc := DefaultBridgeConf()
	if err := yaml.Unmarshal(data, bc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	// Relative settings_db paths are relative to the config file.
	if bc.SettingsDB != "" && !filepath.IsAbs(bc.SettingsDB) {
		bc.SettingsDB = filepath.Join(filepath.Dir(path), bc.SettingsDB)
	}

	if err := bc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bc, nil
}

// Validate rejects values the service cannot run with.
func (bc *BridgeConf) Validate() error {
	if bc.Port < 0 || bc.Port > 65535 {
		return fmt.Errorf("port %d out of range", bc.Port)
	}
	if bc.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", bc.QueueCapacity)
	}
	if bc.PressureThreshold < 0 {
		return fmt.Errorf("pressure_threshold must not be negative, got %v", bc.PressureThreshold)
	}
	if bc.FrameRate < 0 || bc.FrameBurst < 0 || bc.UpgradeRate < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if bc.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative, got %d", bc.ReadTimeout)
	}
	return nil
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (bc *BridgeConf) ReadTimeoutDuration() time.Duration {
	return time.Duration(bc.ReadTimeout) * time.Second
}
