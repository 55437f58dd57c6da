package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	bc := DefaultBridgeConf()
	if bc.Port != 3030 || bc.QueueCapacity != 50 || bc.PressureThreshold != 200 {
		t.Errorf("unexpected defaults: %+v", bc)
	}
	if err := bc.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadBridgeConfOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	writeFile(t, path, `
name: arcade-cabinet
port: 4040
pressure_threshold: 450
frame_rate: 30
frame_burst: 5
allowed_origins: ["http://cabinet.local"]
settings_db: data/settings.db
read_timeout: 15
`)

	bc, err := LoadBridgeConf(path)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Name != "arcade-cabinet" || bc.Port != 4040 || bc.PressureThreshold != 450 {
		t.Errorf("overrides not applied: %+v", bc)
	}
	if bc.QueueCapacity != 50 {
		t.Errorf("unset field lost its default: queue_capacity = %d", bc.QueueCapacity)
	}
	if bc.FrameRate != 30 || bc.FrameBurst != 5 || len(bc.AllowedOrigins) != 1 {
		t.Errorf("limits not loaded: %+v", bc)
	}
	if want := filepath.Join(dir, "data", "settings.db"); bc.SettingsDB != want {
		t.Errorf("settings_db = %q, want %q", bc.SettingsDB, want)
	}
	if bc.ReadTimeoutDuration() != 15*time.Second {
		t.Errorf("ReadTimeoutDuration() = %v", bc.ReadTimeoutDuration())
	}
}

func TestLoadBridgeConfRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":           "port: [",
		"port out of range":  "port: 70000",
		"zero capacity":      "queue_capacity: 0",
		"negative threshold": "pressure_threshold: -1",
		"negative rate":      "frame_rate: -2",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bridge.yaml")
			writeFile(t, path, content)
			if _, err := LoadBridgeConf(path); err == nil {
				t.Errorf("LoadBridgeConf accepted %q", content)
			}
		})
	}
}

func TestLoadBridgeConfMissingFile(t *testing.T) {
	_, err := LoadBridgeConf(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading") {
		t.Fatalf("err = %v, want a read error", err)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	writeFile(t, path, "pressure_threshold: 200\n")

	changes := make(chan *BridgeConf, 8)
	w, err := Watch(path, func(bc *BridgeConf) { changes <- bc })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "pressure_threshold: 999\n")
	writeFile(t, path, "pressure_threshold: 650\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case bc := <-changes:
			if bc.PressureThreshold == 999 {
				t.Fatal("reloaded from the wrong file")
			}
			if bc.PressureThreshold == 650 {
				return
			}
		case <-deadline:
			t.Fatal("no reload after writing the config file")
		}
	}
}
