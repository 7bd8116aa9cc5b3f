package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.CheckInterval != 60*time.Second || cfg.FollowUpDelay != 10*time.Second {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.Windows.MedicineFloor != 60*time.Second || cfg.Windows.Notification != 5*time.Second {
		t.Fatalf("unexpected window defaults: %+v", cfg.Windows)
	}
	if cfg.RPCURL() != "ws://127.0.0.1:7789/rpc" {
		t.Fatalf("unexpected rpc url: %s", cfg.RPCURL())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MEDREMIND_DATA_DIR", "/var/lib/medremind")
	cfg, err := Load(afero.NewMemMapFs(), "/etc/medremind/config.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != filepath.Join("/var/lib/medremind", "schedules.db") {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.MedicinesPath != filepath.Join("/var/lib/medremind", "medicines.json") {
		t.Fatalf("unexpected medicines path: %s", cfg.MedicinesPath)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := []byte(`
data_dir: /srv/meds
database_driver: sqlite
listen_addr: 127.0.0.1:9000
check_interval: 30s
windows:
  sound: 3s
  notification: 5s
  message: 2s
  medicine_floor: 2m
  medicine_immediate: 3s
  launch: 10s
sound_command: [aplay, /tmp/ding.wav]
`)
	if err := afero.WriteFile(fs, "/cfg.yaml", raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MEDREMIND_CHECK_INTERVAL", "15")
	t.Setenv("MEDREMIND_DESKTOP_NOTIFICATIONS", "off")
	t.Setenv("MEDREMIND_LAUNCH_COMMAND", "medremind surface --launch {url}")

	cfg, err := Load(fs, "/cfg.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.DatabasePath != filepath.Join("/srv/meds", "schedules.db") {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.Windows.MedicineFloor != 2*time.Minute {
		t.Fatalf("unexpected floor: %s", cfg.Windows.MedicineFloor)
	}
	if cfg.CheckInterval != 15*time.Second {
		t.Fatalf("env override not applied: %s", cfg.CheckInterval)
	}
	if cfg.DesktopNotifications {
		t.Fatal("expected desktop notifications disabled from env")
	}
	if len(cfg.SoundCommand) != 2 || cfg.SoundCommand[0] != "aplay" {
		t.Fatalf("unexpected sound command: %v", cfg.SoundCommand)
	}
	if len(cfg.LaunchCommand) != 4 || cfg.LaunchCommand[3] != "{url}" {
		t.Fatalf("unexpected launch command: %v", cfg.LaunchCommand)
	}
	if cfg.RPCURL() != "ws://127.0.0.1:9000/rpc" {
		t.Fatalf("unexpected rpc url: %s", cfg.RPCURL())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	cases := map[string]string{
		"driver":   "database_driver: postgres\n",
		"interval": "check_interval: 10ms\n",
		"level":    "log_level: loud\n",
		"format":   "log_format: xml\n",
		"window":   "windows:\n  sound: 0s\n",
	}
	for name, body := range cases {
		path := "/" + name + ".yaml"
		if err := afero.WriteFile(fs, path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Load(fs, path); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/bad.yaml", []byte("check_interval: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(fs, "/bad.yaml"); err == nil {
		t.Fatal("expected parse error")
	}
}
