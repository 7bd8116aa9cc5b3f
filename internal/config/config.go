package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/storage"
)

const (
	DefaultListenAddr = "127.0.0.1:7789"
	DefaultFileName   = "config.yaml"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	DataDir              string           `yaml:"data_dir"`
	DatabasePath         string           `yaml:"database_path"`
	DatabaseDriver       string           `yaml:"database_driver"`
	MedicinesPath        string           `yaml:"medicines_path"`
	ListenAddr           string           `yaml:"listen_addr"`
	DaemonURL            string           `yaml:"daemon_url"`
	CheckInterval        time.Duration    `yaml:"check_interval"`
	FollowUpDelay        time.Duration    `yaml:"follow_up_delay"`
	SoundRetryDelay      time.Duration    `yaml:"sound_retry_delay"`
	Windows              debounce.Windows `yaml:"windows"`
	DesktopNotifications bool             `yaml:"desktop_notifications"`
	SoundCommand         []string         `yaml:"sound_command"`
	LaunchCommand        []string         `yaml:"launch_command"`
	LogLevel             string           `yaml:"log_level"`
	LogFormat            string           `yaml:"log_format"`
}

// Default leaves the database and medicine paths empty; Load derives them
// from DataDir.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		DataDir:              dataDir,
		DatabaseDriver:       storage.DriverCGO,
		ListenAddr:           DefaultListenAddr,
		CheckInterval:        60 * time.Second,
		FollowUpDelay:        10 * time.Second,
		SoundRetryDelay:      500 * time.Millisecond,
		Windows:              debounce.DefaultWindows(),
		DesktopNotifications: true,
		SoundCommand:         defaultSoundCommand(runtime.GOOS),
		LaunchCommand:        defaultLaunchCommand(runtime.GOOS),
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "medremind")
	}
	return ".medremind"
}

func defaultSoundCommand(goos string) []string {
	switch goos {
	case "linux":
		return []string{"paplay", "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"}
	case "darwin":
		return []string{"afplay", "/System/Library/Sounds/Glass.aiff"}
	default:
		return nil
	}
}

func defaultLaunchCommand(goos string) []string {
	switch goos {
	case "linux":
		return []string{"x-terminal-emulator", "-e", "medremind", "surface", "--launch", "{url}"}
	case "darwin":
		return []string{"open", "-a", "Terminal", "--args", "medremind", "surface", "--launch", "{url}"}
	default:
		return nil
	}
}

// RPCURL is where a surface dials the daemon.
func (c Config) RPCURL() string {
	if strings.TrimSpace(c.DaemonURL) != "" {
		return c.DaemonURL
	}
	return "ws://" + c.ListenAddr + "/rpc"
}

// Load layers defaults, the YAML file at path (missing is fine) and
// MEDREMIND_* environment variables.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg = FromEnv(cfg)
	cfg = cfg.withDerivedPaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPath is config.yaml inside the default data directory.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), DefaultFileName)
}

func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnvString("MEDREMIND_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := getEnvString("MEDREMIND_DATABASE_PATH"); ok {
		cfg.DatabasePath = v
	}
	if v, ok := getEnvString("MEDREMIND_DATABASE_DRIVER"); ok {
		cfg.DatabaseDriver = v
	}
	if v, ok := getEnvString("MEDREMIND_MEDICINES_PATH"); ok {
		cfg.MedicinesPath = v
	}
	if v, ok := getEnvString("MEDREMIND_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := getEnvString("MEDREMIND_DAEMON_URL"); ok {
		cfg.DaemonURL = v
	}
	if v, ok := getEnvDuration("MEDREMIND_CHECK_INTERVAL"); ok && v > 0 {
		cfg.CheckInterval = v
	}
	if v, ok := getEnvDuration("MEDREMIND_FOLLOW_UP_DELAY"); ok && v > 0 {
		cfg.FollowUpDelay = v
	}
	if v, ok := getEnvDuration("MEDREMIND_SOUND_RETRY_DELAY"); ok && v > 0 {
		cfg.SoundRetryDelay = v
	}
	if v, ok := getEnvBool("MEDREMIND_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v, ok := getEnvString("MEDREMIND_SOUND_COMMAND"); ok {
		cfg.SoundCommand = strings.Fields(v)
	}
	if v, ok := getEnvString("MEDREMIND_LAUNCH_COMMAND"); ok {
		cfg.LaunchCommand = strings.Fields(v)
	}
	if v, ok := getEnvString("MEDREMIND_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString("MEDREMIND_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	return cfg
}

func (c Config) withDerivedPaths() Config {
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "schedules.db")
	}
	if strings.TrimSpace(c.MedicinesPath) == "" {
		c.MedicinesPath = filepath.Join(c.DataDir, "medicines.json")
	}
	return c
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case storage.DriverCGO, storage.DriverPure:
	default:
		return fmt.Errorf("%w: database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	if c.CheckInterval < time.Second {
		return fmt.Errorf("%w: check_interval %s below 1s", ErrInvalidConfig, c.CheckInterval)
	}
	w := c.Windows
	for name, d := range map[string]time.Duration{
		"sound":              w.Sound,
		"notification":       w.Notification,
		"message":            w.Message,
		"medicine_floor":     w.MedicineFloor,
		"medicine_immediate": w.MedicineImmediate,
		"launch":             w.Launch,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: windows.%s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.FollowUpDelay <= 0 || c.SoundRetryDelay <= 0 {
		return fmt.Errorf("%w: follow_up_delay and sound_retry_delay must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvDuration(name string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	if v, err := time.ParseDuration(raw); err == nil {
		return v, true
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
