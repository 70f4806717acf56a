package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const FileName = "breathkit.yaml"

type Config struct {
	DataDir string `yaml:"-"`
	DBPath  string `yaml:"db_path" env:"BREATHKIT_DB_PATH"`

	LogLevel string `yaml:"log_level" env:"BREATHKIT_LOG_LEVEL"`
	LogFile  string `yaml:"log_file" env:"BREATHKIT_LOG_FILE"`

	FrameInterval      time.Duration `yaml:"frame_interval" env:"BREATHKIT_FRAME_INTERVAL"`
	MinBreathThreshold float64       `yaml:"min_breath_threshold" env:"BREATHKIT_MIN_BREATH_THRESHOLD"`
	PauseAfter         time.Duration `yaml:"pause_after" env:"BREATHKIT_PAUSE_AFTER"`
	CalibrationSteps   int           `yaml:"calibration_steps" env:"BREATHKIT_CALIBRATION_STEPS"`
	DeviceCallTimeout  time.Duration `yaml:"device_call_timeout" env:"BREATHKIT_DEVICE_CALL_TIMEOUT"`
}

// Default returns the configuration used when neither the config file nor
// the environment set a value.
func Default(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		DBPath:             filepath.Join(dataDir, ".breathkit", "breathkit.db"),
		LogLevel:           "warn",
		FrameInterval:      33 * time.Millisecond,
		MinBreathThreshold: 0.1,
		PauseAfter:         5 * time.Second,
		CalibrationSteps:   3,
		DeviceCallTimeout:  500 * time.Millisecond,
	}
}

// New layers defaults, <dataDir>/breathkit.yaml and BREATHKIT_* environment
// variables, in that order.
func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Default(dataDir)
	if err := cfg.loadFile(filepath.Join(dataDir, FileName)); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if c.DBPath != "" && !filepath.IsAbs(c.DBPath) {
		c.DBPath = filepath.Join(c.DataDir, c.DBPath)
	}
	return nil
}

func (c Config) Validate() error {
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.MinBreathThreshold <= 0 {
		return fmt.Errorf("min breath threshold must be positive")
	}
	if c.PauseAfter <= 0 {
		return fmt.Errorf("pause threshold must be positive")
	}
	if c.CalibrationSteps < 1 {
		return fmt.Errorf("calibration steps must be at least 1")
	}
	if c.DeviceCallTimeout <= 0 {
		return fmt.Errorf("device call timeout must be positive")
	}
	return nil
}

// StateDir is where stores keep their files.
func (c Config) StateDir() string {
	return filepath.Join(c.DataDir, ".breathkit")
}
