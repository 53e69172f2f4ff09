package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lattice/internal/logging"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the service configuration of the lattice binary.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Lock     LockConfig     `yaml:"lock"`
	Hardware HardwareConfig `yaml:"hardware"`
	Engine   EngineConfig   `yaml:"engine"`

	// Runnables is an optional runnables.yaml attaching external commands
	// to matching events.
	Runnables string `yaml:"runnables"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// LockConfig guards the hardware across processes. Only the redis backend
// shares the lock between processes; memory and sqlite lock per process.
type LockConfig struct {
	Key string        `yaml:"key"`
	TTL time.Duration `yaml:"ttl"`
}

// HardwareConfig sets the initial state of the simulated hardware.
type HardwareConfig struct {
	FocusUm         float64           `yaml:"focus_um"`
	ContinuousFocus bool              `yaml:"continuous_focus"`
	Configs         map[string]string `yaml:"configs"`
	Camera          CameraConfig      `yaml:"camera"`
}

// CameraConfig is the image geometry used for memory estimates.
type CameraConfig struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	BytesPerPixel int `yaml:"bytes_per_pixel"`
}

type EngineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads the service configuration. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("invalid config in %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "lattice:"
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "lattice.db"
	}
	if c.Lock.Key == "" {
		c.Lock.Key = "acquisition"
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = time.Hour
	}
	if c.Hardware.Camera.Width == 0 {
		c.Hardware.Camera.Width = 512
	}
	if c.Hardware.Camera.Height == 0 {
		c.Hardware.Camera.Height = 512
	}
	if c.Hardware.Camera.BytesPerPixel == 0 {
		c.Hardware.Camera.BytesPerPixel = 2
	}
	if c.Engine.PollInterval == 0 {
		c.Engine.PollInterval = 5 * time.Millisecond
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be memory, redis or sqlite, got %q", c.Store.Backend))
	}
	if c.Store.Redis.TTL < 0 {
		errs = append(errs, errors.New("store.redis.ttl must not be negative"))
	}
	if c.Lock.TTL < 0 {
		errs = append(errs, errors.New("lock.ttl must not be negative"))
	}
	if cam := c.Hardware.Camera; cam.Width < 0 || cam.Height < 0 || cam.BytesPerPixel < 0 {
		errs = append(errs, errors.New("hardware.camera dimensions must not be negative"))
	}
	if c.Engine.PollInterval < 0 {
		errs = append(errs, errors.New("engine.poll_interval must not be negative"))
	}
	return errors.Join(errs...)
}

// Logger builds the application logger from the log section.
func (c *Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	if strings.EqualFold(c.Log.Format, "json") {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
