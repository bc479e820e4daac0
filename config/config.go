package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" json:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" json:"redis" yaml:"redis"`
	Cache    CacheConfig    `mapstructure:"cache" json:"cache" yaml:"cache"`
	Render   RenderConfig   `mapstructure:"render" json:"render" yaml:"render"`
	Log      LogConfig      `mapstructure:"log" json:"log" yaml:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" json:"address" yaml:"address"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3", "pgx" or "postgres".
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
}

type RedisConfig struct {
	// Address empty means the in-process cache is used.
	Address  string `mapstructure:"address" json:"address" yaml:"address"`
	Password string `mapstructure:"password" json:"-" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`
}

type RenderConfig struct {
	BrowserBin    string  `mapstructure:"browser_bin" json:"browserBin" yaml:"browser_bin"`
	Headless      bool    `mapstructure:"headless" json:"headless" yaml:"headless"`
	Scale         float64 `mapstructure:"scale" json:"scale" yaml:"scale"`
	ExportWorkers int     `mapstructure:"export_workers" json:"exportWorkers" yaml:"export_workers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" json:"level" yaml:"level"`
	Development bool   `mapstructure:"development" json:"development" yaml:"development"`
}

var (
	cfg      = Defaults()
	cfgPath  string
	mu       sync.RWMutex
	validLog = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

const DefaultConfigFile = "kitstock.yaml"

func Defaults() Config {
	return Config{
		Server:   ServerConfig{Address: ":8080"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "./kitstock.db?_journal_mode=WAL&_busy_timeout=5000"},
		Cache:    CacheConfig{TTL: 24 * time.Hour},
		Render:   RenderConfig{Headless: true, Scale: 2, ExportWorkers: 4},
		Log:      LogConfig{Level: "info"},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("render.browser_bin", "")
	v.SetDefault("render.headless", d.Render.Headless)
	v.SetDefault("render.scale", d.Render.Scale)
	v.SetDefault("render.export_workers", d.Render.ExportWorkers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("KITSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path (or kitstock.yaml in the working directory when path
// is empty). A missing file is not an error; defaults and KITSTOCK_*
// environment variables apply.
func LoadConfig(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kitstock")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&loaded)
	if err := Validate(loaded); err != nil {
		return Config{}, err
	}

	mu.Lock()
	cfg = loaded
	cfgPath = v.ConfigFileUsed()
	if cfgPath == "" {
		cfgPath = path
	}
	mu.Unlock()
	return loaded, nil
}

// SaveConfig validates newCfg, writes it back to the file it was loaded from
// (kitstock.yaml by default) and makes it current.
func SaveConfig(newCfg Config) error {
	applyDefaults(&newCfg)
	if err := Validate(newCfg); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	path := cfgPath
	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	v.Set("server.address", newCfg.Server.Address)
	v.Set("database.driver", newCfg.Database.Driver)
	v.Set("database.dsn", newCfg.Database.DSN)
	v.Set("redis.address", newCfg.Redis.Address)
	v.Set("redis.password", newCfg.Redis.Password)
	v.Set("redis.db", newCfg.Redis.DB)
	v.Set("cache.ttl", newCfg.Cache.TTL.String())
	v.Set("render.browser_bin", newCfg.Render.BrowserBin)
	v.Set("render.headless", newCfg.Render.Headless)
	v.Set("render.scale", newCfg.Render.Scale)
	v.Set("render.export_workers", newCfg.Render.ExportWorkers)
	v.Set("log.level", newCfg.Log.Level)
	v.Set("log.development", newCfg.Log.Development)
	v.SetConfigType("yaml")

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	cfg = newCfg
	cfgPath = path
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Validate rejects settings the server cannot start with.
func Validate(c Config) error {
	switch c.Database.Driver {
	case "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q (want sqlite3, pgx or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Render.Scale <= 0 || c.Render.Scale > 8 {
		return fmt.Errorf("render.scale must be in (0, 8], got %g", c.Render.Scale)
	}
	if c.Render.ExportWorkers < 1 {
		return fmt.Errorf("render.export_workers must be at least 1")
	}
	if !validLog[c.Log.Level] {
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

func applyDefaults(c *Config) {
	d := Defaults()
	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = d.Database.DSN
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = d.Render.Scale
	}
	if c.Render.ExportWorkers == 0 {
		c.Render.ExportWorkers = d.Render.ExportWorkers
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
