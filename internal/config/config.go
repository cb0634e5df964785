// Package config itemflow命令行的配置文件
package config

import (
	"os"
	"time"

	"github.com/blingmoon/itemflow/filter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Filter   FilterConfig   `yaml:"filter"`
}

type DatabaseConfig struct {
	// DSN sqlite文件路径, ":memory:" 只在测试中使用
	DSN string `yaml:"dsn"`
}

// RedisConfig Addr为空时使用进程内的锁
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type FilterConfig struct {
	FavoriteLimit int `yaml:"favorite_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{DSN: "itemflow.sqlite3"},
		Redis:    RedisConfig{Timeout: 3 * time.Second},
		Log:      LogConfig{Level: "info"},
		Filter:   FilterConfig{FavoriteLimit: filter.DefaultFavoriteLimit},
	}
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Filter.FavoriteLimit <= 0 {
		return errors.New("filter.favorite_limit must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.Timeout <= 0 {
		return errors.New("redis.timeout must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// LoadFromFile 文件中没有的字段使用默认值
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid config file %s", path)
	}
	return config, nil
}

// Load path为空时只使用默认配置
func Load(path string) (*Config, error) {
	if path == "" {
		config := DefaultConfig()
		return config, config.Validate()
	}
	return LoadFromFile(path)
}
