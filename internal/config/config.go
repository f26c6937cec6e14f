package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "INKPOST"

type Config struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
	Session  Session       `mapstructure:"session"`
	Log      Log           `mapstructure:"log"`
	Rate     Rate          `mapstructure:"rate"`
	Sandbox  Sandbox       `mapstructure:"sandbox"`
}

type Session struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Rate paces outgoing client requests. A zero RPS disables pacing.
type Rate struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type Sandbox struct {
	Addr           string        `mapstructure:"addr"`
	Secret         string        `mapstructure:"secret"`
	AdminUser      string        `mapstructure:"admin_user"`
	AdminPassword  string        `mapstructure:"admin_password"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	LoginPerMinute int           `mapstructure:"login_per_minute"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

func defaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:3000/api")
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("language", "en")
	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.path", defaultSessionPath())
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("rate.rps", 0.0)
	v.SetDefault("rate.burst", 1)
	v.SetDefault("sandbox.addr", ":3000")
	v.SetDefault("sandbox.secret", "dev-sandbox-secret")
	v.SetDefault("sandbox.admin_user", "admin")
	v.SetDefault("sandbox.admin_password", "Admin1234")
	v.SetDefault("sandbox.token_ttl", 24*time.Hour)
	v.SetDefault("sandbox.login_per_minute", 10)
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "inkpost-session.json"
	}
	return filepath.Join(home, ".inkpost", "session.json")
}

// Load reads defaults, an optional config file, a .env file in the working
// directory and INKPOST_* environment variables, later sources winning. An
// empty file searches ./inkpost.yaml and ~/.inkpost/inkpost.yaml.
func Load(file string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("inkpost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".inkpost"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base_url is required")
	}
	switch c.Session.Backend {
	case BackendFile, BackendSQLite:
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the %s backend", c.Session.Backend)
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return errors.New("session.redis_url is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.Rate.RPS < 0 {
		return errors.New("rate.rps must not be negative")
	}
	return nil
}
