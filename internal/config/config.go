package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookie_name"`
	LoginURL   string        `mapstructure:"login_url"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelemetryConfig struct {
	// Exporter is one of "none", "stdout" or "otlp".
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	UI        UIConfig        `mapstructure:"ui"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/todo.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "todo_session")
	v.SetDefault("session.login_url", "/login")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure", false)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "todo-web")
	v.SetDefault("ui.theme", "gradient")
}

// Load reads the YAML file at path (optional; an empty path or a missing
// file falls back to defaults) and applies TODO_* environment overrides,
// e.g. TODO_STORAGE_DRIVER=postgres. LOG_LEVEL is honored as well.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log.level", "TODO_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver))
	}

	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter %q is not one of none, stdout, otlp", c.Telemetry.Exporter))
	}

	if c.Session.Secret != "" && len(c.Session.Secret) < 16 {
		errs = append(errs, errors.New("session.secret must be at least 16 bytes"))
	}
	if !strings.HasPrefix(c.Session.LoginURL, "/") && !strings.HasPrefix(c.Session.LoginURL, "http") {
		errs = append(errs, fmt.Errorf("session.login_url %q must be a path or absolute URL", c.Session.LoginURL))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must not be negative"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}

	return errors.Join(errs...)
}
