package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	libconfig "swapwatch/backend/libs/config"
)

// DefaultStationFirst selects the first operational station at startup.
const DefaultStationFirst = "first"

// Config defines monitoring service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"MONITORING_HTTP_PORT"`
	} `yaml:"http"`
	JWT struct {
		Secret                 string `yaml:"secret" env:"MONITORING_JWT_SECRET"`
		ServiceTokenTTLSeconds int    `yaml:"serviceTokenTTLSeconds" env:"MONITORING_SERVICE_TOKEN_TTL"`
	} `yaml:"jwt"`
	Upstream struct {
		BatteryURL  string `yaml:"batteryUrl" env:"BATTERY_SERVICE_URL"`
		StationsURL string `yaml:"stationsUrl" env:"STATIONS_SERVICE_URL"`
		StreamURL   string `yaml:"streamUrl" env:"BATTERY_STREAM_URL"`
		Token       string `yaml:"token" env:"MONITORING_UPSTREAM_TOKEN"`
	} `yaml:"upstream"`
	HTTPClient struct {
		TimeoutSeconds int `yaml:"timeoutSeconds" env:"MONITORING_HTTP_TIMEOUT"`
	} `yaml:"httpClient"`
	WebSocket struct {
		PingIntervalSeconds int   `yaml:"pingIntervalSeconds" env:"MONITORING_WS_PING_INTERVAL"`
		WriteTimeoutSeconds int   `yaml:"writeTimeoutSeconds" env:"MONITORING_WS_WRITE_TIMEOUT"`
		ReadLimitBytes      int64 `yaml:"readLimitBytes" env:"MONITORING_WS_READ_LIMIT"`
	} `yaml:"websocket"`
	Redis struct {
		Addr     string `yaml:"addr" env:"MONITORING_REDIS_ADDR"`
		Password string `yaml:"password" env:"MONITORING_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"MONITORING_REDIS_DB"`
	} `yaml:"redis"`
	Database struct {
		DSN string `yaml:"dsn" env:"MONITORING_POSTGRES_DSN"`
	} `yaml:"database"`
	Monitoring struct {
		DefaultStation string `yaml:"defaultStation" env:"MONITORING_DEFAULT_STATION"`
	} `yaml:"monitoring"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8086"
	cfg.JWT.ServiceTokenTTLSeconds = 3600
	cfg.HTTPClient.TimeoutSeconds = 5
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 10
	cfg.WebSocket.ReadLimitBytes = 1 << 20

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if strings.TrimSpace(c.Upstream.BatteryURL) == "" {
		return errors.New("config: upstream battery url required")
	}
	if _, err := url.Parse(c.Upstream.BatteryURL); err != nil {
		return fmt.Errorf("config: upstream battery url: %w", err)
	}
	if c.Database.DSN == "" && strings.TrimSpace(c.Upstream.StationsURL) == "" {
		return errors.New("config: stations url or database dsn required")
	}
	switch c.Monitoring.DefaultStation {
	case "", DefaultStationFirst:
	default:
		return fmt.Errorf("config: unsupported default station %q", c.Monitoring.DefaultStation)
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8086"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// HTTPTimeout returns http client timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return seconds(c.HTTPClient.TimeoutSeconds, 5*time.Second)
}

// ServiceTokenTTL returns the lifetime of self-minted upstream tokens.
func (c *Config) ServiceTokenTTL() time.Duration {
	return seconds(c.JWT.ServiceTokenTTLSeconds, time.Hour)
}

// StreamBaseURL returns the push endpoint base, falling back to the battery service.
func (c *Config) StreamBaseURL() string {
	if s := strings.TrimSpace(c.Upstream.StreamURL); s != "" {
		return s
	}
	return c.Upstream.BatteryURL
}

// PingInterval returns the websocket keepalive period.
func (c *Config) PingInterval() time.Duration {
	return seconds(c.WebSocket.PingIntervalSeconds, 30*time.Second)
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return seconds(c.WebSocket.WriteTimeoutSeconds, 10*time.Second)
}

// RedisEnabled reports whether alerts are published to redis.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// AutoSelectFirst reports whether the first operational station is selected at startup.
func (c *Config) AutoSelectFirst() bool {
	return c.Monitoring.DefaultStation == DefaultStationFirst
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
