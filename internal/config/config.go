package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the gateway.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	DatabaseDriver  string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	EventSubject    string
	SessionTTL      time.Duration
	StatsCacheTTL   time.Duration
	UploadMaxMB     int
	AllowedOrigins  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UpstreamAPIURL returns the REST root of the LMS server.
func (c Config) UpstreamAPIURL() string {
	base := strings.TrimRight(c.UpstreamURL, "/")
	if strings.HasSuffix(base, "/api") {
		return base
	}
	return base + "/api"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA LMS Gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("upstream.url", "http://localhost:5000")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("events.subject", "lms.events")
	v.SetDefault("upload.max_mb", 50)
	v.SetDefault("cors.origins", "*")

	durations := map[string]time.Duration{}
	for _, key := range []string{"upstream.timeout", "session.ttl", "stats.cache_ttl"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		UpstreamURL:     v.GetString("upstream.url"),
		UpstreamTimeout: durations["upstream.timeout"],
		DatabaseDriver:  strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		EventSubject:    v.GetString("events.subject"),
		SessionTTL:      durations["session.ttl"],
		StatsCacheTTL:   durations["stats.cache_ttl"],
		UploadMaxMB:     v.GetInt("upload.max_mb"),
		AllowedOrigins:  v.GetString("cors.origins"),
	}

	if strings.TrimSpace(cfg.UpstreamURL) == "" {
		return Config{}, fmt.Errorf("lms upstream url must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 50
	}

	return cfg, nil
}
