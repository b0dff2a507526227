package config

import (
	"fmt"
	"strings"
	"time"

	"nightcircle/internal/utils"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	UploadDir   string
	BaseURL     string
	ClientURL   string

	LogLevel  string
	LogFormat string

	// Night mode boundaries are evaluated in this location.
	NightTimezone *time.Location

	Geocoder GeocoderConfig
	Voice    VoiceConfig

	ReaperInterval    time.Duration
	RoomSweepInterval time.Duration

	// Inbound websocket events per second per connection, and burst.
	WSRateLimit float64
	WSRateBurst int
}

type GeocoderConfig struct {
	Disabled         bool
	Timeout          time.Duration
	NominatimURL     string
	UserAgent        string
	GeoNamesURL      string
	GeoNamesUsername string
}

type VoiceConfig struct {
	Disabled bool
	Endpoint string
	Language string
	Timeout  time.Duration
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	_ = utils.LoadEnv()

	cfg := &Config{
		Port:              utils.GetEnv("PORT", "3001"),
		Env:               utils.GetEnv("ENV", "development"),
		DatabaseURL:       databaseURL(),
		RedisURL:          utils.GetEnv("REDIS_URL", ""),
		JWTSecret:         utils.GetEnv("JWT_SECRET", ""),
		UploadDir:         utils.GetEnv("UPLOAD_DIR", "uploads"),
		BaseURL:           utils.GetEnv("BASE_URL", ""),
		ClientURL:         strings.TrimSpace(utils.GetEnv("CLIENT_URL", "")),
		LogLevel:          utils.GetEnv("LOG_LEVEL", "info"),
		LogFormat:         utils.GetEnv("LOG_FORMAT", "json"),
		ReaperInterval:    utils.GetEnvDuration("REAPER_INTERVAL", 5*time.Second),
		RoomSweepInterval: utils.GetEnvDuration("ROOM_SWEEP_INTERVAL", 15*time.Minute),
		WSRateLimit:       utils.GetEnvFloat("WS_RATE_LIMIT", 10),
		WSRateBurst:       utils.GetEnvInt("WS_RATE_BURST", 20),
		Geocoder: GeocoderConfig{
			Disabled:         utils.GetEnvBool("GEOCODER_DISABLED", false),
			Timeout:          utils.GetEnvDuration("GEOCODER_TIMEOUT", 3*time.Second),
			NominatimURL:     utils.GetEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/reverse"),
			UserAgent:        utils.GetEnv("NOMINATIM_USER_AGENT", "nightcircle-backend/0.1"),
			GeoNamesURL:      utils.GetEnv("GEONAMES_URL", "http://api.geonames.org/findNearbyPostalCodesJSON"),
			GeoNamesUsername: utils.GetEnv("GEONAMES_USERNAME", ""),
		},
		Voice: VoiceConfig{
			Disabled: utils.GetEnvBool("VOICE_DISABLED", false),
			Endpoint: utils.GetEnv("VOICE_TTS_URL", "https://translate.google.com/translate_tts"),
			Language: utils.GetEnv("VOICE_LANGUAGE", "en"),
			Timeout:  utils.GetEnvDuration("VOICE_TIMEOUT", 10*time.Second),
		},
	}

	tz := utils.GetEnv("NIGHT_TZ", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid NIGHT_TZ %q: %w", tz, err)
	}
	cfg.NightTimezone = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.ClientURL == "" {
			return fmt.Errorf("CLIENT_URL is required in production")
		}
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive, got %s", c.ReaperInterval)
	}
	if c.RoomSweepInterval <= 0 {
		return fmt.Errorf("ROOM_SWEEP_INTERVAL must be positive, got %s", c.RoomSweepInterval)
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "secret"
	}
	if c.WSRateBurst < 1 {
		c.WSRateBurst = 1
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesMemoryStore reports whether no database was configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

func databaseURL() string {
	if url := utils.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	if utils.GetEnv("POSTGRES_HOST", "") == "" {
		return ""
	}
	// Fallback to individual vars
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "nightcircle") + "?sslmode=disable"
}
