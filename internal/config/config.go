package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: env key read by viper
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	Environment string `mapstructure:"APP_ENV" default:"development"`
	LogLevel    string `mapstructure:"LOG_LEVEL" default:"info"`
	Port        int    `mapstructure:"PORT" default:"8080"`

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `mapstructure:"APP_JWT_SECRET" required:"true"`

	// SeedDemo inserts a demo organization on startup when the users table is empty.
	SeedDemo bool `mapstructure:"SEED_DEMO" default:"false"`

	Database DatabaseConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Events   EventsConfig   `mapstructure:",squash"`
	Tracking TrackingConfig `mapstructure:",squash"`

	// GoogleMapsAPIKey enables reverse geocoding of autofilled status locations.
	GoogleMapsAPIKey string `mapstructure:"GOOGLE_MAPS_API_KEY"`
}

// DatabaseConfig selects and configures the shipment store.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"STORE_DRIVER" default:"postgres"`
	URL    string `mapstructure:"DATABASE_URL"`
}

// RedisConfig holds the tracking session store connection.
type RedisConfig struct {
	URL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379/0"`
}

// EventsConfig holds the optional notification sinks. Empty values disable a sink.
type EventsConfig struct {
	AMQPURL                   string `mapstructure:"AMQP_URL"`
	FirebaseCredentialsBase64 string `mapstructure:"FIREBASE_CREDENTIALS_BASE64"`
	FirebaseCredentialsFile   string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
}

// TrackingConfig tunes GPS tracking sessions.
type TrackingConfig struct {
	SampleInterval time.Duration `mapstructure:"TRACKING_SAMPLE_INTERVAL" default:"30s"`
	StaleAfter     time.Duration `mapstructure:"TRACKING_STALE_AFTER" default:"10m"`
}

// Load loads configuration from a .env file in path and environment variables.
// Variables already present in the environment win over the file.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *AppConfig) validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("missing required configuration: DATABASE_URL")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Database.Driver)
	}

	if c.Tracking.SampleInterval <= 0 {
		return fmt.Errorf("TRACKING_SAMPLE_INTERVAL must be positive")
	}
	if c.Tracking.StaleAfter < c.Tracking.SampleInterval {
		return fmt.Errorf("TRACKING_STALE_AFTER must be at least TRACKING_SAMPLE_INTERVAL")
	}
	return nil
}

// processTags binds every tagged field to its env key and registers defaults.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("required") == "true" && val.Field(i).IsZero() {
			return fmt.Errorf("missing required configuration: %s", field.Tag.Get("mapstructure"))
		}
	}
	return nil
}
