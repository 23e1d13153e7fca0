// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/janisto/storytime-api/internal/reminder"
)

// Reminder store backends.
const (
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

// Config holds all settings read at start-up.
type Config struct {
	Port                         string `validate:"required,numeric"`
	FirebaseProjectID            string `validate:"required"`
	GoogleApplicationCredentials string

	ReminderBackend string        `validate:"oneof=firestore redis"`
	RedisAddr       string        `validate:"required_if=ReminderBackend redis,omitempty,hostname_port"`
	ReminderLead    time.Duration `validate:"min=0s,max=12h"`
	ReminderBuffer  time.Duration `validate:"min=0s,max=12h"`

	DispatchEnabled  bool
	DispatchInterval time.Duration `validate:"min=1s"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a .env file when present (existing variables win) and then the
// process environment. Extra paths replace the default .env lookup.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:                         getenv("PORT", "8080"),
		FirebaseProjectID:            firstNonEmpty(os.Getenv("FIREBASE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT")),
		GoogleApplicationCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ReminderBackend:              getenv("REMINDER_BACKEND", BackendFirestore),
		RedisAddr:                    os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.ReminderLead, err = minutes("REMINDER_LEAD_MINUTES", reminder.DefaultLead); err != nil {
		return nil, err
	}
	if cfg.ReminderBuffer, err = minutes("REMINDER_BUFFER_MINUTES", reminder.DefaultBuffer); err != nil {
		return nil, err
	}
	if cfg.DispatchInterval, err = duration("DISPATCH_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.DispatchEnabled, err = boolean("DISPATCH_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func minutes(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(n) * time.Minute, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolean(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
