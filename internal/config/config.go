// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string // json or console

	BracketStore string // postgres or memory
	DatabaseURL  string

	JWTSecret []byte

	AuthTimeout     time.Duration
	RoomWaitTimeout time.Duration
	TickRate        int
	ScoreLimit      int
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		BracketStore:    "postgres",
		AuthTimeout:     30 * time.Second,
		RoomWaitTimeout: 2 * time.Minute,
		TickRate:        30,
		ScoreLimit:      5,
	}
}

// Load reads the named .env files (".env" when none are given) and then the
// process environment. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := defaults()
	var errs []error

	str(&c.Addr, "ADDR")
	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.LogFormat, "LOG_FORMAT")
	str(&c.BracketStore, "BRACKET_STORE")
	str(&c.DatabaseURL, "DATABASE_URL")
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = []byte(v)
	}

	errs = append(errs,
		duration(&c.AuthTimeout, "AUTH_TIMEOUT"),
		duration(&c.RoomWaitTimeout, "ROOM_WAIT_TIMEOUT"),
		integer(&c.TickRate, "TICK_RATE"),
		integer(&c.ScoreLimit, "SCORE_LIMIT"),
		c.validate(),
	)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	var errs []error
	if len(c.JWTSecret) == 0 {
		errs = append(errs, fmt.Errorf("%w: JWT_SECRET is required", ErrInvalid))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: LOG_FORMAT %q", ErrInvalid, c.LogFormat))
	}
	switch c.BracketStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL is required for the postgres bracket store", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: BRACKET_STORE %q", ErrInvalid, c.BracketStore))
	}
	if c.AuthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: AUTH_TIMEOUT must be positive", ErrInvalid))
	}
	if c.RoomWaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: ROOM_WAIT_TIMEOUT must not be negative", ErrInvalid))
	}
	if c.TickRate <= 0 || c.TickRate > 240 {
		errs = append(errs, fmt.Errorf("%w: TICK_RATE must be in 1..240", ErrInvalid))
	}
	if c.ScoreLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: SCORE_LIMIT must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func duration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
	}
	*dst = d
	return nil
}

func integer(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
	}
	*dst = n
	return nil
}
