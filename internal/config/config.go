// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreBadger    = "badger"
	StoreFirestore = "firestore"

	BrokerHub    = "hub"
	BrokerValkey = "valkey"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	StoreBackend       string `env:"STORE_BACKEND,default=memory"`
	PostgresDSN        string `env:"POSTGRES_DSN"`
	BadgerPath         string `env:"BADGER_PATH"`
	FirestoreProjectID string `env:"FIRESTORE_PROJECT_ID"`

	BrokerBackend string `env:"BROKER_BACKEND,default=hub"`
	ValkeyAddr    string `env:"VALKEY_ADDR"`

	AuthProvider string `env:"AUTH_PROVIDER,default=jwt"`
	JWTSecret    string `env:"JWT_SECRET"`
	JWTIssuer    string `env:"JWT_ISSUER,default=scenyx-dms"`

	CORSOrigins     string        `env:"CORS_ORIGINS,default=http://127.0.0.1:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	WSSendBuffer    int           `env:"WS_SEND_BUFFER,default=64"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every selected backend has what it needs.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	switch c.StoreBackend {
	case StoreMemory, StoreFirestore:
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
	case StoreBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required for the badger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.BrokerBackend {
	case BrokerHub:
	case BrokerValkey:
		if c.ValkeyAddr == "" {
			errs = append(errs, errors.New("VALKEY_ADDR is required for the valkey broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BROKER_BACKEND %q", c.BrokerBackend))
	}

	switch c.AuthProvider {
	case AuthFirebase:
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for jwt auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	return lo.Compact(lo.Map(strings.Split(c.CORSOrigins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
