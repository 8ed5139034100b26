package config // loads application configuration from environment variables

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values. Signing secrets and TTLs are
// read once at process start and injected into the token issuer and cache
// constructors; nothing outside this package reads the environment for them.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	AccessSecret   string // secret used to sign access tokens
	RefreshSecret  string // secret used to sign refresh tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	VerifyTTLMin   int    // verification token time-to-live in minutes
	BcryptCost     int    // bcrypt cost for password hashing

	FrontendURL string // base URL for verification/reset links
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must() and missing values abort startup.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		AccessSecret:   must("JWT_ACCESS_SECRET"),
		RefreshSecret:  must("JWT_REFRESH_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		VerifyTTLMin:   envInt("VERIFICATION_TOKEN_TTL_MIN", 60),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		FrontendURL:    must("FRONTEND_URL"),
	}
}

// IsProd reports whether cookies must carry the Secure attribute.
func (c Config) IsProd() bool { return c.Env == "prod" }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
