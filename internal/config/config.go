// Package config loads application configuration from the environment.
// Outside production a .env file in the working directory is read first;
// real environment variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds the runtime configuration of the API.
type Config struct {
	Env   string
	Port  string
	Debug bool

	LogLevel string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	SQLitePath  string

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	CookieSecure   bool
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// Load reads .env (unless APP_ENV=production) and the environment.
// A missing JWT_SECRET, an unknown driver or a malformed number is an error.
func Load() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}

	var errs []string
	num := func(key string, def int) int {
		n, err := parseInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return n
	}

	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		Port:           getenv("APP_PORT", "5001"),
		Debug:          envBool("DEBUG", false),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverSQLite)),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "taskmanager"),
		DBUser:         getenv("DB_USER", "root"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         getenv("DB_HOST", "127.0.0.1"),
		DBPort:         getenv("DB_PORT", "3306"),
		DBName:         getenv("DB_NAME", "taskmanager"),
		SQLitePath:     getenv("SQLITE_PATH", "data/tasks.db"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTTLMin:   num("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: num("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     num("BCRYPT_COST", 10),
	}
	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.IsProduction())

	if cfg.JWTSecret == "" {
		errs = append(errs, "missing required env var: JWT_SECRET")
	}
	switch cfg.StoreDriver {
	case DriverMongo, DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("unknown STORE_DRIVER %q", cfg.StoreDriver))
	}
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func parseInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for %s: %q", key, v)
	}
	return n, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	n, err := parseInt(k, d)
	if err != nil {
		return d
	}
	return n
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
