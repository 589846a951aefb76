package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	DB  struct {
		Driver string `validate:"required,oneof=sqlite postgres"`
		// Verbose enables diagnostic tracing of every statement and its result.
		Verbose bool
		SQLite  struct {
			Path           string `validate:"required"`
			MigrationsPath string
			WriteQueue     bool
			QueueSize      int
		}
		Postgres struct {
			Host           string
			Port           int
			User           string
			Password       string
			Database       string
			SSLMode        string
			MigrationsPath string
		}
	}
	HTTP struct {
		Addr string `validate:"required"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Retention struct {
		Enabled  bool
		MaxAge   time.Duration
		Schedule string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.DB.Driver = strings.ToLower(getenv("DB_DRIVER", "sqlite"))
	c.DB.Verbose = getbool("DB_VERBOSE", false)
	c.DB.SQLite.Path = getenv("SQLITE_PATH", "data/chatstore.db")
	c.DB.SQLite.MigrationsPath = getenv("SQLITE_MIGRATIONS", "file://migrations/sqlite")
	c.DB.SQLite.WriteQueue = getbool("SQLITE_WRITE_QUEUE", false)
	c.DB.SQLite.QueueSize = getint("SQLITE_QUEUE_SIZE", 100)
	c.DB.Postgres.Host = getenv("PG_HOST", "localhost")
	c.DB.Postgres.Port = getint("PG_PORT", 5432)
	c.DB.Postgres.User = os.Getenv("PG_USER")
	c.DB.Postgres.Password = os.Getenv("PG_PASSWORD")
	c.DB.Postgres.Database = os.Getenv("PG_DATABASE")
	c.DB.Postgres.SSLMode = getenv("PG_SSLMODE", "disable")
	c.DB.Postgres.MigrationsPath = getenv("PG_MIGRATIONS", "file://migrations/postgres")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/chatstore.log")
	c.Retention.Enabled = getbool("RETENTION_ENABLED", false)
	c.Retention.MaxAge = getduration("RETENTION_MAX_AGE", 90*24*time.Hour)
	c.Retention.Schedule = getenv("RETENTION_SCHEDULE", "0 0 3 * * *")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if c.DB.Driver == "postgres" && c.DB.Postgres.Database == "" {
		return Config{}, errors.New("PG_DATABASE required when DB_DRIVER is postgres")
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
