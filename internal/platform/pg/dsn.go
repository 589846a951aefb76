package pg

import (
	"fmt"
	"net/url"
)

// DSNConfig - параметры подключения к PostgreSQL
type DSNConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// BuildDSN строит строку подключения postgres://...
// Пароль экранируется, поэтому спецсимволы в нем безопасны.
func BuildDSN(cfg DSNConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + sslMode,
	}

	return u.String()
}
