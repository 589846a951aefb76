package pg

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL драйвер миграций
	_ "github.com/golang-migrate/migrate/v4/source/file"       // Источник миграций из файлов
)

// BuildMigrateURL строит URL источника миграций для golang-migrate.
func BuildMigrateURL(migrationsPath string) string {
	if strings.Contains(migrationsPath, "://") {
		return migrationsPath
	}
	return "file://" + migrationsPath
}

// ApplyMigrations применяет все доступные миграции к базе данных.
// DSN передается напрямую: миграции выполняются на отдельном соединении,
// независимом от пула приложения.
func ApplyMigrations(dsn, migrationsPath string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	m, err := migrate.New(BuildMigrateURL(migrationsPath), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("close migrate instance", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Warn("migrations applied but version unknown", "error", err)
		return nil
	}

	log.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
