package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file" // Источник миграций из файлов
)

// BuildMigrateURL строит URL источника миграций для golang-migrate.
// Принимает путь вида "migrations/sqlite" или уже готовый "file://...".
func BuildMigrateURL(migrationsPath string) string {
	if strings.Contains(migrationsPath, "://") {
		return migrationsPath
	}
	return "file://" + migrationsPath
}

// newMigrator создает экземпляр migrate поверх открытого соединения.
func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(BuildMigrateURL(migrationsPath), "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

// ApplyMigrations применяет все доступные миграции к базе данных.
// Отсутствие новых миграций не является ошибкой.
func ApplyMigrations(db *sql.DB, migrationsPath string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}

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

// GetMigrationVersion возвращает текущую версию схемы и флаг dirty.
// Для базы без применённых миграций возвращает (0, false, nil).
func GetMigrationVersion(db *sql.DB, migrationsPath string) (uint, bool, error) {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}

	return version, dirty, nil
}
