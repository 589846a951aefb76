package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite драйвер

	"chatstore/internal/shared"
)

// AccessMode определяет режим доступа к SQLite базе данных
type AccessMode string

const (
	// AccessModeReadWrite - режим чтения и записи (по умолчанию)
	AccessModeReadWrite AccessMode = "rw"
	// AccessModeReadOnly - режим только для чтения
	AccessModeReadOnly AccessMode = "ro"
	// AccessModeReadWriteCreate - режим чтения/записи с созданием файла если не существует
	AccessModeReadWriteCreate AccessMode = "rwc"
)

// Options содержит настройки для SQLite базы данных.
type Options struct {
	// ConnMaxLifetime - максимальное время жизни соединения
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime - максимальное время простоя соединения
	ConnMaxIdleTime time.Duration
	// MaxOpenConns - максимальное количество открытых соединений
	MaxOpenConns int
	// MaxIdleConns - максимальное количество idle соединений
	MaxIdleConns int
	// PingTimeout - таймаут для проверки соединения при создании БД
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим для сокращения времени блокировок
	WALMode bool
	// ForeignKeys - включить ли проверку внешних ключей
	ForeignKeys bool
	// BusyTimeout - таймаут ожидания при SQLITE_BUSY на уровне драйвера
	BusyTimeout time.Duration
	// AccessMode - режим доступа к базе данных
	AccessMode AccessMode
	// EnableWriteQueue - сериализовать записи через очередь с одним потребителем
	EnableWriteQueue bool
	// WriteQueueSize - размер буфера очереди записи (по умолчанию 100)
	WriteQueueSize int
	// MaxWriteAttempts - максимальное количество попыток записи при SQLITE_BUSY
	MaxWriteAttempts int
	// WriteRetryDelay - начальная задержка между попытками записи
	WriteRetryDelay time.Duration
	// Verbose - трассировать каждый statement и его результат
	Verbose bool
}

// DefaultOptions возвращает настройки по умолчанию, оптимизированные для
// embedded базы с одним писателем.
func DefaultOptions() Options {
	return Options{
		ConnMaxLifetime:  time.Hour,
		ConnMaxIdleTime:  10 * time.Minute,
		MaxOpenConns:     4, // Снижено для SQLite (один писатель)
		MaxIdleConns:     1,
		PingTimeout:      5 * time.Second,
		WALMode:          true,
		ForeignKeys:      true, // Каскадное удаление chat_history требует FK
		BusyTimeout:      5 * time.Second,
		AccessMode:       AccessModeReadWrite,
		EnableWriteQueue: false,
		WriteQueueSize:   100,
		MaxWriteAttempts: 5,
		WriteRetryDelay:  100 * time.Millisecond,
		Verbose:          false,
	}
}

// Open создает новое подключение к SQLite базе данных с настройками по умолчанию.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	return OpenWithOptions(ctx, dbPath, DefaultOptions())
}

// OpenWithOptions создает новое подключение к SQLite с заданными параметрами.
// Директория для файла БД создается автоматически. Любая ошибка открытия или
// конфигурации возвращается как shared.ErrConnection.
func OpenWithOptions(ctx context.Context, dbPath string, opts Options) (*sql.DB, error) {
	// Создаем директорию для БД если её нет
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, shared.MarkKind(fmt.Errorf("create directory %s: %w", dir, err), shared.KindConnection)
		}
	}

	dsn := buildDSN(dbPath, opts)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("open sqlite database: %w", err), shared.KindConnection)
	}

	// Применяем настройки пула соединений
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	// Проверяем соединение с БД с настраиваемым таймаутом
	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, shared.MarkKind(fmt.Errorf("ping sqlite database: %w", err), shared.KindConnection)
	}

	// Применяем PRAGMA настройки после открытия соединения
	if err := applyPragmas(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, shared.MarkKind(fmt.Errorf("apply PRAGMA settings: %w", err), shared.KindConnection)
	}

	return db, nil
}

// OpenReadOnly создает подключение к SQLite базе данных в режиме только для чтения.
func OpenReadOnly(ctx context.Context, dbPath string) (*sql.DB, error) {
	opts := DefaultOptions()
	opts.AccessMode = AccessModeReadOnly
	opts.EnableWriteQueue = false // Очередь записи не нужна для read-only
	return OpenWithOptions(ctx, dbPath, opts)
}

// OpenInMemory создает in-memory SQLite базу данных для тестов.
// Ограничивает пул соединений до 1 для обеспечения единого состояния схемы.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	opts := DefaultOptions()
	opts.WALMode = false  // WAL не поддерживается для in-memory БД
	opts.MaxOpenConns = 1 // Критично для in-memory БД - одно соединение
	opts.MaxIdleConns = 1
	opts.EnableWriteQueue = false

	return OpenWithOptions(ctx, ":memory:", opts)
}

// buildDSN строит DSN строку для SQLite с минимальными параметрами.
// Остальные настройки применяются через PRAGMA после открытия.
func buildDSN(dbPath string, opts Options) string {
	params := []string{}

	// Добавляем режим доступа только если он отличается от умолчания
	if opts.AccessMode != "" && opts.AccessMode != AccessModeReadWrite {
		params = append(params, fmt.Sprintf("mode=%s", opts.AccessMode))
	}

	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", int(opts.BusyTimeout.Milliseconds())))
	}

	if len(params) > 0 {
		return dbPath + "?" + strings.Join(params, "&")
	}

	return dbPath
}

// applyPragmas применяет PRAGMA настройки к открытому соединению.
// Это обеспечивает надёжность применения настроек независимо от драйвера.
func applyPragmas(ctx context.Context, db *sql.DB, opts Options) error {
	pragmas := make([]string, 0, 4)

	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}

	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")

	if opts.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", int(opts.BusyTimeout.Milliseconds())))
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}
