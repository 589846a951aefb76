package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// TestDB - обертка над базой для тестов: соединение, координатор записи
// и путь к файлу (пустой для in-memory).
type TestDB struct {
	DB     *sql.DB
	Writer *Writer
	Path   string
}

// NewTestDB создает in-memory базу данных для тестов.
// Соединение и координатор закрываются автоматически через t.Cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}

	opts := DefaultOptions()
	opts.WriteRetryDelay = time.Millisecond // Быстрые повторы в тестах
	w := NewWriter(db, opts, nil)

	t.Cleanup(func() {
		w.Close()
		_ = db.Close()
	})

	return &TestDB{DB: db, Writer: w}
}

// NewTestDBFile создает файловую базу данных во временной директории теста.
// Нужна для тестов конкуренции: in-memory база не разделяется между
// независимыми соединениями.
func NewTestDBFile(t *testing.T, opts Options) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := OpenWithOptions(ctx, path, opts)
	if err != nil {
		t.Fatalf("open test database %s: %v", path, err)
	}

	w := NewWriter(db, opts, nil)

	t.Cleanup(func() {
		w.Close()
		_ = db.Close()
	})

	return &TestDB{DB: db, Writer: w, Path: path}
}

// MustExec выполняет statement напрямую, минуя координатор записи.
// Используется для подготовки схемы и данных в тестах.
func (tdb *TestDB) MustExec(t *testing.T, query string, args ...any) {
	t.Helper()

	if _, err := tdb.DB.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// CountRows возвращает количество строк в таблице.
func (tdb *TestDB) CountRows(t *testing.T, table string) int {
	t.Helper()

	var n int
	if err := tdb.DB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count rows in %s: %v", table, err)
	}
	return n
}

// TableExists проверяет наличие таблицы в схеме.
func (tdb *TestDB) TableExists(t *testing.T, table string) bool {
	t.Helper()

	var name string
	err := tdb.DB.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("check table %s: %v", table, err)
	}
	return true
}
