package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstore/internal/shared"
)

const testSchema = `
CREATE TABLE items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
)`

func TestWriterExecCommits(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	affected, committed, err := tdb.Writer.Exec(context.Background(),
		"INSERT INTO items (name) VALUES (?)", "alpha")

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, 1, tdb.CountRows(t, "items"))
}

func TestWriterExecReportsAffectedRows(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)
	tdb.MustExec(t, "INSERT INTO items (name) VALUES ('alpha'), ('beta')")

	affected, committed, err := tdb.Writer.Exec(context.Background(),
		"DELETE FROM items WHERE name != ?", "alpha")

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, int64(1), affected)

	// Удаление несуществующей строки фиксируется, но не затрагивает строк
	affected, committed, err = tdb.Writer.Exec(context.Background(),
		"DELETE FROM items WHERE name = ?", "missing")

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, int64(0), affected)
}

func TestWriterExecConstraintViolation(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)
	tdb.MustExec(t, "INSERT INTO items (name) VALUES ('alpha')")

	_, committed, err := tdb.Writer.Exec(context.Background(),
		"INSERT INTO items (name) VALUES (?)", "alpha")

	require.Error(t, err)
	assert.False(t, committed)
	assert.True(t, shared.IsConflict(err), "expected conflict, got: %v", err)
	assert.Equal(t, 1, tdb.CountRows(t, "items"))
}

func TestWriterExecStatementError(t *testing.T) {
	tdb := NewTestDB(t)

	_, committed, err := tdb.Writer.Exec(context.Background(),
		"INSERT INTO no_such_table (name) VALUES (?)", "alpha")

	require.Error(t, err)
	assert.False(t, committed)
	assert.True(t, shared.HasKind(err, shared.KindStatement))
	assert.False(t, shared.IsBusy(err))
}

func TestWriterWithinTxRollsBackOnError(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	boom := errors.New("boom")
	err := tdb.Writer.WithinTx(context.Background(), func(ctx context.Context) error {
		q := tdb.Writer.GetQuerier(ctx)
		if _, err := q.ExecContext(ctx, "INSERT INTO items (name) VALUES ('alpha')"); err != nil {
			return err
		}
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tdb.CountRows(t, "items"), "rolled back insert must not persist")
}

func TestWriterWithinTxSharesTransaction(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	err := tdb.Writer.WithinTx(context.Background(), func(ctx context.Context) error {
		q := tdb.Writer.GetQuerier(ctx)
		if _, err := q.ExecContext(ctx, "INSERT INTO items (name) VALUES ('alpha')"); err != nil {
			return err
		}

		// Вставка видна внутри той же транзакции до фиксации
		var n int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("expected 1 row inside tx, got %d", n)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, tdb.CountRows(t, "items"))
}

func TestWriterNestedTxRejected(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	err := tdb.Writer.WithinTx(context.Background(), func(ctx context.Context) error {
		return tdb.Writer.WithinTx(ctx, func(ctx context.Context) error {
			return nil
		})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested")
}

func TestWriterNotConnected(t *testing.T) {
	var w *Writer

	err := w.WithinTx(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, shared.ErrNotConnected)

	w = &Writer{}
	err = w.WithinTx(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, shared.ErrNotConnected)
}

// contendedOptions - файловая база без ожидания на уровне драйвера,
// чтобы конкуренция проявлялась немедленно как SQLITE_BUSY.
func contendedOptions() Options {
	opts := DefaultOptions()
	opts.BusyTimeout = 0
	opts.MaxWriteAttempts = 3
	opts.WriteRetryDelay = time.Millisecond
	return opts
}

// holdWriteLock открывает независимое соединение к той же базе и удерживает
// блокировку записи открытой транзакцией. Возвращает функцию освобождения.
func holdWriteLock(t *testing.T, path string) func() {
	t.Helper()

	opts := contendedOptions()
	db, err := OpenWithOptions(context.Background(), path, opts)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec("INSERT INTO items (name) VALUES ('holder')")
	require.NoError(t, err)

	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = tx.Commit()
			_ = db.Close()
		})
	}
	t.Cleanup(release)
	return release
}

func TestWriterExecBusyExhaustion(t *testing.T) {
	tdb := NewTestDBFile(t, contendedOptions())
	tdb.MustExec(t, testSchema)

	release := holdWriteLock(t, tdb.Path)
	defer release()

	retries := 0
	tdb.Writer.RetryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries++
	}

	// Конкурирующий процесс держит блокировку - повторы исчерпываются,
	// и запись тихо отбрасывается
	affected, committed, err := tdb.Writer.Exec(context.Background(),
		"INSERT INTO items (name) VALUES (?)", "alpha")

	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, int64(0), affected)
	assert.Equal(t, 2, retries, "3 attempts mean 2 retries")
}

func TestWriterExecRetriesUntilLockReleased(t *testing.T) {
	tdb := NewTestDBFile(t, contendedOptions())
	tdb.MustExec(t, testSchema)

	release := holdWriteLock(t, tdb.Path)

	// Освобождаем блокировку перед вторым повтором
	tdb.Writer.RetryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		release()
	}

	affected, committed, err := tdb.Writer.Exec(context.Background(),
		"INSERT INTO items (name) VALUES (?)", "alpha")

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, int64(1), affected)
}

func TestWriterWithinTxBusyExhaustionIsError(t *testing.T) {
	tdb := NewTestDBFile(t, contendedOptions())
	tdb.MustExec(t, testSchema)

	release := holdWriteLock(t, tdb.Path)
	defer release()

	err := tdb.Writer.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := tdb.Writer.GetQuerier(ctx).ExecContext(ctx,
			"INSERT INTO items (name) VALUES ('alpha')")
		return err
	})

	require.Error(t, err)
	assert.True(t, shared.IsBusy(err), "expected busy classification, got: %v", err)
}

func TestWriterConcurrentWriters(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines*perGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				name := fmt.Sprintf("item-%d-%d", g, i)
				_, committed, err := tdb.Writer.Exec(context.Background(),
					"INSERT INTO items (name) VALUES (?)", name)
				if err != nil {
					errCh <- err
				} else if !committed {
					errCh <- fmt.Errorf("write %s not committed", name)
				}
			}
		}(g)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent write: %v", err)
	}

	assert.Equal(t, goroutines*perGoroutine, tdb.CountRows(t, "items"))
}

func TestWriterQueueSerializesWrites(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableWriteQueue = true
	opts.WriteQueueSize = 16
	opts.WriteRetryDelay = time.Millisecond

	tdb := NewTestDBFile(t, opts)
	tdb.MustExec(t, testSchema)

	const goroutines = 8
	const perGoroutine = 10

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, committed, err := tdb.Writer.Exec(context.Background(),
					"INSERT INTO items (name) VALUES (?)", fmt.Sprintf("q-%d-%d", g, i))
				assert.NoError(t, err)
				assert.True(t, committed)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, tdb.CountRows(t, "items"))
}

func TestWriterQueueRejectsAfterClose(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableWriteQueue = true

	tdb := NewTestDBFile(t, opts)
	tdb.MustExec(t, testSchema)

	tdb.Writer.Close()

	err := tdb.Writer.WithinTx(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrNotConnected)
}

func TestWriterQueueCloseReportsTrueOutcome(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableWriteQueue = true
	opts.WriteQueueSize = 64
	opts.WriteRetryDelay = time.Millisecond

	tdb := NewTestDBFile(t, opts)
	tdb.MustExec(t, testSchema)

	const goroutines = 4
	const perGoroutine = 25

	var committedCount atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, committed, err := tdb.Writer.Exec(context.Background(),
					"INSERT INTO items (name) VALUES (?)", fmt.Sprintf("c-%d-%d", g, i))
				switch {
				case err == nil && committed:
					committedCount.Add(1)
				case errors.Is(err, shared.ErrNotConnected):
					// Запрос не был принят в очередь и ничего не записал
				default:
					t.Errorf("unexpected outcome: committed=%v err=%v", committed, err)
				}
			}
		}(g)
	}

	// Закрываем координатор посреди потока записей
	time.Sleep(2 * time.Millisecond)
	tdb.Writer.Close()
	wg.Wait()

	// Каждый зафиксированный результат есть в базе, и наоборот:
	// ни одна принятая в очередь запись не отвергнута как несостоявшаяся
	assert.Equal(t, int(committedCount.Load()), tdb.CountRows(t, "items"))
}

func TestWriterContextCanceled(t *testing.T) {
	tdb := NewTestDB(t)
	tdb.MustExec(t, testSchema)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, committed, err := tdb.Writer.Exec(ctx, "INSERT INTO items (name) VALUES ('alpha')")

	require.Error(t, err)
	assert.False(t, committed)
	assert.True(t, shared.IsCanceled(err))
}

func TestWriterGetQuerierOutsideTx(t *testing.T) {
	tdb := NewTestDB(t)

	q := tdb.Writer.GetQuerier(context.Background())
	_, ok := q.(*sql.DB)
	assert.True(t, ok, "outside a transaction the querier is the connection itself")
}
