package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatstore/internal/shared"
	"chatstore/pkg/retry"
)

// ctxKey - приватный тип для ключей контекста
type ctxKey int

const txKey ctxKey = iota

// Querier - интерфейс, объединяющий *sql.DB и *sql.Tx.
// Репозитории работают через него и не знают, выполняются ли они
// внутри транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// writeRequest - запрос на выполнение записи через очередь
type writeRequest struct {
	ctx      context.Context
	fn       func(ctx context.Context) error
	resultCh chan error
}

// Writer сериализует все записи в SQLite базу.
//
// SQLite допускает только одного писателя одновременно. Writer гарантирует
// это на уровне процесса: каждая запись выполняется в собственной транзакции
// под общим мьютексом (или через очередь с одним потребителем), а SQLITE_BUSY
// от конкурирующих процессов обрабатывается повторами с экспоненциальной
// задержкой.
type Writer struct {
	db  *sql.DB
	log *slog.Logger

	// RetryConfig - настройки повторов при SQLITE_BUSY.
	// Изменять только до первого вызова Exec/WithinTx.
	RetryConfig retry.Config

	verbose bool

	mu sync.Mutex // Блокировка одного писателя на процесс

	queueEnabled bool
	queue        chan writeRequest
	queueDone    chan struct{}
	closeOnce    sync.Once

	// queueMu защищает queueClosed; producers считает отправителей,
	// уже прошедших проверку закрытия, но еще не завершивших отправку.
	queueMu     sync.Mutex
	queueClosed bool
	producers   sync.WaitGroup
}

// NewWriter создает координатор записи поверх открытого соединения.
// Если opts.EnableWriteQueue установлен, записи сериализуются через
// канал с одним потребителем вместо мьютекса.
func NewWriter(db *sql.DB, opts Options, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}

	maxAttempts := opts.MaxWriteAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	delay := opts.WriteRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	w := &Writer{
		db:  db,
		log: log,
		RetryConfig: retry.Config{
			MaxAttempts:    maxAttempts,
			InitialDelay:   delay,
			MaxDelay:       time.Second,
			Multiplier:     2.0,
			JitterStrategy: retry.JitterEqual,
		},
		verbose:      opts.Verbose,
		queueEnabled: opts.EnableWriteQueue,
	}

	if w.queueEnabled {
		size := opts.WriteQueueSize
		if size <= 0 {
			size = 100
		}
		w.queue = make(chan writeRequest, size)
		w.queueDone = make(chan struct{})
		go w.consumeQueue()
	}

	return w
}

// GetQuerier возвращает транзакцию из контекста, если она там есть,
// иначе - само соединение с базой.
func (w *Writer) GetQuerier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return w.db
}

// DB возвращает нижележащее соединение. Используется для путей чтения,
// которым координация записи не нужна.
func (w *Writer) DB() *sql.DB {
	return w.db
}

// Exec выполняет одиночный statement записи в собственной транзакции.
//
// Возвращает количество затронутых строк и признак фиксации транзакции.
// Исчерпание повторов при SQLITE_BUSY - ожидаемый исход под нагрузкой,
// поэтому он возвращается как (0, false, nil), а не как ошибка.
// Все остальные ошибки классифицируются: нарушение ограничения схемы
// помечается shared.ErrConflict, прочие сбои - shared.ErrStatement.
func (w *Writer) Exec(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var affected int64

	err := w.WithinTx(ctx, func(ctx context.Context) error {
		res, err := w.GetQuerier(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			affected = n
		}
		return nil
	})
	if err == nil {
		return affected, true, nil
	}
	if shared.IsBusy(err) {
		w.log.Warn("write abandoned after retries", "query", query, "error", err)
		return 0, false, nil
	}

	return 0, false, err
}

// WithinTx выполняет fn внутри одной транзакции чтения-записи.
// Транзакция передается через контекст: fn и все вызванные из неё
// репозитории получают её через GetQuerier.
//
// При SQLITE_BUSY транзакция повторяется целиком. Исчерпание повторов
// возвращается как ошибка с категорией shared.KindBusy.
func (w *Writer) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if w == nil || w.db == nil {
		return shared.ErrNotConnected
	}

	// Вложенные транзакции не поддерживаются
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return shared.MarkKind(errors.New("nested write transactions are not supported"), shared.KindStatement)
	}

	if w.queueEnabled {
		return w.enqueue(ctx, fn)
	}

	return w.execute(ctx, fn)
}

// execute выполняет fn с повторами, классифицируя итоговую ошибку.
func (w *Writer) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	err := retry.DoWithRetryable(ctx, w.RetryConfig, func(ctx context.Context) error {
		return w.executeTx(ctx, fn)
	}, IsBusy)

	return w.classifyOutcome(err)
}

// executeTx - одна попытка: транзакция целиком под блокировкой писателя.
// Блокировка удерживается на время commit-or-rollback, но отпускается
// между повторами.
func (w *Writer) executeTx(ctx context.Context, fn func(ctx context.Context) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			w.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if w.verbose {
		w.log.Debug("write transaction committed")
	}

	return nil
}

// classifyOutcome переводит сырую ошибку попыток в доменную категорию.
func (w *Writer) classifyOutcome(err error) error {
	switch {
	case err == nil:
		return nil
	case retry.Exhausted(err):
		return shared.MarkKind(err, shared.KindBusy)
	case shared.IsCanceled(err) || shared.IsTimeout(err):
		return err
	case Classify(err) == ClassConstraint:
		return shared.MarkKind(err, shared.KindConflict)
	case Classify(err) == ClassBusy:
		return shared.MarkKind(err, shared.KindBusy)
	default:
		return shared.MarkKind(err, shared.KindStatement)
	}
}

// enqueue отправляет запись в очередь и ждет результата.
//
// Принятый в очередь запрос будет выполнен потребителем в любом случае,
// даже если Close вызван параллельно. Поэтому после постановки результат
// ожидается безусловно: вызывающий всегда узнает настоящий исход записи.
func (w *Writer) enqueue(ctx context.Context, fn func(ctx context.Context) error) error {
	// Закрытый координатор не принимает новые записи
	w.queueMu.Lock()
	if w.queueClosed {
		w.queueMu.Unlock()
		return shared.ErrNotConnected
	}
	w.producers.Add(1)
	w.queueMu.Unlock()

	req := writeRequest{
		ctx:      ctx,
		fn:       fn,
		resultCh: make(chan error, 1),
	}

	select {
	case w.queue <- req:
		w.producers.Done()
	case <-ctx.Done():
		w.producers.Done()
		return ctx.Err()
	}

	return <-req.resultCh
}

// consumeQueue - единственный потребитель очереди записи.
// Порядок выполнения соответствует порядку постановки в очередь.
func (w *Writer) consumeQueue() {
	for {
		select {
		case req := <-w.queue:
			req.resultCh <- w.execute(req.ctx, req.fn)
			close(req.resultCh)
		case <-w.queueDone:
			// Дорабатываем уже поставленные запросы перед выходом
			for {
				select {
				case req := <-w.queue:
					req.resultCh <- w.execute(req.ctx, req.fn)
					close(req.resultCh)
				default:
					return
				}
			}
		}
	}
}

// Close останавливает потребителя очереди записи. Записи, уже принятые
// в очередь, дорабатываются до конца. Соединение с базой не закрывается -
// им владеет вызывающий код.
func (w *Writer) Close() {
	if !w.queueEnabled {
		return
	}
	w.closeOnce.Do(func() {
		w.queueMu.Lock()
		w.queueClosed = true
		w.queueMu.Unlock()

		// Дожидаемся отправителей, уже прошедших проверку закрытия:
		// после этого очередь больше не пополняется, и потребитель
		// может добрать остаток и выйти.
		w.producers.Wait()
		close(w.queueDone)
	})
}
