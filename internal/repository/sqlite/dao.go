package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	platform "chatstore/internal/platform/sqlite"
	"chatstore/internal/shared"
)

// DAO is the low-level record accessor. It speaks SQL and row structs;
// mapping rows to domain entities is the repositories' concern.
//
// Reads go through the write coordinator's querier so that a read issued
// inside a write transaction sees that transaction's uncommitted state.
type DAO struct {
	writer  *platform.Writer
	log     *slog.Logger
	verbose bool
}

// NewDAO builds a record accessor over an open write coordinator.
func NewDAO(writer *platform.Writer, log *slog.Logger, verbose bool) *DAO {
	if log == nil {
		log = slog.Default()
	}
	return &DAO{writer: writer, log: log, verbose: verbose}
}

// connected guards every operation against use before Open.
func (d *DAO) connected() error {
	if d == nil || d.writer == nil || d.writer.DB() == nil {
		return shared.ErrNotConnected
	}
	return nil
}

// trace logs the statement and its arguments when verbose mode is on.
func (d *DAO) trace(query string, args ...any) {
	if d.verbose {
		d.log.Debug("executing statement", "query", query, "args", args)
	}
}

// TableExists reports whether a table is present in the schema.
func (d *DAO) TableExists(ctx context.Context, table string) (bool, error) {
	if err := d.connected(); err != nil {
		return false, err
	}

	const q = "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"
	d.trace(q, table)

	var name string
	err := d.writer.GetQuerier(ctx).QueryRowContext(ctx, q, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, shared.MarkKind(fmt.Errorf("check table %s: %w", table, err), shared.KindStatement)
	}
	return true, nil
}

// queryRows runs a read statement and collects rows via scan.
// scan receives the *sql.Rows positioned on the current row.
func queryRows[T any](ctx context.Context, d *DAO, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	if err := d.connected(); err != nil {
		return nil, err
	}
	d.trace(query, args...)

	rows, err := d.writer.GetQuerier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("query: %w", err), shared.KindStatement)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, shared.MarkKind(fmt.Errorf("scan row: %w", err), shared.KindStatement)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.MarkKind(fmt.Errorf("iterate rows: %w", err), shared.KindStatement)
	}

	if d.verbose {
		d.log.Debug("statement result", "rows", len(out))
	}
	return out, nil
}

// insertReturningID runs an insert inside one write transaction and
// returns the generated row ID. last_insert_rowid() is connection-local,
// so it must be read on the same transaction as the insert.
func (d *DAO) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if err := d.connected(); err != nil {
		return 0, err
	}
	d.trace(query, args...)

	var id int64
	err := d.writer.WithinTx(ctx, func(ctx context.Context) error {
		q := d.writer.GetQuerier(ctx)
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		return q.QueryRowContext(ctx, "SELECT last_insert_rowid()").Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// execWrite runs a write statement through the coordinator and applies
// the shared outcome contract: contention exhaustion becomes KindBusy,
// zero affected rows becomes ErrNotFound when requireMatch is set.
func (d *DAO) execWrite(ctx context.Context, requireMatch bool, query string, args ...any) (int64, error) {
	if err := d.connected(); err != nil {
		return 0, err
	}
	d.trace(query, args...)

	affected, committed, err := d.writer.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if !committed {
		return 0, shared.MarkKind(errors.New("write abandoned under contention"), shared.KindBusy)
	}
	if requireMatch && affected == 0 {
		return 0, shared.ErrNotFound
	}
	return affected, nil
}
