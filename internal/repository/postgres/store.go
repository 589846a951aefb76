// Package postgres implements the user and chat repositories over a
// PostgreSQL pool. PostgreSQL handles concurrent writers itself, so
// unlike the sqlite backend there is no process-wide write coordinator:
// every write is a single statement or an explicit pool transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatstore/internal/domain"
	"chatstore/internal/platform/pg"
	"chatstore/internal/repository"
	"chatstore/internal/shared"
)

// Store bundles the PostgreSQL-backed repositories over one pool.
type Store struct {
	pool  *pgxpool.Pool
	users *Users
	chat  *Chat
	log   *slog.Logger
}

var _ repository.Store = (*Store)(nil)

// New connects to PostgreSQL and builds the repositories.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	pool, err := pg.NewPool(ctx, dsn, pg.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("connect postgres store: %w", err)
	}

	return NewWithPool(pool, log), nil
}

// NewWithPool builds the repositories over an externally managed pool.
func NewWithPool(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:  pool,
		users: &Users{pool: pool},
		chat:  &Chat{pool: pool},
		log:   log,
	}
}

// Users returns the user repository.
func (s *Store) Users() repository.UserRepository { return s.users }

// Chat returns the chat repository.
func (s *Store) Chat() repository.ChatRepository { return s.chat }

// Pool returns the underlying pool, for health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RegisterUserWithInitialMessage stores a new user and their first
// message in one transaction, mirroring the sqlite factory.
func (s *Store) RegisterUserWithInitialMessage(ctx context.Context, u *domain.User, m *domain.ChatMessage) error {
	if u == nil || m == nil {
		return shared.MarkKind(fmt.Errorf("user and message must not be nil"), shared.KindValidation)
	}
	if u.Persisted() || m.Persisted() {
		return shared.MarkKind(fmt.Errorf("entities are already persisted"), shared.KindValidation)
	}

	var userID, messageID int64

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			"INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3) RETURNING id",
			u.Username, u.PasswordHash, u.Email).Scan(&userID); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			"INSERT INTO chat_history (session_id, user_id, role, text) VALUES ($1, $2, $3, $4) RETURNING id",
			m.SessionID, userID, m.Role, m.Text).Scan(&messageID)
	})
	if err != nil {
		return classify(fmt.Errorf("register user %q: %w", u.Username, err))
	}

	u.ID = userID
	m.UserID = userID
	m.ID = messageID
	return nil
}

// PostgreSQL error codes handled at this boundary
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

// classify maps driver errors onto the shared error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation:
			return shared.MarkKind(err, shared.KindConflict)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return shared.MarkKind(err, shared.KindNotFound)
	}
	if shared.IsCanceled(err) || shared.IsTimeout(err) {
		return err
	}

	return shared.MarkKind(err, shared.KindStatement)
}
