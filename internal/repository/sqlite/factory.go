package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"chatstore/internal/domain"
	platform "chatstore/internal/platform/sqlite"
	"chatstore/internal/repository"
	"chatstore/internal/shared"
)

// schemaDDL mirrors the migrations. InitSchema exists for embedded and
// test setups that do not ship migration files; both paths must agree.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT,
		email TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_user ON chat_history (user_id)`,
}

// Factory owns one SQLite store: the connection, the write coordinator
// and the repositories built over them. Each Factory is independent;
// two factories over different paths never share state.
type Factory struct {
	db     *sql.DB
	writer *platform.Writer
	dao    *DAO
	users  *Users
	chat   *Chat
	log    *slog.Logger
	ownsDB bool
}

var _ repository.Store = (*Factory)(nil)

// New opens the database at path and builds the repositories over it.
func New(ctx context.Context, path string, opts platform.Options, log *slog.Logger) (*Factory, error) {
	db, err := platform.OpenWithOptions(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}

	f := build(db, opts, log)
	f.ownsDB = true
	return f, nil
}

// NewInMemory builds a store over a fresh in-memory database.
func NewInMemory(ctx context.Context, log *slog.Logger) (*Factory, error) {
	db, err := platform.OpenInMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}

	opts := platform.DefaultOptions()
	opts.EnableWriteQueue = false

	f := build(db, opts, log)
	f.ownsDB = true
	return f, nil
}

// NewWithDB builds a store over an externally managed connection.
// Close will not close the connection in this case.
func NewWithDB(db *sql.DB, opts platform.Options, log *slog.Logger) *Factory {
	return build(db, opts, log)
}

func build(db *sql.DB, opts platform.Options, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}

	writer := platform.NewWriter(db, opts, log)
	dao := NewDAO(writer, log, opts.Verbose)

	return &Factory{
		db:     db,
		writer: writer,
		dao:    dao,
		users:  NewUsers(dao),
		chat:   NewChat(dao),
		log:    log,
	}
}

// Users returns the user repository.
func (f *Factory) Users() repository.UserRepository { return f.users }

// Chat returns the chat repository.
func (f *Factory) Chat() repository.ChatRepository { return f.chat }

// Writer returns the write coordinator, for callers composing their own
// multi-repository transactions.
func (f *Factory) Writer() *platform.Writer { return f.writer }

// DB returns the raw connection. Intended for health checks and tests.
func (f *Factory) DB() *sql.DB { return f.db }

// InitSchema creates the tables if they do not exist yet. Safe to call
// on every start and on an already migrated database.
func (f *Factory) InitSchema(ctx context.Context) error {
	return f.writer.WithinTx(ctx, func(ctx context.Context) error {
		q := f.writer.GetQuerier(ctx)
		for _, ddl := range schemaDDL {
			if _, err := q.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
		}
		return nil
	})
}

// Migrate applies the migration files at migrationsPath.
func (f *Factory) Migrate(migrationsPath string) error {
	return platform.ApplyMigrations(f.db, migrationsPath, f.log)
}

// RegisterUserWithInitialMessage stores a new user and their first
// message in one transaction. Either both rows are persisted and both
// entities receive their IDs, or neither does.
func (f *Factory) RegisterUserWithInitialMessage(ctx context.Context, u *domain.User, m *domain.ChatMessage) error {
	if u == nil || m == nil {
		return shared.MarkKind(fmt.Errorf("user and message must not be nil"), shared.KindValidation)
	}
	if u.Persisted() || m.Persisted() {
		return shared.MarkKind(fmt.Errorf("entities are already persisted"), shared.KindValidation)
	}

	var userID, messageID int64

	err := f.writer.WithinTx(ctx, func(ctx context.Context) error {
		q := f.writer.GetQuerier(ctx)

		if _, err := q.ExecContext(ctx,
			"INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)",
			u.Username, u.PasswordHash, u.Email); err != nil {
			return err
		}
		if err := q.QueryRowContext(ctx, "SELECT last_insert_rowid()").Scan(&userID); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx,
			"INSERT INTO chat_history (session_id, user_id, role, text) VALUES (?, ?, ?, ?)",
			m.SessionID, userID, m.Role, m.Text); err != nil {
			return err
		}
		return q.QueryRowContext(ctx, "SELECT last_insert_rowid()").Scan(&messageID)
	})
	if err != nil {
		return fmt.Errorf("register user %q: %w", u.Username, err)
	}

	// IDs are written back only after the transaction has committed
	u.ID = userID
	m.UserID = userID
	m.ID = messageID
	return nil
}

// Close releases the write coordinator and, when the factory opened the
// connection itself, the connection too.
func (f *Factory) Close() error {
	f.writer.Close()
	if f.ownsDB {
		return f.db.Close()
	}
	return nil
}
