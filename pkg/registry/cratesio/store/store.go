// Package store is the relational half of the registry: users, their
// sessions, crates, and crate ownership. Every mutating operation runs
// inside a transaction that the caller commits before any corresponding
// git-index operation is enqueued, so a worker failure can only ever
// leave the index slightly behind, never expose disk state owned by
// nobody.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store wraps the relational connection pool backing users, sessions,
// crates, and crate owners.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// runs migrations.
func Open(path string, maxConns int) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			ident TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS user_sessions (
			ident TEXT NOT NULL REFERENCES users(ident),
			token TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS crates (
			name TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS crate_owners (
			crate_name TEXT NOT NULL REFERENCES crates(name),
			user_ident TEXT NOT NULL REFERENCES users(ident),
			UNIQUE(crate_name, user_ident)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "running migration")
		}
	}
	return nil
}

// Session pairs a session token with the identity it authenticates.
type Session struct {
	Ident string
	Token string
}

// Tx is a relational transaction with the operations needed by
// publish/yank/owner-mutation handlers. A Tx must be committed or
// rolled back by the caller.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// UserExists reports whether a user row exists for ident.
func (t *Tx) UserExists(ctx context.Context, ident string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE ident = ?)`, ident).Scan(&exists)
	return exists, err
}

// CreateUser inserts a user row, or leaves an existing one untouched.
func (t *Tx) CreateUser(ctx context.Context, ident string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO users(ident) VALUES (?) ON CONFLICT(ident) DO NOTHING`, ident)
	return err
}

// DeleteUser removes a user row.
func (t *Tx) DeleteUser(ctx context.Context, ident string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE ident = ?`, ident)
	return err
}

// SessionByToken resolves a bearer token to its session, or returns
// (nil, nil) if the token is unknown.
func (t *Tx) SessionByToken(ctx context.Context, token string) (*Session, error) {
	var ident string
	err := t.tx.QueryRowContext(ctx, `SELECT ident FROM user_sessions WHERE token = ?`, token).Scan(&ident)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Session{Ident: ident, Token: token}, nil
}

// CreateSession mints a fresh 60-character alphanumeric token for ident
// using a cryptographic RNG and records it.
func (t *Tx) CreateSession(ctx context.Context, ident string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generating session token")
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO user_sessions(ident, token) VALUES (?, ?)`, ident, token)
	if err != nil {
		return nil, err
	}
	return &Session{Ident: ident, Token: token}, nil
}

// DeleteSessionByToken removes a session by its token.
func (t *Tx) DeleteSessionByToken(ctx context.Context, token string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE token = ?`, token)
	return err
}

// DeleteSessionsByIdent removes every session belonging to ident.
func (t *Tx) DeleteSessionsByIdent(ctx context.Context, ident string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE ident = ?`, ident)
	return err
}

// CrateExists reports whether a crate row exists for name.
func (t *Tx) CrateExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM crates WHERE name = ?)`, name).Scan(&exists)
	return exists, err
}

// CreateCrate inserts a crate row.
func (t *Tx) CreateCrate(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO crates(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	return err
}

// DeleteCrate removes a crate row.
func (t *Tx) DeleteCrate(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM crates WHERE name = ?`, name)
	return err
}

// OwnerExists reports whether ident owns the crate named name.
func (t *Tx) OwnerExists(ctx context.Context, name, ident string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM crate_owners WHERE crate_name = ? AND user_ident = ?)`, name, ident).Scan(&exists)
	return exists, err
}

// CreateOwner records ident as an owner of name.
func (t *Tx) CreateOwner(ctx context.Context, name, ident string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO crate_owners(crate_name, user_ident) VALUES (?, ?) ON CONFLICT(crate_name, user_ident) DO NOTHING`, name, ident)
	return err
}

// DeleteOwner removes ident from name's owner set.
func (t *Tx) DeleteOwner(ctx context.Context, name, ident string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM crate_owners WHERE crate_name = ? AND user_ident = ?`, name, ident)
	return err
}

// ListOwners returns every identifier that owns the crate named name,
// in insertion order.
func (t *Tx) ListOwners(ctx context.Context, name string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT user_ident FROM crate_owners WHERE crate_name = ? ORDER BY rowid`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var idents []string
	for rows.Next() {
		var ident string
		if err := rows.Scan(&ident); err != nil {
			return nil, err
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const tokenLength = 60

// newToken generates a 60-character alphanumeric token from a
// cryptographic RNG. A non-cryptographic generator must never be used
// here: the token is a long-lived bearer credential.
func newToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, tokenLength)
	for i, b := range buf {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}
