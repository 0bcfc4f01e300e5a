// Package credential owns the OAuth token lifecycle for the mail store:
// a sqlite-backed token cache, the installed-app consent flow and a token
// source that persists refreshed tokens.
package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	_ "modernc.org/sqlite"
)

// ErrNoToken is returned by Load when no token is stored for the account.
var ErrNoToken = errors.New("no stored token")

// SQLiteTokenStore keeps one OAuth token per account in a sqlite database.
type SQLiteTokenStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteTokenStore(dbPath string, logger *slog.Logger) (*SQLiteTokenStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create token directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open token database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteTokenStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("token database migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteTokenStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS oauth_tokens (
		account       TEXT PRIMARY KEY,
		access_token  TEXT NOT NULL,
		token_type    TEXT,
		refresh_token TEXT,
		expiry        DATETIME,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored token for account or ErrNoToken.
func (s *SQLiteTokenStore) Load(ctx context.Context, account string) (*oauth2.Token, error) {
	var (
		tok     oauth2.Token
		typ     sql.NullString
		refresh sql.NullString
		expiry  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, token_type, refresh_token, expiry FROM oauth_tokens WHERE account = ?`, account,
	).Scan(&tok.AccessToken, &typ, &refresh, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", account, err)
	}
	tok.TokenType = typ.String
	tok.RefreshToken = refresh.String
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return &tok, nil
}

// Save upserts the token for account. An empty refresh token keeps the one
// already stored, since refresh responses usually omit it.
func (s *SQLiteTokenStore) Save(ctx context.Context, account string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("save token %s: nil token", account)
	}
	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (account, access_token, token_type, refresh_token, expiry, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account) DO UPDATE SET
			access_token  = excluded.access_token,
			token_type    = excluded.token_type,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), oauth_tokens.refresh_token),
			expiry        = excluded.expiry,
			updated_at    = excluded.updated_at`,
		account, tok.AccessToken, tok.TokenType, tok.RefreshToken, expiry, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save token %s: %w", account, err)
	}
	s.logger.Debug("token stored", "account", account, "expiry", tok.Expiry)
	return nil
}

// Delete removes the stored token, forcing a new consent flow next run.
func (s *SQLiteTokenStore) Delete(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE account = ?`, account)
	return err
}

func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}
