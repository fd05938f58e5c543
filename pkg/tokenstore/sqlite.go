/*
Copyright 2025 Piotr Janik.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps tokens in a local SQLite file, so the current user
// survives process restarts. Entries are stored as key/value rows under the
// same keys a browser client keeps in its local storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the token database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create token store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers on the file.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS items (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// LastAuthUser returns the last signed-in username of the client
func (s *SQLiteStore) LastAuthUser(ctx context.Context, clientID string) (string, error) {
	username, _, err := s.get(ctx, lastAuthUserKey(clientID))
	if err != nil {
		return "", fmt.Errorf("failed to read last auth user: %w", err)
	}
	return username, nil
}

// Load returns the cached tokens of a user
func (s *SQLiteStore) Load(ctx context.Context, clientID, username string) (*Tokens, error) {
	idToken, ok, err := s.get(ctx, idTokenKey(clientID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens for %s: %w", username, err)
	}
	if !ok {
		return nil, fmt.Errorf("load tokens for %s: %w", username, ErrNotFound)
	}

	accessToken, _, err := s.get(ctx, accessTokenKey(clientID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens for %s: %w", username, err)
	}
	refreshToken, _, err := s.get(ctx, refreshTokenKey(clientID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens for %s: %w", username, err)
	}

	return &Tokens{
		IDToken:      idToken,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Save caches the tokens of a user
func (s *SQLiteStore) Save(ctx context.Context, clientID, username string, tokens *Tokens) error {
	if tokens == nil {
		return fmt.Errorf("tokens cannot be nil")
	}

	err := s.tx(ctx, func(tx *sql.Tx) error {
		values := map[string]string{
			idTokenKey(clientID, username):     tokens.IDToken,
			accessTokenKey(clientID, username): tokens.AccessToken,
			lastAuthUserKey(clientID):          username,
		}
		if tokens.RefreshToken != "" {
			values[refreshTokenKey(clientID, username)] = tokens.RefreshToken
		} else if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE key = ?`, refreshTokenKey(clientID, username)); err != nil {
			return err
		}

		for key, value := range values {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO items (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens for %s: %w", username, err)
	}
	return nil
}

// Clear drops the cached tokens of a user
func (s *SQLiteStore) Clear(ctx context.Context, clientID, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE key IN (?, ?, ?, ?)`,
		idTokenKey(clientID, username),
		accessTokenKey(clientID, username),
		refreshTokenKey(clientID, username),
		lastAuthUserKey(clientID),
	)
	if err != nil {
		return fmt.Errorf("failed to clear tokens for %s: %w", username, err)
	}
	return nil
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
