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
	"fmt"
	"sync"
)

// MemoryStore keeps tokens in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// LastAuthUser returns the last signed-in username of the client
func (m *MemoryStore) LastAuthUser(ctx context.Context, clientID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[lastAuthUserKey(clientID)], nil
}

// Load returns the cached tokens of a user
func (m *MemoryStore) Load(ctx context.Context, clientID, username string) (*Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idToken, ok := m.values[idTokenKey(clientID, username)]
	if !ok {
		return nil, fmt.Errorf("load tokens for %s: %w", username, ErrNotFound)
	}
	return &Tokens{
		IDToken:      idToken,
		AccessToken:  m.values[accessTokenKey(clientID, username)],
		RefreshToken: m.values[refreshTokenKey(clientID, username)],
	}, nil
}

// Save caches the tokens of a user
func (m *MemoryStore) Save(ctx context.Context, clientID, username string, tokens *Tokens) error {
	if tokens == nil {
		return fmt.Errorf("tokens cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[idTokenKey(clientID, username)] = tokens.IDToken
	m.values[accessTokenKey(clientID, username)] = tokens.AccessToken
	if tokens.RefreshToken != "" {
		m.values[refreshTokenKey(clientID, username)] = tokens.RefreshToken
	} else {
		delete(m.values, refreshTokenKey(clientID, username))
	}
	m.values[lastAuthUserKey(clientID)] = username
	return nil
}

// Clear drops the cached tokens of a user
func (m *MemoryStore) Clear(ctx context.Context, clientID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, idTokenKey(clientID, username))
	delete(m.values, accessTokenKey(clientID, username))
	delete(m.values, refreshTokenKey(clientID, username))
	delete(m.values, lastAuthUserKey(clientID))
	return nil
}
