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
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps tokens in Redis so several processes can share the
// current-user handle of a client.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. prefix namespaces every key,
// ttl bounds how long tokens are kept (0 keeps them until cleared).
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store over a new client
func NewRedisStoreFromURL(url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix, ttl), nil
}

func (r *RedisStore) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// LastAuthUser returns the last signed-in username of the client
func (r *RedisStore) LastAuthUser(ctx context.Context, clientID string) (string, error) {
	username, err := r.rdb.Get(ctx, r.key(lastAuthUserKey(clientID))).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last auth user: %w", err)
	}
	return username, nil
}

// Load returns the cached tokens of a user
func (r *RedisStore) Load(ctx context.Context, clientID, username string) (*Tokens, error) {
	values, err := r.rdb.MGet(ctx,
		r.key(idTokenKey(clientID, username)),
		r.key(accessTokenKey(clientID, username)),
		r.key(refreshTokenKey(clientID, username)),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens for %s: %w", username, err)
	}

	str := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}

	if values[0] == nil {
		return nil, fmt.Errorf("load tokens for %s: %w", username, ErrNotFound)
	}
	return &Tokens{
		IDToken:      str(values[0]),
		AccessToken:  str(values[1]),
		RefreshToken: str(values[2]),
	}, nil
}

// Save caches the tokens of a user
func (r *RedisStore) Save(ctx context.Context, clientID, username string, tokens *Tokens) error {
	if tokens == nil {
		return fmt.Errorf("tokens cannot be nil")
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(idTokenKey(clientID, username)), tokens.IDToken, r.ttl)
		pipe.Set(ctx, r.key(accessTokenKey(clientID, username)), tokens.AccessToken, r.ttl)
		if tokens.RefreshToken != "" {
			pipe.Set(ctx, r.key(refreshTokenKey(clientID, username)), tokens.RefreshToken, r.ttl)
		} else {
			pipe.Del(ctx, r.key(refreshTokenKey(clientID, username)))
		}
		pipe.Set(ctx, r.key(lastAuthUserKey(clientID)), username, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens for %s: %w", username, err)
	}
	return nil
}

// Clear drops the cached tokens of a user
func (r *RedisStore) Clear(ctx context.Context, clientID, username string) error {
	err := r.rdb.Del(ctx,
		r.key(idTokenKey(clientID, username)),
		r.key(accessTokenKey(clientID, username)),
		r.key(refreshTokenKey(clientID, username)),
		r.key(lastAuthUserKey(clientID)),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to clear tokens for %s: %w", username, err)
	}
	return nil
}

// Close releases the underlying Redis client
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
