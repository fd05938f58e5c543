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

// Package config holds the settings of the cognito-session command. Every
// setting is a flag with a COGNITO_* environment fallback; .env files are
// read before flags are parsed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/cogniteo/cognito-session/pkg/cognito"
)

const (
	TokenStoreSQLite = "sqlite"
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
)

// Config is the command configuration
type Config struct {
	Region     string
	UserPoolID string
	ClientID   string

	// TokenStore is where the current user's tokens are cached: a local
	// sqlite file, redis, or memory (lost when the process exits)
	TokenStore     string
	TokenFile      string
	RedisURL       string
	RedisKeyPrefix string
	RedisTTL       time.Duration

	Development bool
	Verbosity   int

	// Mock runs against an in-memory user pool instead of Cognito
	Mock bool
}

// Bind registers the configuration flags on app. Values are populated when
// app is parsed.
func Bind(app *kingpin.Application) *Config {
	c := &Config{}

	app.Flag("region", "AWS region of the user pool. Derived from the user pool ID when empty.").
		Envar("COGNITO_REGION").StringVar(&c.Region)
	app.Flag("user-pool-id", "Cognito user pool ID, e.g. us-east-1_AbCdEf123.").
		Envar("COGNITO_USER_POOL_ID").StringVar(&c.UserPoolID)
	app.Flag("client-id", "Cognito app client ID. The client must have no secret.").
		Envar("COGNITO_CLIENT_ID").StringVar(&c.ClientID)

	app.Flag("token-store", "Where to cache the signed-in user's tokens.").
		Default(TokenStoreSQLite).Envar("COGNITO_TOKEN_STORE").EnumVar(&c.TokenStore, TokenStoreSQLite, TokenStoreRedis, TokenStoreMemory)
	app.Flag("token-file", "SQLite file of the sqlite token store.").
		Default(DefaultTokenFile()).Envar("COGNITO_TOKEN_FILE").StringVar(&c.TokenFile)
	app.Flag("redis-url", "Redis URL of the token store, e.g. redis://localhost:6379/0.").
		Envar("COGNITO_REDIS_URL").StringVar(&c.RedisURL)
	app.Flag("redis-key-prefix", "Prefix of the token store keys in Redis.").
		Default("cognito-session").Envar("COGNITO_REDIS_KEY_PREFIX").StringVar(&c.RedisKeyPrefix)
	app.Flag("redis-ttl", "Expiry of cached tokens in Redis. 0 keeps them until sign-out.").
		Default("720h").Envar("COGNITO_REDIS_TTL").DurationVar(&c.RedisTTL)

	app.Flag("development", "Human friendly log output.").
		Envar("COGNITO_DEVELOPMENT").BoolVar(&c.Development)
	app.Flag("verbosity", "Log verbosity, 1 logs state changes and SDK calls.").
		Short('v').Default("0").Envar("COGNITO_VERBOSITY").IntVar(&c.Verbosity)

	app.Flag("mock", "Use an in-memory user pool seeded with demo users.").
		Envar("COGNITO_MOCK").BoolVar(&c.Mock)

	return c
}

// DefaultTokenFile returns tokens.db under the user configuration directory,
// or under the working directory when there is none.
func DefaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".cognito-session", "tokens.db")
	}
	return filepath.Join(dir, "cognito-session", "tokens.db")
}

// LoadEnvFile loads .env.local, then .env, from the working directory or its
// parent. Variables already set in the environment win. Missing files are
// skipped.
func LoadEnvFile() error {
	dirs := []string{"."}
	if cwd, err := os.Getwd(); err == nil {
		if parent := filepath.Dir(cwd); parent != cwd {
			dirs = append(dirs, parent)
		}
	}

	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}
	return nil
}

// Validate reports the first missing or malformed setting
func (c *Config) Validate() error {
	if c.Verbosity < 0 {
		return errors.New("verbosity must not be negative")
	}
	if c.Mock {
		return nil
	}

	if c.UserPoolID == "" {
		return errors.New("COGNITO_USER_POOL_ID is required")
	}
	if c.ClientID == "" {
		return errors.New("COGNITO_CLIENT_ID is required")
	}
	pool := c.PoolConfig()
	if err := pool.Validate(); err != nil {
		return err
	}

	switch c.TokenStore {
	case TokenStoreSQLite:
		if c.TokenFile == "" {
			return errors.New("COGNITO_TOKEN_FILE is required with the sqlite token store")
		}
	case TokenStoreMemory:
	case TokenStoreRedis:
		if c.RedisURL == "" {
			return errors.New("COGNITO_REDIS_URL is required with the redis token store")
		}
		if c.RedisTTL < 0 {
			return errors.New("redis TTL must not be negative")
		}
	default:
		return fmt.Errorf("unknown token store %q", c.TokenStore)
	}
	return nil
}

// PoolConfig returns the user pool settings
func (c *Config) PoolConfig() cognito.PoolConfig {
	return cognito.PoolConfig{
		Region:     c.Region,
		UserPoolID: c.UserPoolID,
		ClientID:   c.ClientID,
	}
}
