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

// Package session exposes Cognito user pool operations as a session state
// adapter. Each operation issues its identity client calls one at a time,
// waits for the callback, commits the outcome into the shared State and
// returns. Provider errors are returned unchanged.
package session

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/cogniteo/cognito-session/pkg/cognito"
	"github.com/cogniteo/cognito-session/pkg/tokenstore"
	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// Config identifies the user pool app client the adapter signs users into
type Config struct {
	Region     string
	UserPoolID string
	ClientID   string
}

type options struct {
	pool  userpool.Pool
	store tokenstore.Store
	log   logr.Logger
}

// Option configures an Adapter
type Option func(*options)

// WithPool uses the given identity client instead of building a Cognito one
func WithPool(pool userpool.Pool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// WithTokenStore sets where the Cognito client caches the current user's tokens.
// Defaults to an in-memory store.
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLogger sets the logger
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Adapter is the session state adapter
type Adapter struct {
	pool  userpool.Pool
	state *stateStore
	log   logr.Logger
}

// New creates an adapter and the identity client it is bound to
func New(ctx context.Context, cfg Config, opts ...Option) (*Adapter, error) {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	pool := o.pool
	if pool == nil {
		store := o.store
		if store == nil {
			store = tokenstore.NewMemoryStore()
		}
		p, err := cognito.NewPool(ctx, cognito.PoolConfig{
			Region:     cfg.Region,
			UserPoolID: cfg.UserPoolID,
			ClientID:   cfg.ClientID,
		}, store, cognito.WithLogger(o.log.WithName("cognito")))
		if err != nil {
			return nil, fmt.Errorf("failed to create user pool client: %w", err)
		}
		pool = p
	}

	log := o.log.WithName("session")
	return &Adapter{
		pool:  pool,
		state: newStateStore(log),
		log:   log,
	}, nil
}

// State returns a copy of the current session state
func (a *Adapter) State() State {
	return a.state.snapshot()
}

// currentUser returns the cached current user or ErrUnauthenticated
func (a *Adapter) currentUser(ctx context.Context) (userpool.User, error) {
	user, err := a.pool.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
