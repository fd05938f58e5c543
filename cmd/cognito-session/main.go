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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cogniteo/cognito-session/internal/config"
	"github.com/cogniteo/cognito-session/pkg/cognito"
	"github.com/cogniteo/cognito-session/pkg/session"
	"github.com/cogniteo/cognito-session/pkg/tokenstore"
)

const (
	demoPassword = "Passw0rd!"
	demoUser     = "demo@example.com"
	demoNewUser  = "new@example.com"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := kingpin.New("cognito-session", "Sign users in and out of a Cognito user pool and print the resulting session state.")
	cfg := config.Bind(app)
	cmds := newCommands(app)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	if err := cfg.Validate(); err != nil {
		app.Fatalf("%v", err)
	}

	log, sync, err := newLogger(cfg.Development, cfg.Verbosity)
	if err != nil {
		app.Fatalf("failed to create logger: %v", err)
	}
	defer sync()
	setupLog := log.WithName("setup")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, closeStore, err := newAdapter(ctx, cfg, log)
	if err != nil {
		setupLog.Error(err, "unable to create session adapter")
		os.Exit(1)
	}
	defer closeStore()

	result, err := cmds.run(ctx, command, adapter)
	if err != nil {
		setupLog.Error(err, "command failed", "command", command)
		stop()
		sync()
		os.Exit(1)
	}

	if err := printResult(os.Stdout, result, adapter.State()); err != nil {
		setupLog.Error(err, "unable to print result")
		os.Exit(1)
	}
}

func newLogger(development bool, verbosity int) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

func newAdapter(ctx context.Context, cfg *config.Config, log logr.Logger) (*session.Adapter, func(), error) {
	noop := func() {}

	if cfg.Mock {
		log.WithName("setup").Info("using in-memory user pool", "users", []string{demoUser, demoNewUser})
		adapter, err := session.New(ctx, session.Config{}, session.WithPool(newDemoPool()), session.WithLogger(log))
		return adapter, noop, err
	}

	opts := []session.Option{session.WithLogger(log)}
	closeStore := noop
	switch cfg.TokenStore {
	case config.TokenStoreSQLite:
		store, err := tokenstore.NewSQLiteStore(cfg.TokenFile)
		if err != nil {
			return nil, noop, err
		}
		opts = append(opts, session.WithTokenStore(store))
		closeStore = func() { _ = store.Close() }
	case config.TokenStoreRedis:
		store, err := tokenstore.NewRedisStoreFromURL(cfg.RedisURL, cfg.RedisKeyPrefix, cfg.RedisTTL)
		if err != nil {
			return nil, noop, err
		}
		opts = append(opts, session.WithTokenStore(store))
		closeStore = func() { _ = store.Close() }
	case config.TokenStoreMemory:
		log.WithName("setup").Info("tokens are kept in memory and lost when the command exits")
	}

	pool := cfg.PoolConfig()
	adapter, err := session.New(ctx, session.Config{
		Region:     pool.Region,
		UserPoolID: pool.UserPoolID,
		ClientID:   pool.ClientID,
	}, opts...)
	if err != nil {
		closeStore()
		return nil, noop, err
	}
	return adapter, closeStore, nil
}

// newDemoPool seeds one regular user and one that must set a new password
func newDemoPool() *cognito.MockPool {
	pool := cognito.NewMockPool()
	pool.AddUser(demoUser, demoPassword, map[string]string{
		"email":          demoUser,
		"email_verified": "true",
		"name":           "Demo",
	}, false)
	pool.AddUser(demoNewUser, demoPassword, map[string]string{
		"email":          demoNewUser,
		"email_verified": "true",
	}, true)
	return pool
}

type output struct {
	Result any           `json:"result,omitempty"`
	State  session.State `json:"state"`
}

func printResult(w io.Writer, result any, state session.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output{Result: result, State: state})
}
