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

package session

import (
	"context"
	"sync"

	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// future is settled at most once; later settlements are ignored
type future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) settle(value T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = value, err
		settled = true
		close(f.done)
	})
	return settled
}

func (f *future[T]) resolve(value T) bool {
	return f.settle(value, nil)
}

func (f *future[T]) reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

// await blocks until the future settles or ctx is done. Returning on ctx
// does not stop the pending call: its outcome is still committed.
func (f *future[T]) await(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// once wraps cb so only its first invocation has any effect
func once[T any](cb userpool.Callback[T]) userpool.Callback[T] {
	var o sync.Once
	return func(value T, err error) {
		o.Do(func() {
			cb(value, err)
		})
	}
}

// onceHandler wraps h so only the first of its handlers to fire has any effect
func onceHandler(h userpool.AuthHandler) userpool.AuthHandler {
	var o sync.Once
	return userpool.AuthHandler{
		OnSuccess: func(session *userpool.Session) {
			o.Do(func() {
				h.OnSuccess(session)
			})
		},
		OnFailure: func(err error) {
			o.Do(func() {
				h.OnFailure(err)
			})
		},
		NewPasswordRequired: func(userAttributes map[string]string, requiredAttributes []string) {
			o.Do(func() {
				h.NewPasswordRequired(userAttributes, requiredAttributes)
			})
		},
	}
}
