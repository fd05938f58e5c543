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
	"errors"
)

var (
	// ErrUnauthenticated is returned when an operation needs a current user and there is none.
	// No identity call is made.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSession is matched by every SessionError
	ErrSession = errors.New("session error")

	// ErrNoPendingChallenge is returned when completing a new password challenge that was never issued
	ErrNoPendingChallenge = errors.New("no pending new password challenge")
)

// SessionError is returned by CheckAuthentication when validating the
// current user's session fails. Cause is the provider error.
type SessionError struct {
	Username string
	Cause    error
}

func (e *SessionError) Error() string {
	if e.Cause == nil {
		return ErrSession.Error()
	}
	return ErrSession.Error() + ": " + e.Cause.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func (e *SessionError) Is(target error) bool {
	return target == ErrSession
}
