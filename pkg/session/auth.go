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

	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// immutableAttributes may not be resubmitted when answering a new password challenge
var immutableAttributes = []string{"email_verified", "phone_number_verified", "sub"}

// Credentials are the sign-in credentials of a user
type Credentials struct {
	Email    string
	Password string
}

// NewPasswordInput answers a forced password challenge
type NewPasswordInput struct {
	Email       string
	NewPassword string
}

// AuthResult is the outcome of a sign-in attempt. Either Session is set, or
// NewPasswordRequired is true and the attempt waits for
// CompleteNewPasswordChallenge.
type AuthResult struct {
	Session             *userpool.Session `json:"session,omitempty"`
	NewPasswordRequired bool              `json:"newPasswordRequired"`
	RequiredAttributes  []string          `json:"requiredAttributes,omitempty"`
}

// CheckAuthentication validates the session of the cached current user.
// It reports false without any identity call when there is no current user,
// and fails with a SessionError when the session cannot be validated.
func (a *Adapter) CheckAuthentication(ctx context.Context) (bool, error) {
	a.state.commit(setAuthenticating(true))

	user, err := a.pool.CurrentUser(ctx)
	if err != nil {
		a.state.commit(setAuthenticating(false))
		return false, err
	}
	if user == nil {
		a.state.commit(setAuthenticating(false), setAuthenticated(nil))
		return false, nil
	}

	f := newFuture[bool]()
	user.GetSession(ctx, once(func(session *userpool.Session, err error) {
		if err != nil {
			a.state.commit(setAuthenticating(false), setAuthenticated(nil))
			f.reject(&SessionError{Username: user.Username(), Cause: err})
			return
		}
		a.state.commit(setAuthenticating(false), setAuthenticated(user))
		f.resolve(true)
	}))
	return f.await(ctx)
}

// GetUserSession returns the validated session of the current user, or nil
// when there is no current user. State is not changed.
func (a *Adapter) GetUserSession(ctx context.Context) (*userpool.Session, error) {
	user, err := a.pool.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	f := newFuture[*userpool.Session]()
	user.GetSession(ctx, once(func(session *userpool.Session, err error) {
		f.settle(session, err)
	}))
	return f.await(ctx)
}

// AuthenticateUser signs a user in. When the provider demands a new password
// the call succeeds with AuthResult.NewPasswordRequired set, the challenge
// attributes are cached in State and Authenticated stays unset.
func (a *Adapter) AuthenticateUser(ctx context.Context, in Credentials) (*AuthResult, error) {
	a.state.commit(setAuthenticating(true))

	user := a.pool.NewUser(in.Email)
	f := newFuture[*AuthResult]()
	user.AuthenticateUser(ctx, userpool.Credentials{Username: in.Email, Password: in.Password}, onceHandler(userpool.AuthHandler{
		OnSuccess: func(session *userpool.Session) {
			a.state.commit(setAuthenticating(false), setAuthenticated(user))
			a.log.Info("user authenticated", "username", user.Username())
			f.resolve(&AuthResult{Session: session})
		},
		OnFailure: func(err error) {
			a.state.commit(setAuthenticating(false))
			f.reject(err)
		},
		NewPasswordRequired: func(userAttributes map[string]string, requiredAttributes []string) {
			a.state.commit(setAuthenticating(false), setNewPasswordRequired(user, userAttributes, requiredAttributes))
			a.log.Info("new password required", "username", user.Username())
			f.resolve(&AuthResult{NewPasswordRequired: true, RequiredAttributes: requiredAttributes})
		},
	}))
	return f.await(ctx)
}

// CompleteNewPasswordChallenge answers the pending forced password challenge
// with the cached challenge attributes, immutable ones stripped. The pending
// challenge is kept when the provider rejects the answer.
func (a *Adapter) CompleteNewPasswordChallenge(ctx context.Context, in NewPasswordInput) (*AuthResult, error) {
	user, attributes := a.state.pendingChallenge()
	if user == nil || (in.Email != "" && in.Email != user.Username()) {
		return nil, ErrNoPendingChallenge
	}

	a.state.commit(setAuthenticating(true))

	f := newFuture[*AuthResult]()
	user.CompleteNewPasswordChallenge(ctx, in.NewPassword, stripImmutableAttributes(attributes), onceHandler(userpool.AuthHandler{
		OnSuccess: func(session *userpool.Session) {
			a.state.commit(setAuthenticating(false), setAuthenticated(user))
			a.log.Info("new password set", "username", user.Username())
			f.resolve(&AuthResult{Session: session})
		},
		OnFailure: func(err error) {
			a.state.commit(setAuthenticating(false))
			f.reject(err)
		},
		NewPasswordRequired: func(userAttributes map[string]string, requiredAttributes []string) {
			a.state.commit(setAuthenticating(false), setNewPasswordRequired(user, userAttributes, requiredAttributes))
			f.resolve(&AuthResult{NewPasswordRequired: true, RequiredAttributes: requiredAttributes})
		},
	}))
	return f.await(ctx)
}

func stripImmutableAttributes(attributes map[string]string) map[string]string {
	out := copyAttributes(attributes)
	if out == nil {
		out = map[string]string{}
	}
	for _, name := range immutableAttributes {
		delete(out, name)
	}
	return out
}

// SignOut drops the local session of the current user and clears the signed-in
// state. The local sign-out is fire-and-forget: if it fails the state is
// cleared anyway. When the current user cannot be looked up, the handle
// recorded at sign-in is signed out instead. Without any user nothing changes.
func (a *Adapter) SignOut(ctx context.Context) {
	user, err := a.pool.CurrentUser(ctx)
	if err != nil {
		a.log.Error(err, "failed to look up current user for sign-out")
		user = a.state.authenticatedUser()
	}
	if user == nil {
		return
	}

	if err := user.SignOut(ctx); err != nil {
		a.log.Error(err, "local sign-out failed", "username", user.Username())
	}
	a.state.commit(signedOut())
	a.log.Info("user signed out", "username", user.Username())
}
