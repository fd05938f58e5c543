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
	"sync"

	"github.com/go-logr/logr"

	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// AuthenticatedUser is the signed-in user as seen by the host
type AuthenticatedUser struct {
	// User is the identity client handle of the user
	User userpool.User `json:"-"`

	Username string `json:"username"`

	// Attributes are the user attributes fetched by GetUserAttributes
	Attributes map[string]string `json:"attributes,omitempty"`
}

// State is the session state shared with the host
type State struct {
	// Authenticated is the signed-in user, nil when signed out
	Authenticated *AuthenticatedUser `json:"authenticated"`

	// Authenticating is true while an authentication check or attempt is in flight
	Authenticating bool `json:"authenticating"`

	// NewPasswordRequired is true while a forced password challenge is pending
	NewPasswordRequired bool `json:"newPasswordRequired"`

	// PendingUserAttributes are the attributes returned with a pending forced
	// password challenge. Nil when no challenge is pending.
	PendingUserAttributes map[string]string `json:"pendingUserAttributes,omitempty"`

	// RequiredAttributes are the attribute names the pending challenge expects
	RequiredAttributes []string `json:"requiredAttributes,omitempty"`
}

func (s State) clone() State {
	out := s
	if s.Authenticated != nil {
		authenticated := *s.Authenticated
		authenticated.Attributes = copyAttributes(s.Authenticated.Attributes)
		out.Authenticated = &authenticated
	}
	out.PendingUserAttributes = copyAttributes(s.PendingUserAttributes)
	if s.RequiredAttributes != nil {
		out.RequiredAttributes = append([]string(nil), s.RequiredAttributes...)
	}
	return out
}

func copyAttributes(attributes map[string]string) map[string]string {
	if attributes == nil {
		return nil
	}
	out := make(map[string]string, len(attributes))
	for name, value := range attributes {
		out[name] = value
	}
	return out
}

// record is the state plus the handle that received the pending challenge
type record struct {
	State
	challengeUser userpool.User
}

// mutation is a named change to the record
type mutation struct {
	name  string
	apply func(r *record)
}

func setAuthenticating(authenticating bool) mutation {
	return mutation{
		name: "setAuthenticating",
		apply: func(r *record) {
			r.Authenticating = authenticating
		},
	}
}

// setAuthenticated replaces the signed-in user. Attributes already fetched
// for the same username are kept. A signed-in user has no pending challenge.
func setAuthenticated(user userpool.User) mutation {
	return mutation{
		name: "setAuthenticated",
		apply: func(r *record) {
			if user == nil {
				r.Authenticated = nil
				return
			}
			authenticated := &AuthenticatedUser{
				User:     user,
				Username: user.Username(),
			}
			if r.Authenticated != nil && r.Authenticated.Username == authenticated.Username {
				authenticated.Attributes = r.Authenticated.Attributes
			}
			r.Authenticated = authenticated
			clearChallenge(r)
		},
	}
}

// setAttributes replaces the attributes of the signed-in user, creating the
// entry for user when nobody is signed in.
func setAttributes(user userpool.User, attributes map[string]string) mutation {
	return mutation{
		name: "setAttributes",
		apply: func(r *record) {
			if r.Authenticated == nil || r.Authenticated.Username != user.Username() {
				r.Authenticated = &AuthenticatedUser{
					User:     user,
					Username: user.Username(),
				}
				clearChallenge(r)
			}
			r.Authenticated.Attributes = copyAttributes(attributes)
			if r.Authenticated.Attributes == nil {
				r.Authenticated.Attributes = map[string]string{}
			}
		},
	}
}

func setNewPasswordRequired(user userpool.User, userAttributes map[string]string, requiredAttributes []string) mutation {
	return mutation{
		name: "setNewPasswordRequired",
		apply: func(r *record) {
			r.NewPasswordRequired = true
			r.challengeUser = user
			r.PendingUserAttributes = copyAttributes(userAttributes)
			if r.PendingUserAttributes == nil {
				r.PendingUserAttributes = map[string]string{}
			}
			r.RequiredAttributes = append([]string(nil), requiredAttributes...)
		},
	}
}

func signedOut() mutation {
	return mutation{
		name: "signedOut",
		apply: func(r *record) {
			r.Authenticated = nil
			clearChallenge(r)
		},
	}
}

func clearChallenge(r *record) {
	r.NewPasswordRequired = false
	r.challengeUser = nil
	r.PendingUserAttributes = nil
	r.RequiredAttributes = nil
}

// stateStore owns the record. The adapter is its only writer; commits are
// serialized and the last one wins.
type stateStore struct {
	mu     sync.RWMutex
	record record
	log    logr.Logger
}

func newStateStore(log logr.Logger) *stateStore {
	return &stateStore{log: log}
}

// commit applies mutations atomically, in order
func (s *stateStore) commit(mutations ...mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(mutations))
	for _, m := range mutations {
		m.apply(&s.record)
		names = append(names, m.name)
	}
	s.log.V(1).Info("state committed", "mutations", names,
		"authenticated", s.record.Authenticated != nil,
		"authenticating", s.record.Authenticating,
		"newPasswordRequired", s.record.NewPasswordRequired)
}

func (s *stateStore) snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.State.clone()
}

// pendingChallenge returns the handle and attributes of the pending challenge
func (s *stateStore) pendingChallenge() (userpool.User, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.challengeUser, copyAttributes(s.record.PendingUserAttributes)
}

// authenticatedUser returns the handle of the signed-in user, if any
func (s *stateStore) authenticatedUser() userpool.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record.Authenticated == nil {
		return nil
	}
	return s.record.Authenticated.User
}
