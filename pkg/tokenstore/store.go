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

// Package tokenstore caches the tokens of the last signed-in user of an app
// client, using the same key layout as the Cognito identity SDKs.
package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no tokens are cached for a user
var ErrNotFound = errors.New("tokens not found")

const keyNamespace = "CognitoIdentityServiceProvider"

// Tokens are the tokens cached for a single user
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// Store defines the local cache backing the current-user handle
type Store interface {
	// LastAuthUser returns the username of the last signed-in user of the
	// client, or an empty string when there is none.
	LastAuthUser(ctx context.Context, clientID string) (string, error)

	// Load returns the cached tokens of a user or ErrNotFound
	Load(ctx context.Context, clientID, username string) (*Tokens, error)

	// Save caches the tokens of a user and marks it as the last signed-in user.
	// An empty refresh token removes the cached one.
	Save(ctx context.Context, clientID, username string, tokens *Tokens) error

	// Clear drops the cached tokens of a user and the last signed-in marker.
	// Clearing an absent user is not an error.
	Clear(ctx context.Context, clientID, username string) error
}

func lastAuthUserKey(clientID string) string {
	return keyNamespace + "." + clientID + ".LastAuthUser"
}

func tokenKey(clientID, username, name string) string {
	return keyNamespace + "." + clientID + "." + username + "." + name
}

func idTokenKey(clientID, username string) string {
	return tokenKey(clientID, username, "idToken")
}

func accessTokenKey(clientID, username string) string {
	return tokenKey(clientID, username, "accessToken")
}

func refreshTokenKey(clientID, username string) string {
	return tokenKey(clientID, username, "refreshToken")
}
