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

package userpool

import (
	"context"
)

// Callback receives the outcome of a single identity client call.
// Implementations invoke it exactly once per call.
type Callback[T any] func(result T, err error)

// AuthHandler receives the outcome of an interactive authentication.
// Exactly one of the handlers is invoked per attempt.
type AuthHandler struct {
	// OnSuccess is invoked with the established session
	OnSuccess func(session *Session)

	// OnFailure is invoked with the provider error
	OnFailure func(err error)

	// NewPasswordRequired is invoked when the provider demands a new password
	// before sign-in completes. userAttributes are the attributes the provider
	// returned with the challenge, requiredAttributes the names it expects.
	NewPasswordRequired func(userAttributes map[string]string, requiredAttributes []string)
}

// Credentials identify a user for interactive authentication
type Credentials struct {
	Username string
	Password string
}

// Pool defines the user pool level operations of an identity client
type Pool interface {
	// ClientID returns the app client identifier the pool is bound to
	ClientID() string

	// UserPoolID returns the user pool identifier
	UserPoolID() string

	// CurrentUser returns the locally cached handle of the last signed-in
	// user, or nil when there is none. No network call is made.
	CurrentUser(ctx context.Context) (User, error)

	// NewUser returns a handle for the given username. No network call is made.
	NewUser(username string) User

	// SignUp registers a new user
	SignUp(ctx context.Context, username, password string, attributes, validationData []Attribute, cb Callback[*SignUpResult])
}

// User defines the per-user operations of an identity client
type User interface {
	// Username returns the username the handle is bound to
	Username() string

	// GetSession returns the cached session, refreshing it when expired
	GetSession(ctx context.Context, cb Callback[*Session])

	// GetUserAttributes fetches the attributes of the signed-in user
	GetUserAttributes(ctx context.Context, cb Callback[[]Attribute])

	// AuthenticateUser starts interactive authentication
	AuthenticateUser(ctx context.Context, credentials Credentials, handler AuthHandler)

	// CompleteNewPasswordChallenge answers a pending new password challenge
	CompleteNewPasswordChallenge(ctx context.Context, newPassword string, userAttributes map[string]string, handler AuthHandler)

	// ChangePassword changes the password of the signed-in user
	ChangePassword(ctx context.Context, oldPassword, newPassword string, cb Callback[struct{}])

	// ForgotPassword sends a password reset code to the user
	ForgotPassword(ctx context.Context, cb Callback[*CodeDelivery])

	// ConfirmPassword sets a new password using a password reset code
	ConfirmPassword(ctx context.Context, verificationCode, newPassword string, cb Callback[struct{}])

	// ConfirmRegistration confirms a registration using the code sent at sign-up
	ConfirmRegistration(ctx context.Context, verificationCode string, forceAliasCreation bool, cb Callback[struct{}])

	// ResendConfirmationCode re-sends the registration code
	ResendConfirmationCode(ctx context.Context, cb Callback[*CodeDelivery])

	// SignOut invalidates the locally cached session of the user
	SignOut(ctx context.Context) error
}
