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

// ChangePasswordInput changes the password of the signed-in user
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// ForgotPasswordInput starts a password reset
type ForgotPasswordInput struct {
	Email string
}

// ConfirmPasswordInput completes a password reset
type ConfirmPasswordInput struct {
	Email            string
	VerificationCode string
	NewPassword      string
}

// SignUpInput registers a new user
type SignUpInput struct {
	Email    string
	Password string
}

// ConfirmRegistrationInput confirms a registration
type ConfirmRegistrationInput struct {
	Email            string
	VerificationCode string
}

// ResendConfirmationCodeInput re-sends the registration code
type ResendConfirmationCodeInput struct {
	Email string
}

// GetUserAttributes fetches the attributes of the current user and stores
// them as State.Authenticated.Attributes.
func (a *Adapter) GetUserAttributes(ctx context.Context) (map[string]string, error) {
	user, err := a.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	f := newFuture[map[string]string]()
	user.GetSession(ctx, once(func(_ *userpool.Session, err error) {
		if err != nil {
			f.reject(err)
			return
		}
		user.GetUserAttributes(ctx, once(func(result []userpool.Attribute, err error) {
			if err != nil {
				f.reject(err)
				return
			}
			attributes := userpool.Flatten(result)
			a.state.commit(setAttributes(user, attributes))
			f.resolve(attributes)
		}))
	}))
	return f.await(ctx)
}

// ChangePassword changes the password of the current user
func (a *Adapter) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return err
	}

	f := newFuture[struct{}]()
	user.GetSession(ctx, once(func(_ *userpool.Session, err error) {
		if err != nil {
			f.reject(err)
			return
		}
		user.ChangePassword(ctx, in.CurrentPassword, in.NewPassword, once(func(_ struct{}, err error) {
			f.settle(struct{}{}, err)
		}))
	}))
	_, err = f.await(ctx)
	return err
}

// ForgotPassword sends a password reset code to the user
func (a *Adapter) ForgotPassword(ctx context.Context, in ForgotPasswordInput) (*userpool.CodeDelivery, error) {
	f := newFuture[*userpool.CodeDelivery]()
	a.pool.NewUser(in.Email).ForgotPassword(ctx, once(func(delivery *userpool.CodeDelivery, err error) {
		f.settle(delivery, err)
	}))
	return f.await(ctx)
}

// ConfirmPassword sets a new password using the code sent by ForgotPassword
func (a *Adapter) ConfirmPassword(ctx context.Context, in ConfirmPasswordInput) error {
	f := newFuture[struct{}]()
	a.pool.NewUser(in.Email).ConfirmPassword(ctx, in.VerificationCode, in.NewPassword, once(func(_ struct{}, err error) {
		f.settle(struct{}{}, err)
	}))
	_, err := f.await(ctx)
	return err
}

// SignUp registers a new user with its email as the only attribute
func (a *Adapter) SignUp(ctx context.Context, in SignUpInput) (*userpool.SignUpResult, error) {
	attributes := []userpool.Attribute{
		{Name: "email", Value: in.Email},
	}

	f := newFuture[*userpool.SignUpResult]()
	a.pool.SignUp(ctx, in.Email, in.Password, attributes, nil, once(func(result *userpool.SignUpResult, err error) {
		f.settle(result, err)
	}))
	return f.await(ctx)
}

// ConfirmRegistration confirms a registration using the code sent at sign-up
func (a *Adapter) ConfirmRegistration(ctx context.Context, in ConfirmRegistrationInput) error {
	f := newFuture[struct{}]()
	a.pool.NewUser(in.Email).ConfirmRegistration(ctx, in.VerificationCode, true, once(func(_ struct{}, err error) {
		f.settle(struct{}{}, err)
	}))
	_, err := f.await(ctx)
	return err
}

// ResendConfirmationCode re-sends the registration code
func (a *Adapter) ResendConfirmationCode(ctx context.Context, in ResendConfirmationCodeInput) (*userpool.CodeDelivery, error) {
	f := newFuture[*userpool.CodeDelivery]()
	a.pool.NewUser(in.Email).ResendConfirmationCode(ctx, once(func(delivery *userpool.CodeDelivery, err error) {
		f.settle(delivery, err)
	}))
	return f.await(ctx)
}
