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
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/cogniteo/cognito-session/pkg/session"
)

type commands struct {
	check          *kingpin.CmdClause
	getSession     *kingpin.CmdClause
	login          *kingpin.CmdClause
	attributes     *kingpin.CmdClause
	changePassword *kingpin.CmdClause
	forgotPassword *kingpin.CmdClause
	confirmReset   *kingpin.CmdClause
	signUp         *kingpin.CmdClause
	confirmSignUp  *kingpin.CmdClause
	resendCode     *kingpin.CmdClause
	signOut        *kingpin.CmdClause

	email            string
	password         string
	newPassword      string
	verificationCode string
}

func newCommands(app *kingpin.Application) *commands {
	c := &commands{}

	c.check = app.Command("check", "Validate the session of the cached current user.")
	c.getSession = app.Command("session", "Print the validated session of the cached current user.")

	c.login = app.Command("login", "Sign a user in.")
	c.login.Flag("email", "Email of the user.").Required().StringVar(&c.email)
	c.login.Flag("password", "Password of the user.").Required().StringVar(&c.password)
	c.login.Flag("new-password", "New password to set when the pool demands one.").StringVar(&c.newPassword)

	c.attributes = app.Command("attributes", "Fetch the attributes of the current user.")

	c.changePassword = app.Command("change-password", "Change the password of the current user.")
	c.changePassword.Flag("password", "Current password.").Required().StringVar(&c.password)
	c.changePassword.Flag("new-password", "New password.").Required().StringVar(&c.newPassword)

	c.forgotPassword = app.Command("forgot-password", "Send a password reset code.")
	c.forgotPassword.Flag("email", "Email of the user.").Required().StringVar(&c.email)

	c.confirmReset = app.Command("confirm-password", "Set a new password with a reset code.")
	c.confirmReset.Flag("email", "Email of the user.").Required().StringVar(&c.email)
	c.confirmReset.Flag("code", "Reset code.").Required().StringVar(&c.verificationCode)
	c.confirmReset.Flag("new-password", "New password.").Required().StringVar(&c.newPassword)

	c.signUp = app.Command("sign-up", "Register a new user.")
	c.signUp.Flag("email", "Email of the user.").Required().StringVar(&c.email)
	c.signUp.Flag("password", "Password of the user.").Required().StringVar(&c.password)

	c.confirmSignUp = app.Command("confirm-sign-up", "Confirm a registration.")
	c.confirmSignUp.Flag("email", "Email of the user.").Required().StringVar(&c.email)
	c.confirmSignUp.Flag("code", "Confirmation code.").Required().StringVar(&c.verificationCode)

	c.resendCode = app.Command("resend-code", "Re-send the registration confirmation code.")
	c.resendCode.Flag("email", "Email of the user.").Required().StringVar(&c.email)

	c.signOut = app.Command("sign-out", "Sign the current user out.")

	return c
}

// run executes the parsed command and returns what to print next to the state
func (c *commands) run(ctx context.Context, command string, adapter *session.Adapter) (any, error) {
	switch command {
	case c.check.FullCommand():
		return adapter.CheckAuthentication(ctx)

	case c.getSession.FullCommand():
		return adapter.GetUserSession(ctx)

	case c.login.FullCommand():
		return c.runLogin(ctx, adapter)

	case c.attributes.FullCommand():
		return adapter.GetUserAttributes(ctx)

	case c.changePassword.FullCommand():
		return nil, adapter.ChangePassword(ctx, session.ChangePasswordInput{
			CurrentPassword: c.password,
			NewPassword:     c.newPassword,
		})

	case c.forgotPassword.FullCommand():
		return adapter.ForgotPassword(ctx, session.ForgotPasswordInput{Email: c.email})

	case c.confirmReset.FullCommand():
		return nil, adapter.ConfirmPassword(ctx, session.ConfirmPasswordInput{
			Email:            c.email,
			VerificationCode: c.verificationCode,
			NewPassword:      c.newPassword,
		})

	case c.signUp.FullCommand():
		return adapter.SignUp(ctx, session.SignUpInput{Email: c.email, Password: c.password})

	case c.confirmSignUp.FullCommand():
		return nil, adapter.ConfirmRegistration(ctx, session.ConfirmRegistrationInput{
			Email:            c.email,
			VerificationCode: c.verificationCode,
		})

	case c.resendCode.FullCommand():
		return adapter.ResendConfirmationCode(ctx, session.ResendConfirmationCodeInput{Email: c.email})

	case c.signOut.FullCommand():
		adapter.SignOut(ctx)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command %q", command)
}

// runLogin signs in and answers a forced password challenge in the same
// process, since the challenge session is not cached between runs.
func (c *commands) runLogin(ctx context.Context, adapter *session.Adapter) (any, error) {
	result, err := adapter.AuthenticateUser(ctx, session.Credentials{Email: c.email, Password: c.password})
	if err != nil {
		return nil, err
	}
	if !result.NewPasswordRequired || c.newPassword == "" {
		return result, nil
	}
	return adapter.CompleteNewPasswordChallenge(ctx, session.NewPasswordInput{
		Email:       c.email,
		NewPassword: c.newPassword,
	})
}
