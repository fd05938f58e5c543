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
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cogniteo/cognito-session/pkg/cognito"
)

var _ = Describe("Session Adapter", func() {
	const (
		email    = "a@b.com"
		password = "Passw0rd!"
	)

	var (
		ctx     context.Context
		pool    *cognito.MockPool
		adapter *Adapter
	)

	BeforeEach(func() {
		ctx = context.Background()
		pool = cognito.NewMockPool()

		var err error
		adapter, err = New(ctx, Config{}, WithPool(pool), WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
	})

	Context("When nobody is signed in", func() {
		It("should fail operations that need a user without calling the pool", func() {
			_, err := adapter.GetUserAttributes(ctx)
			Expect(err).To(MatchError(ErrUnauthenticated))

			err = adapter.ChangePassword(ctx, ChangePasswordInput{CurrentPassword: password, NewPassword: "N3wPassw0rd!"})
			Expect(err).To(MatchError(ErrUnauthenticated))

			Expect(pool.TotalCalls()).To(BeZero())
		})

		It("should report unauthenticated without validating a session", func() {
			ok, err := adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			state := adapter.State()
			Expect(state.Authenticated).To(BeNil())
			Expect(state.Authenticating).To(BeFalse())
			Expect(pool.Calls("GetSession")).To(BeZero())
		})

		It("should return no session", func() {
			session, err := adapter.GetUserSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(session).To(BeNil())
		})

		It("should treat sign-out as a no-op", func() {
			adapter.SignOut(ctx)
			Expect(adapter.State()).To(Equal(State{}))
			Expect(pool.Calls("SignOut")).To(BeZero())
		})
	})

	Context("When checking authentication of a cached user", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, map[string]string{"email": email}, false)
			pool.SetCurrentUser(email)
		})

		It("should mark the user authenticated when the session is valid", func() {
			ok, err := adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			state := adapter.State()
			Expect(state.Authenticated).NotTo(BeNil())
			Expect(state.Authenticated.Username).To(Equal(email))
			Expect(state.Authenticating).To(BeFalse())
		})

		It("should fail with a session error when validation fails", func() {
			cause := &types.NotAuthorizedException{}
			pool.FailSessions(cause)

			ok, err := adapter.CheckAuthentication(ctx)
			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(ErrSession))

			var sessionErr *SessionError
			Expect(errors.As(err, &sessionErr)).To(BeTrue())
			Expect(sessionErr.Username).To(Equal(email))
			Expect(errors.Is(err, cause)).To(BeTrue())

			state := adapter.State()
			Expect(state.Authenticated).To(BeNil())
			Expect(state.Authenticating).To(BeFalse())
		})

		It("should clear a previous sign-in when validation later fails", func() {
			_, err := adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.State().Authenticated).NotTo(BeNil())

			pool.FailSessions(cognito.ErrSessionExpired)
			_, err = adapter.CheckAuthentication(ctx)
			Expect(err).To(MatchError(ErrSession))
			Expect(adapter.State().Authenticated).To(BeNil())
		})

		It("should return the validated session", func() {
			session, err := adapter.GetUserSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(session).NotTo(BeNil())
			Expect(session.Username).To(Equal(email))
			Expect(adapter.State()).To(Equal(State{}))
		})
	})

	Context("When signing in", func() {
		It("should set the authenticated user on success", func() {
			pool.AddUser(email, password, map[string]string{"email": email}, false)

			result, err := adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.NewPasswordRequired).To(BeFalse())
			Expect(result.Session).NotTo(BeNil())

			state := adapter.State()
			Expect(state.Authenticated).NotTo(BeNil())
			Expect(state.Authenticated.Username).To(Equal(email))
			Expect(state.NewPasswordRequired).To(BeFalse())
			Expect(state.Authenticating).To(BeFalse())
		})

		It("should return the provider error and stay signed out on bad credentials", func() {
			pool.AddUser(email, password, nil, false)

			_, err := adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: "wrong"})
			var notAuthorized *types.NotAuthorizedException
			Expect(errors.As(err, &notAuthorized)).To(BeTrue())

			state := adapter.State()
			Expect(state.Authenticated).To(BeNil())
			Expect(state.Authenticating).To(BeFalse())
		})

		It("should record a forced password challenge without signing in", func() {
			pool.AddUser(email, password, map[string]string{"email": email, "name": "A"}, true)

			result, err := adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.NewPasswordRequired).To(BeTrue())
			Expect(result.Session).To(BeNil())

			state := adapter.State()
			Expect(state.NewPasswordRequired).To(BeTrue())
			Expect(state.Authenticated).To(BeNil())
			Expect(state.PendingUserAttributes).To(HaveKeyWithValue("name", "A"))
		})
	})

	Context("When completing a forced password challenge", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, map[string]string{"email_verified": "true", "name": "A"}, true)

			By("signing in to receive the challenge")
			result, err := adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.NewPasswordRequired).To(BeTrue())
		})

		It("should strip immutable attributes before resubmitting", func() {
			result, err := adapter.CompleteNewPasswordChallenge(ctx, NewPasswordInput{Email: email, NewPassword: "N3wPassw0rd!"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Session).NotTo(BeNil())

			Expect(pool.SubmittedChallengeAttributes(email)).To(Equal(map[string]string{"name": "A"}))

			state := adapter.State()
			Expect(state.Authenticated).NotTo(BeNil())
			Expect(state.Authenticated.Username).To(Equal(email))
			Expect(state.NewPasswordRequired).To(BeFalse())
			Expect(state.PendingUserAttributes).To(BeNil())
			Expect(pool.Password(email)).To(Equal("N3wPassw0rd!"))
		})

		It("should keep the challenge pending when the new password is rejected", func() {
			_, err := adapter.CompleteNewPasswordChallenge(ctx, NewPasswordInput{Email: email, NewPassword: "short"})
			var invalidPassword *types.InvalidPasswordException
			Expect(errors.As(err, &invalidPassword)).To(BeTrue())

			state := adapter.State()
			Expect(state.NewPasswordRequired).To(BeTrue())
			Expect(state.Authenticated).To(BeNil())

			By("retrying with a valid password")
			_, err = adapter.CompleteNewPasswordChallenge(ctx, NewPasswordInput{Email: email, NewPassword: "N3wPassw0rd!"})
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.State().Authenticated).NotTo(BeNil())
		})

		It("should refuse a challenge answer for another user", func() {
			_, err := adapter.CompleteNewPasswordChallenge(ctx, NewPasswordInput{Email: "other@b.com", NewPassword: "N3wPassw0rd!"})
			Expect(err).To(MatchError(ErrNoPendingChallenge))
			Expect(pool.Calls("CompleteNewPasswordChallenge")).To(BeZero())
		})
	})

	It("should refuse to complete a challenge that was never issued", func() {
		_, err := adapter.CompleteNewPasswordChallenge(ctx, NewPasswordInput{Email: email, NewPassword: "N3wPassw0rd!"})
		Expect(err).To(MatchError(ErrNoPendingChallenge))
		Expect(pool.TotalCalls()).To(BeZero())
	})

	Context("When fetching attributes", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, map[string]string{"email": email}, false)
			pool.SetCurrentUser(email)
		})

		It("should flatten them into the authenticated user", func() {
			attributes, err := adapter.GetUserAttributes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(attributes).To(HaveKeyWithValue("email", email))

			state := adapter.State()
			Expect(state.Authenticated).NotTo(BeNil())
			Expect(state.Authenticated.Attributes).To(HaveKeyWithValue("email", email))
		})

		It("should keep fetched attributes across a new authentication check", func() {
			_, err := adapter.GetUserAttributes(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.State().Authenticated.Attributes).To(HaveKeyWithValue("email", email))
		})

		It("should drop attributes removed at the pool", func() {
			pool.AddUser(email, password, map[string]string{"email": email, "phone_number": "+1"}, false)
			pool.SetCurrentUser(email)

			attributes, err := adapter.GetUserAttributes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(attributes).To(HaveKey("phone_number"))

			pool.RemoveAttribute(email, "phone_number")

			attributes, err = adapter.GetUserAttributes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(attributes).NotTo(HaveKey("phone_number"))
			Expect(adapter.State().Authenticated.Attributes).To(Equal(attributes))
		})

		It("should return the session error unchanged", func() {
			pool.FailSessions(cognito.ErrSessionExpired)

			_, err := adapter.GetUserAttributes(ctx)
			Expect(err).To(MatchError(cognito.ErrSessionExpired))
			Expect(pool.Calls("GetUserAttributes")).To(BeZero())
		})

		It("should hand out copies of the state", func() {
			_, err := adapter.GetUserAttributes(ctx)
			Expect(err).NotTo(HaveOccurred())

			state := adapter.State()
			state.Authenticated.Attributes["email"] = "changed"
			Expect(adapter.State().Authenticated.Attributes).To(HaveKeyWithValue("email", email))
		})
	})

	Context("When signing out", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, nil, false)
			_, err := adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should clear the authenticated user", func() {
			adapter.SignOut(ctx)
			Expect(adapter.State().Authenticated).To(BeNil())
			Expect(pool.Calls("SignOut")).To(Equal(1))

			ok, err := adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should clear the authenticated user even if local sign-out fails", func() {
			pool.FailSignOut(errors.New("storage unavailable"))

			adapter.SignOut(ctx)
			Expect(adapter.State().Authenticated).To(BeNil())
		})

		It("should sign out the recorded user when the current user cannot be looked up", func() {
			pool.FailCurrentUser(errors.New("token store unavailable"))

			adapter.SignOut(ctx)
			Expect(adapter.State().Authenticated).To(BeNil())
			Expect(pool.Calls("SignOut")).To(Equal(1))

			pool.FailCurrentUser(nil)
			ok, err := adapter.CheckAuthentication(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should do nothing when the lookup fails and nobody is recorded", func() {
			adapter.SignOut(ctx)
			pool.FailCurrentUser(errors.New("token store unavailable"))

			adapter.SignOut(ctx)
			Expect(adapter.State().Authenticated).To(BeNil())
			Expect(pool.Calls("SignOut")).To(Equal(1))
		})

		It("should be idempotent", func() {
			adapter.SignOut(ctx)
			signedOut := adapter.State()

			adapter.SignOut(ctx)
			Expect(adapter.State()).To(Equal(signedOut))
			Expect(pool.Calls("SignOut")).To(Equal(1))
		})
	})

	Context("When changing the password", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, nil, false)
			pool.SetCurrentUser(email)
		})

		It("should change it for the current user", func() {
			err := adapter.ChangePassword(ctx, ChangePasswordInput{CurrentPassword: password, NewPassword: "N3wPassw0rd!"})
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Password(email)).To(Equal("N3wPassw0rd!"))
		})

		It("should return the provider error for a wrong current password", func() {
			err := adapter.ChangePassword(ctx, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "N3wPassw0rd!"})
			var notAuthorized *types.NotAuthorizedException
			Expect(errors.As(err, &notAuthorized)).To(BeTrue())
			Expect(pool.Password(email)).To(Equal(password))
		})
	})

	Context("When resetting a forgotten password", func() {
		BeforeEach(func() {
			pool.AddUser(email, password, map[string]string{"email": email}, false)
		})

		It("should set the new password with the delivered code", func() {
			delivery, err := adapter.ForgotPassword(ctx, ForgotPasswordInput{Email: email})
			Expect(err).NotTo(HaveOccurred())
			Expect(delivery.Destination).To(Equal(email))

			err = adapter.ConfirmPassword(ctx, ConfirmPasswordInput{
				Email:            email,
				VerificationCode: pool.ResetCode(email),
				NewPassword:      "N3wPassw0rd!",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Password(email)).To(Equal("N3wPassw0rd!"))
		})

		It("should reject a wrong code", func() {
			_, err := adapter.ForgotPassword(ctx, ForgotPasswordInput{Email: email})
			Expect(err).NotTo(HaveOccurred())

			err = adapter.ConfirmPassword(ctx, ConfirmPasswordInput{Email: email, VerificationCode: "nope", NewPassword: "N3wPassw0rd!"})
			var mismatch *types.CodeMismatchException
			Expect(errors.As(err, &mismatch)).To(BeTrue())
		})

		It("should not change state", func() {
			_, _ = adapter.ForgotPassword(ctx, ForgotPasswordInput{Email: email})
			Expect(adapter.State()).To(Equal(State{}))
		})
	})

	Context("When registering", func() {
		It("should sign up, resend and confirm", func() {
			result, err := adapter.SignUp(ctx, SignUpInput{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.UserConfirmed).To(BeFalse())
			Expect(result.User.Username()).To(Equal(email))
			Expect(result.CodeDelivery.Destination).To(Equal(email))

			first := pool.ConfirmationCode(email)
			_, err = adapter.ResendConfirmationCode(ctx, ResendConfirmationCodeInput{Email: email})
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.ConfirmationCode(email)).NotTo(Equal(first))

			err = adapter.ConfirmRegistration(ctx, ConfirmRegistrationInput{Email: email, VerificationCode: pool.ConfirmationCode(email)})
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Confirmed(email)).To(BeTrue())

			By("signing in with the confirmed account")
			_, err = adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.State().Authenticated).NotTo(BeNil())
		})

		It("should refuse to sign in before confirmation", func() {
			_, err := adapter.SignUp(ctx, SignUpInput{Email: email, Password: password})
			Expect(err).NotTo(HaveOccurred())

			_, err = adapter.AuthenticateUser(ctx, Credentials{Email: email, Password: password})
			var notConfirmed *types.UserNotConfirmedException
			Expect(errors.As(err, &notConfirmed)).To(BeTrue())
		})

		It("should return the provider error for an existing user", func() {
			pool.AddUser(email, password, nil, false)

			_, err := adapter.SignUp(ctx, SignUpInput{Email: email, Password: password})
			var exists *types.UsernameExistsException
			Expect(errors.As(err, &exists)).To(BeTrue())
		})
	})

	Context("When the caller gives up", func() {
		It("should return the context error and still commit the outcome", func() {
			pool.AddUser(email, password, nil, false)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := adapter.AuthenticateUser(cancelled, Credentials{Email: email, Password: password})
			Expect(err).To(MatchError(context.Canceled))

			Eventually(func() *AuthenticatedUser {
				return adapter.State().Authenticated
			}).ShouldNot(BeNil())
			Eventually(func() bool {
				return adapter.State().Authenticating
			}).Should(BeFalse())
		})
	})
})
