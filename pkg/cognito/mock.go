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

package cognito

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/google/uuid"

	"github.com/cogniteo/cognito-session/pkg/userpool"
)

const (
	mockUserPoolID = "us-east-1_Mock"
	mockClientID   = "mock-client"
)

type mockAccount struct {
	password            string
	attributes          map[string]string
	confirmed           bool
	forcePasswordChange bool
	confirmationCode    string
	resetCode           string
	signedIn            bool
	challengePending    bool
	submittedAttributes map[string]string
}

// MockPool implements the userpool.Pool interface in memory for testing and
// offline use. Callbacks fire on their own goroutine like the AWS pool's.
type MockPool struct {
	mu          sync.Mutex
	accounts    map[string]*mockAccount
	current     string
	sessionErr  error
	signOutErr  error
	currentErr  error
	calls       map[string]int
	codeCounter int
}

// NewMockPool creates a new empty mock pool
func NewMockPool() *MockPool {
	return &MockPool{
		accounts: make(map[string]*mockAccount),
		calls:    make(map[string]int),
	}
}

// AddUser adds a confirmed account. forcePasswordChange makes the next sign-in
// answer with a new password challenge, as for administratively created users.
func (m *MockPool) AddUser(username, password string, attributes map[string]string, forcePasswordChange bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attrs := map[string]string{"sub": uuid.NewString()}
	for name, value := range attributes {
		attrs[name] = value
	}
	m.accounts[username] = &mockAccount{
		password:            password,
		attributes:          attrs,
		confirmed:           true,
		forcePasswordChange: forcePasswordChange,
	}
}

// SetCurrentUser marks a user as the cached current user with a valid session
func (m *MockPool) SetCurrentUser(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = username
	if account, ok := m.accounts[username]; ok {
		account.signedIn = true
	}
}

// RemoveAttribute deletes an attribute of a user, as an administrator would
func (m *MockPool) RemoveAttribute(username, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		delete(account.attributes, name)
	}
}

// FailSessions makes every session lookup fail with err (nil restores normal behavior)
func (m *MockPool) FailSessions(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionErr = err
}

// FailSignOut makes local sign-out fail with err (nil restores normal behavior)
func (m *MockPool) FailSignOut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOutErr = err
}

// FailCurrentUser makes CurrentUser fail with err, as when the token store is
// unreachable (nil restores normal behavior)
func (m *MockPool) FailCurrentUser(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentErr = err
}

// Calls returns how many times an operation was invoked
func (m *MockPool) Calls(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

// TotalCalls returns how many identity operations were invoked
func (m *MockPool) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ConfirmationCode returns the last registration code sent to a user
func (m *MockPool) ConfirmationCode(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account.confirmationCode
	}
	return ""
}

// ResetCode returns the last password reset code sent to a user
func (m *MockPool) ResetCode(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account.resetCode
	}
	return ""
}

// SubmittedChallengeAttributes returns the attributes last sent with a new password challenge answer
func (m *MockPool) SubmittedChallengeAttributes(username string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account.submittedAttributes
	}
	return nil
}

// Password returns the current password of a user
func (m *MockPool) Password(username string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account.password
	}
	return ""
}

// Confirmed reports whether a user confirmed its registration
func (m *MockPool) Confirmed(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account.confirmed
	}
	return false
}

func (m *MockPool) ClientID() string {
	return mockClientID
}

func (m *MockPool) UserPoolID() string {
	return mockUserPoolID
}

// CurrentUser returns the cached current user
func (m *MockPool) CurrentUser(ctx context.Context) (userpool.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	if m.current == "" {
		return nil, nil
	}
	return &mockUser{pool: m, username: m.current}, nil
}

// NewUser returns a handle for the given username
func (m *MockPool) NewUser(username string) userpool.User {
	return &mockUser{pool: m, username: username}
}

// SignUp registers an unconfirmed account and sends it a confirmation code
func (m *MockPool) SignUp(ctx context.Context, username, password string, attributes, validationData []userpool.Attribute, cb userpool.Callback[*userpool.SignUpResult]) {
	go func() {
		result, err := m.signUp(username, password, attributes)
		cb(result, err)
	}()
}

func (m *MockPool) signUp(username, password string, attributes []userpool.Attribute) (*userpool.SignUpResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SignUp"]++

	if _, exists := m.accounts[username]; exists {
		return nil, &types.UsernameExistsException{Message: aws.String("User already exists")}
	}
	if len(password) < 8 {
		return nil, &types.InvalidPasswordException{Message: aws.String("Password did not conform with policy")}
	}

	attrs := userpool.Flatten(attributes)
	attrs["sub"] = uuid.NewString()
	account := &mockAccount{
		password:         password,
		attributes:       attrs,
		confirmationCode: m.nextCode(),
	}
	m.accounts[username] = account

	return &userpool.SignUpResult{
		User:         &mockUser{pool: m, username: username},
		UserSub:      attrs["sub"],
		CodeDelivery: mockDelivery(attrs["email"]),
	}, nil
}

func (m *MockPool) nextCode() string {
	m.codeCounter++
	return fmt.Sprintf("%06d", m.codeCounter)
}

func (m *MockPool) account(username string) (*mockAccount, error) {
	account, ok := m.accounts[username]
	if !ok {
		return nil, &types.UserNotFoundException{Message: aws.String("User does not exist.")}
	}
	return account, nil
}

func mockDelivery(destination string) *userpool.CodeDelivery {
	return &userpool.CodeDelivery{
		AttributeName:  "email",
		DeliveryMedium: string(types.DeliveryMediumTypeEmail),
		Destination:    destination,
	}
}

func mockSession(username string) *userpool.Session {
	return &userpool.Session{
		Username:     username,
		IDToken:      "mock-id-token-" + username,
		AccessToken:  "mock-access-token-" + username,
		RefreshToken: "mock-refresh-token-" + username,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// mockUser implements the userpool.User interface over a MockPool
type mockUser struct {
	pool     *MockPool
	username string
}

func (u *mockUser) Username() string {
	return u.username
}

func (u *mockUser) session() (*userpool.Session, error) {
	m := u.pool
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	account, ok := m.accounts[u.username]
	if !ok || !account.signedIn {
		return nil, ErrNoCachedSession
	}
	return mockSession(u.username), nil
}

func (u *mockUser) GetSession(ctx context.Context, cb userpool.Callback[*userpool.Session]) {
	go func() {
		u.pool.mu.Lock()
		u.pool.calls["GetSession"]++
		session, err := u.session()
		u.pool.mu.Unlock()
		cb(session, err)
	}()
}

func (u *mockUser) GetUserAttributes(ctx context.Context, cb userpool.Callback[[]userpool.Attribute]) {
	go func() {
		attributes, err := u.attributes()
		cb(attributes, err)
	}()
}

func (u *mockUser) attributes() ([]userpool.Attribute, error) {
	m := u.pool
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetUserAttributes"]++

	if _, err := u.session(); err != nil {
		return nil, err
	}
	account, err := m.account(u.username)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(account.attributes))
	for name := range account.attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]userpool.Attribute, 0, len(names))
	for _, name := range names {
		result = append(result, userpool.Attribute{Name: name, Value: account.attributes[name]})
	}
	return result, nil
}

func (u *mockUser) AuthenticateUser(ctx context.Context, credentials userpool.Credentials, handler userpool.AuthHandler) {
	go func() {
		m := u.pool
		m.mu.Lock()
		m.calls["AuthenticateUser"]++

		account, err := m.account(u.username)
		switch {
		case err != nil:
		case account.password != credentials.Password:
			err = &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}
		case !account.confirmed:
			err = &types.UserNotConfirmedException{Message: aws.String("User is not confirmed.")}
		}
		if err != nil {
			m.mu.Unlock()
			onFailure(handler, err)
			return
		}

		if account.forcePasswordChange {
			account.challengePending = true
			attrs := make(map[string]string, len(account.attributes))
			for name, value := range account.attributes {
				if name == "sub" {
					continue
				}
				attrs[name] = value
			}
			m.mu.Unlock()
			if handler.NewPasswordRequired != nil {
				handler.NewPasswordRequired(attrs, nil)
			}
			return
		}

		account.signedIn = true
		m.current = u.username
		m.mu.Unlock()
		if handler.OnSuccess != nil {
			handler.OnSuccess(mockSession(u.username))
		}
	}()
}

func (u *mockUser) CompleteNewPasswordChallenge(ctx context.Context, newPassword string, userAttributes map[string]string, handler userpool.AuthHandler) {
	go func() {
		m := u.pool
		m.mu.Lock()
		m.calls["CompleteNewPasswordChallenge"]++

		account, err := m.account(u.username)
		if err == nil && !account.challengePending {
			err = ErrNoChallengeSession
		}
		if err == nil {
			submitted := make(map[string]string, len(userAttributes))
			for name, value := range userAttributes {
				submitted[name] = value
			}
			account.submittedAttributes = submitted

			for _, name := range []string{"email_verified", "phone_number_verified", "sub"} {
				if _, ok := userAttributes[name]; ok {
					err = &types.InvalidParameterException{Message: aws.String("Cannot modify the non-mutable attribute " + name)}
				}
			}
		}
		if err == nil && len(newPassword) < 8 {
			err = &types.InvalidPasswordException{Message: aws.String("Password did not conform with policy")}
		}
		if err != nil {
			m.mu.Unlock()
			onFailure(handler, err)
			return
		}

		for name, value := range userAttributes {
			account.attributes[name] = value
		}
		account.password = newPassword
		account.forcePasswordChange = false
		account.challengePending = false
		account.signedIn = true
		m.current = u.username
		m.mu.Unlock()
		if handler.OnSuccess != nil {
			handler.OnSuccess(mockSession(u.username))
		}
	}()
}

func (u *mockUser) ChangePassword(ctx context.Context, oldPassword, newPassword string, cb userpool.Callback[struct{}]) {
	go func() {
		cb(struct{}{}, u.changePassword(oldPassword, newPassword))
	}()
}

func (u *mockUser) changePassword(oldPassword, newPassword string) error {
	m := u.pool
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ChangePassword"]++

	if _, err := u.session(); err != nil {
		return err
	}
	account, err := m.account(u.username)
	if err != nil {
		return err
	}
	if account.password != oldPassword {
		return &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}
	}
	if len(newPassword) < 8 {
		return &types.InvalidPasswordException{Message: aws.String("Password did not conform with policy")}
	}
	account.password = newPassword
	return nil
}

func (u *mockUser) ForgotPassword(ctx context.Context, cb userpool.Callback[*userpool.CodeDelivery]) {
	go func() {
		m := u.pool
		m.mu.Lock()
		m.calls["ForgotPassword"]++
		account, err := m.account(u.username)
		if err != nil {
			m.mu.Unlock()
			cb(nil, err)
			return
		}
		account.resetCode = m.nextCode()
		delivery := mockDelivery(account.attributes["email"])
		m.mu.Unlock()
		cb(delivery, nil)
	}()
}

func (u *mockUser) ConfirmPassword(ctx context.Context, verificationCode, newPassword string, cb userpool.Callback[struct{}]) {
	go func() {
		cb(struct{}{}, u.confirmPassword(verificationCode, newPassword))
	}()
}

func (u *mockUser) confirmPassword(verificationCode, newPassword string) error {
	m := u.pool
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ConfirmPassword"]++

	account, err := m.account(u.username)
	if err != nil {
		return err
	}
	if account.resetCode == "" || account.resetCode != verificationCode {
		return &types.CodeMismatchException{Message: aws.String("Invalid verification code provided, please try again.")}
	}
	if len(newPassword) < 8 {
		return &types.InvalidPasswordException{Message: aws.String("Password did not conform with policy")}
	}
	account.password = newPassword
	account.resetCode = ""
	return nil
}

func (u *mockUser) ConfirmRegistration(ctx context.Context, verificationCode string, forceAliasCreation bool, cb userpool.Callback[struct{}]) {
	go func() {
		cb(struct{}{}, u.confirmRegistration(verificationCode))
	}()
}

func (u *mockUser) confirmRegistration(verificationCode string) error {
	m := u.pool
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ConfirmRegistration"]++

	account, err := m.account(u.username)
	if err != nil {
		return err
	}
	if account.confirmationCode == "" || account.confirmationCode != verificationCode {
		return &types.CodeMismatchException{Message: aws.String("Invalid verification code provided, please try again.")}
	}
	account.confirmed = true
	account.confirmationCode = ""
	return nil
}

func (u *mockUser) ResendConfirmationCode(ctx context.Context, cb userpool.Callback[*userpool.CodeDelivery]) {
	go func() {
		m := u.pool
		m.mu.Lock()
		m.calls["ResendConfirmationCode"]++
		account, err := m.account(u.username)
		if err == nil && account.confirmed {
			err = &types.InvalidParameterException{Message: aws.String("User is already confirmed.")}
		}
		if err != nil {
			m.mu.Unlock()
			cb(nil, err)
			return
		}
		account.confirmationCode = m.nextCode()
		delivery := mockDelivery(account.attributes["email"])
		m.mu.Unlock()
		cb(delivery, nil)
	}()
}

func (u *mockUser) SignOut(ctx context.Context) error {
	m := u.pool
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SignOut"]++

	if m.signOutErr != nil {
		return m.signOutErr
	}
	if account, ok := m.accounts[u.username]; ok {
		account.signedIn = false
	}
	if m.current == u.username {
		m.current = ""
	}
	return nil
}
