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
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/cogniteo/cognito-session/pkg/tokenstore"
	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// awsUser implements the userpool.User interface for AWS Cognito
type awsUser struct {
	pool     *AWSPool
	username string

	mu               sync.Mutex
	challengeSession *string
}

func (u *awsUser) Username() string {
	return u.username
}

// GetSession returns the cached session, refreshing it with the refresh token when expired
func (u *awsUser) GetSession(ctx context.Context, cb userpool.Callback[*userpool.Session]) {
	u.pool.run(ctx, func(ctx context.Context) {
		cb(u.session(ctx))
	})
}

func (u *awsUser) session(ctx context.Context) (*userpool.Session, error) {
	tokens, err := u.pool.store.Load(ctx, u.pool.clientID, u.username)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, ErrNoCachedSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", u.username, err)
	}

	session, err := sessionFromTokens(u.username, tokens)
	if err == nil && session.IsValid(u.pool.now()) {
		return session, nil
	}
	if tokens.RefreshToken == "" {
		if err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return u.refresh(ctx, tokens.RefreshToken)
}

func (u *awsUser) refresh(ctx context.Context, refreshToken string) (*userpool.Session, error) {
	u.pool.log.V(1).Info("calling InitiateAuth", "flow", types.AuthFlowTypeRefreshTokenAuth, "username", u.username)
	output, err := u.pool.cognito.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(u.pool.clientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session for %s: %w", u.username, err)
	}
	if output.AuthenticationResult == nil {
		return nil, fmt.Errorf("failed to refresh session for %s: empty authentication result", u.username)
	}
	return u.cacheTokens(ctx, output.AuthenticationResult, refreshToken)
}

// cacheTokens stores the issued tokens as the current user's. fallbackRefresh
// is kept when the provider did not rotate the refresh token.
func (u *awsUser) cacheTokens(ctx context.Context, result *types.AuthenticationResultType, fallbackRefresh string) (*userpool.Session, error) {
	tokens := &tokenstore.Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = fallbackRefresh
	}

	session, err := sessionFromTokens(u.username, tokens)
	if err != nil {
		return nil, err
	}
	if err := u.pool.store.Save(ctx, u.pool.clientID, u.username, tokens); err != nil {
		return nil, fmt.Errorf("failed to cache session for %s: %w", u.username, err)
	}
	return session, nil
}

// AuthenticateUser signs the user in with USER_PASSWORD_AUTH
func (u *awsUser) AuthenticateUser(ctx context.Context, credentials userpool.Credentials, handler userpool.AuthHandler) {
	u.pool.run(ctx, func(ctx context.Context) {
		username := credentials.Username
		if username == "" {
			username = u.username
		}

		u.pool.log.V(1).Info("calling InitiateAuth", "flow", types.AuthFlowTypeUserPasswordAuth, "username", username)
		output, err := u.pool.cognito.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
			AuthFlow: types.AuthFlowTypeUserPasswordAuth,
			ClientId: aws.String(u.pool.clientID),
			AuthParameters: map[string]string{
				"USERNAME": username,
				"PASSWORD": credentials.Password,
			},
		})
		if err != nil {
			onFailure(handler, fmt.Errorf("failed to authenticate user %s: %w", username, err))
			return
		}

		u.handleAuthResponse(ctx, output.AuthenticationResult, output.ChallengeName, output.ChallengeParameters, output.Session, handler)
	})
}

// CompleteNewPasswordChallenge answers the pending NEW_PASSWORD_REQUIRED challenge
func (u *awsUser) CompleteNewPasswordChallenge(ctx context.Context, newPassword string, userAttributes map[string]string, handler userpool.AuthHandler) {
	u.pool.run(ctx, func(ctx context.Context) {
		challengeSession := u.pendingChallenge()
		if challengeSession == nil {
			onFailure(handler, ErrNoChallengeSession)
			return
		}

		u.pool.log.V(1).Info("calling RespondToAuthChallenge", "challenge", types.ChallengeNameTypeNewPasswordRequired, "username", u.username)
		output, err := u.pool.cognito.RespondToAuthChallenge(ctx, &cognitoidentityprovider.RespondToAuthChallengeInput{
			ChallengeName:      types.ChallengeNameTypeNewPasswordRequired,
			ClientId:           aws.String(u.pool.clientID),
			ChallengeResponses: newPasswordChallengeResponses(u.username, newPassword, userAttributes),
			Session:            challengeSession,
		})
		if err != nil {
			onFailure(handler, fmt.Errorf("failed to complete new password challenge for %s: %w", u.username, err))
			return
		}

		u.handleAuthResponse(ctx, output.AuthenticationResult, output.ChallengeName, output.ChallengeParameters, output.Session, handler)
	})
}

func (u *awsUser) handleAuthResponse(ctx context.Context, result *types.AuthenticationResultType, challenge types.ChallengeNameType,
	params map[string]string, challengeSession *string, handler userpool.AuthHandler) {
	if result != nil {
		u.setPendingChallenge(nil)
		session, err := u.cacheTokens(ctx, result, "")
		if err != nil {
			onFailure(handler, err)
			return
		}
		if handler.OnSuccess != nil {
			handler.OnSuccess(session)
		}
		return
	}

	switch challenge {
	case types.ChallengeNameTypeNewPasswordRequired:
		if handler.NewPasswordRequired == nil {
			onFailure(handler, &UnsupportedChallengeError{Name: string(challenge)})
			return
		}
		userAttributes, required, err := parseNewPasswordChallenge(params)
		if err != nil {
			onFailure(handler, err)
			return
		}
		u.setPendingChallenge(challengeSession)
		handler.NewPasswordRequired(userAttributes, required)
	case "":
		onFailure(handler, fmt.Errorf("authentication of %s returned neither tokens nor a challenge", u.username))
	default:
		onFailure(handler, &UnsupportedChallengeError{Name: string(challenge)})
	}
}

func (u *awsUser) pendingChallenge() *string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.challengeSession
}

func (u *awsUser) setPendingChallenge(session *string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.challengeSession = session
}

// GetUserAttributes fetches the attributes of the signed-in user
func (u *awsUser) GetUserAttributes(ctx context.Context, cb userpool.Callback[[]userpool.Attribute]) {
	u.pool.run(ctx, func(ctx context.Context) {
		session, err := u.session(ctx)
		if err != nil {
			cb(nil, err)
			return
		}

		u.pool.log.V(1).Info("calling GetUser", "username", u.username)
		output, err := u.pool.cognito.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
			AccessToken: aws.String(session.AccessToken),
		})
		if err != nil {
			cb(nil, fmt.Errorf("failed to get attributes of %s: %w", u.username, err))
			return
		}
		cb(fromAttributeTypes(output.UserAttributes), nil)
	})
}

// ChangePassword changes the password of the signed-in user
func (u *awsUser) ChangePassword(ctx context.Context, oldPassword, newPassword string, cb userpool.Callback[struct{}]) {
	u.pool.run(ctx, func(ctx context.Context) {
		session, err := u.session(ctx)
		if err != nil {
			cb(struct{}{}, err)
			return
		}

		u.pool.log.V(1).Info("calling ChangePassword", "username", u.username)
		_, err = u.pool.cognito.ChangePassword(ctx, &cognitoidentityprovider.ChangePasswordInput{
			AccessToken:      aws.String(session.AccessToken),
			PreviousPassword: aws.String(oldPassword),
			ProposedPassword: aws.String(newPassword),
		})
		if err != nil {
			cb(struct{}{}, fmt.Errorf("failed to change password of %s: %w", u.username, err))
			return
		}
		cb(struct{}{}, nil)
	})
}

// ForgotPassword sends a password reset code to the user
func (u *awsUser) ForgotPassword(ctx context.Context, cb userpool.Callback[*userpool.CodeDelivery]) {
	u.pool.run(ctx, func(ctx context.Context) {
		u.pool.log.V(1).Info("calling ForgotPassword", "username", u.username)
		output, err := u.pool.cognito.ForgotPassword(ctx, &cognitoidentityprovider.ForgotPasswordInput{
			ClientId: aws.String(u.pool.clientID),
			Username: aws.String(u.username),
		})
		if err != nil {
			cb(nil, fmt.Errorf("failed to start password reset for %s: %w", u.username, err))
			return
		}
		cb(fromCodeDeliveryDetails(output.CodeDeliveryDetails), nil)
	})
}

// ConfirmPassword sets a new password using a password reset code
func (u *awsUser) ConfirmPassword(ctx context.Context, verificationCode, newPassword string, cb userpool.Callback[struct{}]) {
	u.pool.run(ctx, func(ctx context.Context) {
		u.pool.log.V(1).Info("calling ConfirmForgotPassword", "username", u.username)
		_, err := u.pool.cognito.ConfirmForgotPassword(ctx, &cognitoidentityprovider.ConfirmForgotPasswordInput{
			ClientId:         aws.String(u.pool.clientID),
			Username:         aws.String(u.username),
			ConfirmationCode: aws.String(verificationCode),
			Password:         aws.String(newPassword),
		})
		if err != nil {
			cb(struct{}{}, fmt.Errorf("failed to confirm password reset for %s: %w", u.username, err))
			return
		}
		cb(struct{}{}, nil)
	})
}

// ConfirmRegistration confirms a registration using the code sent at sign-up
func (u *awsUser) ConfirmRegistration(ctx context.Context, verificationCode string, forceAliasCreation bool, cb userpool.Callback[struct{}]) {
	u.pool.run(ctx, func(ctx context.Context) {
		u.pool.log.V(1).Info("calling ConfirmSignUp", "username", u.username)
		_, err := u.pool.cognito.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
			ClientId:           aws.String(u.pool.clientID),
			Username:           aws.String(u.username),
			ConfirmationCode:   aws.String(verificationCode),
			ForceAliasCreation: forceAliasCreation,
		})
		if err != nil {
			cb(struct{}{}, fmt.Errorf("failed to confirm registration of %s: %w", u.username, err))
			return
		}
		cb(struct{}{}, nil)
	})
}

// ResendConfirmationCode re-sends the registration code
func (u *awsUser) ResendConfirmationCode(ctx context.Context, cb userpool.Callback[*userpool.CodeDelivery]) {
	u.pool.run(ctx, func(ctx context.Context) {
		u.pool.log.V(1).Info("calling ResendConfirmationCode", "username", u.username)
		output, err := u.pool.cognito.ResendConfirmationCode(ctx, &cognitoidentityprovider.ResendConfirmationCodeInput{
			ClientId: aws.String(u.pool.clientID),
			Username: aws.String(u.username),
		})
		if err != nil {
			cb(nil, fmt.Errorf("failed to resend confirmation code to %s: %w", u.username, err))
			return
		}
		cb(fromCodeDeliveryDetails(output.CodeDeliveryDetails), nil)
	})
}

// SignOut drops the locally cached session. Tokens already issued stay valid
// at the provider until they expire.
func (u *awsUser) SignOut(ctx context.Context) error {
	u.setPendingChallenge(nil)
	if err := u.pool.store.Clear(ctx, u.pool.clientID, u.username); err != nil {
		return fmt.Errorf("failed to sign out %s: %w", u.username, err)
	}
	return nil
}

func onFailure(handler userpool.AuthHandler, err error) {
	if handler.OnFailure != nil {
		handler.OnFailure(err)
	}
}
