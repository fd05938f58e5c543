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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cogniteo/cognito-session/pkg/tokenstore"
	"github.com/cogniteo/cognito-session/pkg/userpool"
)

// tokenClaims reads the claims of a token without verifying its signature.
// Verification is left to the resource servers consuming the tokens.
func tokenClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func tokenExpiry(claims jwt.MapClaims) (time.Time, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}

// sessionFromTokens builds a session from cached tokens. The session expires
// with the earlier of the id and access tokens.
func sessionFromTokens(username string, tokens *tokenstore.Tokens) (*userpool.Session, error) {
	if tokens == nil || tokens.IDToken == "" || tokens.AccessToken == "" {
		return nil, fmt.Errorf("incomplete tokens for user %s", username)
	}

	idClaims, err := tokenClaims(tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read id token: %w", err)
	}
	accessClaims, err := tokenClaims(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	idExp, err := tokenExpiry(idClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to read id token expiry: %w", err)
	}
	accessExp, err := tokenExpiry(accessClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token expiry: %w", err)
	}

	expiresAt := idExp
	if accessExp.Before(expiresAt) {
		expiresAt = accessExp
	}

	session := &userpool.Session{
		Username:     username,
		IDToken:      tokens.IDToken,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if name, ok := accessClaims["username"].(string); ok && name != "" {
		session.Username = name
	} else if name, ok := idClaims["cognito:username"].(string); ok && name != "" {
		session.Username = name
	}
	return session, nil
}
