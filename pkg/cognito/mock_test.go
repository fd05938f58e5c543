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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniteo/cognito-session/pkg/userpool"
)

func TestMockPool_SignUp(t *testing.T) {
	pool := NewMockPool()
	ctx := context.Background()

	result, err := await(t, func(cb userpool.Callback[*userpool.SignUpResult]) {
		pool.SignUp(ctx, "a@b.com", "Passw0rd!", []userpool.Attribute{{Name: "email", Value: "a@b.com"}}, nil, cb)
	})
	require.NoError(t, err)
	assert.False(t, result.UserConfirmed)
	_, err = uuid.Parse(result.UserSub)
	assert.NoError(t, err, "sub should be a UUID")
	assert.Equal(t, "000001", pool.ConfirmationCode("a@b.com"))

	_, err = await(t, func(cb userpool.Callback[*userpool.SignUpResult]) {
		pool.SignUp(ctx, "a@b.com", "Passw0rd!", nil, nil, cb)
	})
	var exists *types.UsernameExistsException
	assert.True(t, errors.As(err, &exists))
	assert.Equal(t, 2, pool.Calls("SignUp"))
}

func TestMockPool_CurrentUser(t *testing.T) {
	pool := NewMockPool()
	ctx := context.Background()

	user, err := pool.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	pool.AddUser("a@b.com", "Passw0rd!", nil, false)
	pool.SetCurrentUser("a@b.com")

	user, err = pool.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)

	session, err := await(t, func(cb userpool.Callback[*userpool.Session]) {
		user.GetSession(ctx, cb)
	})
	require.NoError(t, err)
	assert.True(t, session.IsValid(session.ExpiresAt.Add(-2*time.Minute)))

	require.NoError(t, user.SignOut(ctx))
	user, err = pool.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}
