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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_IsValid(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		session  *Session
		expected bool
	}{
		{
			name:     "nil session",
			session:  nil,
			expected: false,
		},
		{
			name:     "missing tokens",
			session:  &Session{ExpiresAt: now.Add(time.Hour)},
			expected: false,
		},
		{
			name: "not expired",
			session: &Session{
				IDToken:     "id",
				AccessToken: "access",
				ExpiresAt:   now.Add(time.Hour),
			},
			expected: true,
		},
		{
			name: "expires within clock skew",
			session: &Session{
				IDToken:     "id",
				AccessToken: "access",
				ExpiresAt:   now.Add(ClockSkew / 2),
			},
			expected: false,
		},
		{
			name: "expired",
			session: &Session{
				IDToken:     "id",
				AccessToken: "access",
				ExpiresAt:   now.Add(-time.Minute),
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.session.IsValid(now))
		})
	}
}

func TestFlatten(t *testing.T) {
	attrs := []Attribute{
		{Name: "email", Value: "a@b.com"},
		{Name: "name", Value: "A"},
		{Name: "name", Value: "B"},
	}

	assert.Equal(t, map[string]string{"email": "a@b.com", "name": "B"}, Flatten(attrs))
	assert.Empty(t, Flatten(nil))
}
