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
	"time"
)

// ClockSkew is the allowance applied when checking token expiry
const ClockSkew = 30 * time.Second

// Attribute is a single user attribute as returned by the user pool
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session holds the tokens issued for a signed-in user
type Session struct {
	Username     string    `json:"username"`
	IDToken      string    `json:"idToken"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsValid reports whether the session tokens are still usable at now
func (s *Session) IsValid(now time.Time) bool {
	if s == nil || s.IDToken == "" || s.AccessToken == "" {
		return false
	}
	return now.Add(ClockSkew).Before(s.ExpiresAt)
}

// CodeDelivery describes where a verification code was sent
type CodeDelivery struct {
	AttributeName  string `json:"attributeName,omitempty"`
	DeliveryMedium string `json:"deliveryMedium,omitempty"`
	Destination    string `json:"destination,omitempty"`
}

// SignUpResult is the outcome of a successful registration
type SignUpResult struct {
	User          User          `json:"-"`
	UserConfirmed bool          `json:"userConfirmed"`
	UserSub       string        `json:"userSub,omitempty"`
	CodeDelivery  *CodeDelivery `json:"codeDelivery,omitempty"`
}

// Flatten converts an attribute list into a name to value mapping.
// Later entries win on duplicate names.
func Flatten(attributes []Attribute) map[string]string {
	result := make(map[string]string, len(attributes))
	for _, attr := range attributes {
		result[attr.Name] = attr.Value
	}
	return result
}
