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
	"encoding/json"
	"fmt"
	"strings"
)

const (
	challengeUserAttributes     = "userAttributes"
	challengeRequiredAttributes = "requiredAttributes"
	userAttributePrefix         = "userAttributes."
)

// parseNewPasswordChallenge decodes the NEW_PASSWORD_REQUIRED challenge
// parameters. Cognito sends both values as JSON encoded strings.
func parseNewPasswordChallenge(params map[string]string) (map[string]string, []string, error) {
	userAttributes := map[string]string{}
	if raw := params[challengeUserAttributes]; raw != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, nil, fmt.Errorf("failed to decode challenge user attributes: %w", err)
		}
		for name, value := range decoded {
			switch v := value.(type) {
			case string:
				userAttributes[name] = v
			case nil:
				userAttributes[name] = ""
			default:
				userAttributes[name] = fmt.Sprint(v)
			}
		}
	}

	var required []string
	if raw := params[challengeRequiredAttributes]; raw != "" {
		var decoded []string
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, nil, fmt.Errorf("failed to decode challenge required attributes: %w", err)
		}
		for _, name := range decoded {
			required = append(required, strings.TrimPrefix(name, userAttributePrefix))
		}
	}

	return userAttributes, required, nil
}

// newPasswordChallengeResponses encodes the answer to a NEW_PASSWORD_REQUIRED challenge
func newPasswordChallengeResponses(username, newPassword string, userAttributes map[string]string) map[string]string {
	responses := map[string]string{
		"USERNAME":     username,
		"NEW_PASSWORD": newPassword,
	}
	for name, value := range userAttributes {
		responses[userAttributePrefix+name] = value
	}
	return responses
}
