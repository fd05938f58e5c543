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
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/go-logr/logr"

	"github.com/cogniteo/cognito-session/pkg/tokenstore"
	"github.com/cogniteo/cognito-session/pkg/userpool"
)

var (
	// ErrNoCachedSession is returned when the local cache holds no tokens for the user
	ErrNoCachedSession = errors.New("no cached session, please authenticate")

	// ErrSessionExpired is returned when the cached session expired and cannot be refreshed
	ErrSessionExpired = errors.New("cached session expired and no refresh token is available")

	// ErrNoChallengeSession is returned when a challenge answer is sent without a pending challenge
	ErrNoChallengeSession = errors.New("no pending authentication challenge")
)

// UnsupportedChallengeError is returned for challenges the pool cannot answer
type UnsupportedChallengeError struct {
	Name string
}

func (e *UnsupportedChallengeError) Error() string {
	return fmt.Sprintf("unsupported authentication challenge %q", e.Name)
}

var userPoolIDPattern = regexp.MustCompile(`^[\w-]+_[0-9a-zA-Z]+$`)

// PoolConfig identifies a user pool app client
type PoolConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
}

// Validate checks the identifiers and derives the region from the pool id when missing
func (c *PoolConfig) Validate() error {
	if c.UserPoolID == "" {
		return fmt.Errorf("userPoolID cannot be empty")
	}
	if !userPoolIDPattern.MatchString(c.UserPoolID) {
		return fmt.Errorf("invalid userPoolID %q", c.UserPoolID)
	}
	if c.ClientID == "" {
		return fmt.Errorf("clientID cannot be empty")
	}
	if c.Region == "" {
		c.Region = RegionFromUserPoolID(c.UserPoolID)
	}
	return nil
}

// RegionFromUserPoolID returns the region prefix of a user pool id
func RegionFromUserPoolID(userPoolID string) string {
	region, _, found := strings.Cut(userPoolID, "_")
	if !found {
		return ""
	}
	return region
}

// Option configures an AWSPool
type Option func(*AWSPool)

// WithLogger sets the logger used for SDK call tracing
func WithLogger(log logr.Logger) Option {
	return func(p *AWSPool) {
		p.log = log
	}
}

// WithClock overrides the clock used for session expiry checks
func WithClock(now func() time.Time) Option {
	return func(p *AWSPool) {
		p.now = now
	}
}

// AWSPool implements the userpool.Pool interface for AWS Cognito
type AWSPool struct {
	cognito    CognitoAPI
	store      tokenstore.Store
	userPoolID string
	clientID   string
	log        logr.Logger
	now        func() time.Time
}

// NewAWSPool creates a new AWS Cognito user pool client for public app client operations
func NewAWSPool(ctx context.Context, cfg PoolConfig, store tokenstore.Store, opts ...Option) (*AWSPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("token store cannot be nil")
	}

	// App client operations are unsigned, no AWS credentials are needed
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSPool(cognitoidentityprovider.NewFromConfig(awsCfg), store, cfg, opts...), nil
}

func newAWSPool(api CognitoAPI, store tokenstore.Store, cfg PoolConfig, opts ...Option) *AWSPool {
	p := &AWSPool{
		cognito:    api,
		store:      store,
		userPoolID: cfg.UserPoolID,
		clientID:   cfg.ClientID,
		log:        logr.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClientID returns the app client id
func (p *AWSPool) ClientID() string {
	return p.clientID
}

// UserPoolID returns the user pool id
func (p *AWSPool) UserPoolID() string {
	return p.userPoolID
}

// CurrentUser returns the handle of the last signed-in user from the token store
func (p *AWSPool) CurrentUser(ctx context.Context) (userpool.User, error) {
	username, err := p.store.LastAuthUser(ctx, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up current user: %w", err)
	}
	if username == "" {
		return nil, nil
	}
	return p.newUser(username), nil
}

// NewUser returns a handle for the given username
func (p *AWSPool) NewUser(username string) userpool.User {
	return p.newUser(username)
}

func (p *AWSPool) newUser(username string) *awsUser {
	return &awsUser{
		pool:     p,
		username: username,
	}
}

// SignUp registers a new user in the user pool
func (p *AWSPool) SignUp(ctx context.Context, username, password string, attributes, validationData []userpool.Attribute, cb userpool.Callback[*userpool.SignUpResult]) {
	p.run(ctx, func(ctx context.Context) {
		p.log.V(1).Info("calling SignUp", "username", username)
		output, err := p.cognito.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
			ClientId:       aws.String(p.clientID),
			Username:       aws.String(username),
			Password:       aws.String(password),
			UserAttributes: toAttributeTypes(attributes),
			ValidationData: toAttributeTypes(validationData),
		})
		if err != nil {
			cb(nil, fmt.Errorf("failed to sign up user %s: %w", username, err))
			return
		}

		cb(&userpool.SignUpResult{
			User:          p.newUser(username),
			UserConfirmed: output.UserConfirmed,
			UserSub:       aws.ToString(output.UserSub),
			CodeDelivery:  fromCodeDeliveryDetails(output.CodeDeliveryDetails),
		}, nil)
	})
}

// run executes a call on its own goroutine. Once issued the call is not
// cancelled by the caller's context.
func (p *AWSPool) run(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	go fn(ctx)
}

func toAttributeTypes(attributes []userpool.Attribute) []types.AttributeType {
	if len(attributes) == 0 {
		return nil
	}
	result := make([]types.AttributeType, 0, len(attributes))
	for _, attr := range attributes {
		result = append(result, types.AttributeType{
			Name:  aws.String(attr.Name),
			Value: aws.String(attr.Value),
		})
	}
	return result
}

func fromAttributeTypes(attributes []types.AttributeType) []userpool.Attribute {
	result := make([]userpool.Attribute, 0, len(attributes))
	for _, attr := range attributes {
		if attr.Name == nil {
			continue
		}
		result = append(result, userpool.Attribute{
			Name:  *attr.Name,
			Value: aws.ToString(attr.Value),
		})
	}
	return result
}

func fromCodeDeliveryDetails(details *types.CodeDeliveryDetailsType) *userpool.CodeDelivery {
	if details == nil {
		return nil
	}
	return &userpool.CodeDelivery{
		AttributeName:  aws.ToString(details.AttributeName),
		DeliveryMedium: string(details.DeliveryMedium),
		Destination:    aws.ToString(details.Destination),
	}
}
