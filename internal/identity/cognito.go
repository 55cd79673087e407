package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// ErrCognitoThrottled marks errors returned when Cognito throttles requests.
var ErrCognitoThrottled = errors.New("cognito throttling")

type cognitoAPI interface {
	GetUser(ctx context.Context, in *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
	AdminCreateUser(ctx context.Context, in *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminDeleteUser(ctx context.Context, in *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
	AdminResetUserPassword(ctx context.Context, in *cognitoidentityprovider.AdminResetUserPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminResetUserPasswordOutput, error)
}

// Cognito verifies Cognito access tokens and manages users in one pool.
type Cognito struct {
	client   cognitoAPI
	poolID   string
	clientID string
}

// NewCognito creates a client for the pool. The region is taken from the
// pool ID (format: "region_poolid").
func NewCognito(ctx context.Context, poolID, clientID string) (*Cognito, error) {
	region, err := regionFromPoolID(poolID)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Cognito{
		client:   cognitoidentityprovider.NewFromConfig(awsCfg),
		poolID:   poolID,
		clientID: clientID,
	}, nil
}

func (c *Cognito) Name() string { return "cognito" }

// Verify exchanges an access token for the user's attributes. Cognito
// rejects expired or revoked tokens itself.
func (c *Cognito) Verify(ctx context.Context, token string) (Identity, error) {
	out, err := c.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(token),
	})
	if err != nil {
		err = mapCognitoError(err)
		if errors.Is(err, ErrCognitoThrottled) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	attrs := attributeMap(out.UserAttributes)
	ident := Identity{
		Subject:     attrs["sub"],
		Email:       attrs["email"],
		DisplayName: attrs["name"],
	}
	if ident.Subject == "" {
		ident.Subject = aws.ToString(out.Username)
	}
	return ident, nil
}

// CreateUser creates a confirmed-email user with a temporary password. The
// welcome message is suppressed; the league sends its own invite.
func (c *Cognito) CreateUser(ctx context.Context, email, displayName, password string) (string, error) {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	if displayName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(displayName)})
	}

	out, err := c.client.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId:        aws.String(c.poolID),
		Username:          aws.String(email),
		TemporaryPassword: aws.String(password),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes:    attrs,
	})
	if err != nil {
		return "", mapCognitoError(err)
	}
	if out.User == nil {
		return "", errors.New("cognito returned no user")
	}
	if sub := attributeMap(out.User.Attributes)["sub"]; sub != "" {
		return sub, nil
	}
	return aws.ToString(out.User.Username), nil
}

func (c *Cognito) DeleteUser(ctx context.Context, subject string) error {
	_, err := c.client.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(c.poolID),
		Username:   aws.String(subject),
	})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

// ResetPassword makes Cognito send the user a reset code. There is no link
// to return.
func (c *Cognito) ResetPassword(ctx context.Context, subject, email string) (string, error) {
	_, err := c.client.AdminResetUserPassword(ctx, &cognitoidentityprovider.AdminResetUserPasswordInput{
		UserPoolId: aws.String(c.poolID),
		Username:   aws.String(subject),
	})
	if err != nil {
		return "", mapCognitoError(err)
	}
	return "", nil
}

func attributeMap(attrs []types.AttributeType) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		m[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
	}
	return m
}

func mapCognitoError(err error) error {
	var throttled *types.TooManyRequestsException
	if errors.As(err, &throttled) {
		return fmt.Errorf("%w: %v", ErrCognitoThrottled, err)
	}
	var notAuthorized *types.NotAuthorizedException
	if errors.As(err, &notAuthorized) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var notFound *types.UserNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	var userExists *types.UsernameExistsException
	if errors.As(err, &userExists) {
		return fmt.Errorf("%w: %v", ErrUserExists, err)
	}
	return err
}

func regionFromPoolID(poolID string) (string, error) {
	parts := strings.SplitN(poolID, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("invalid cognito pool id: %q", poolID)
	}
	return parts[0], nil
}
