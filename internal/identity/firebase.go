package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Firebase delegates tokens and accounts to Firebase Authentication.
type Firebase struct {
	client *auth.Client
}

// NewFirebase connects with credentialsJSON when set, otherwise with the
// application default credentials.
func NewFirebase(ctx context.Context, projectID, credentialsJSON string) (*Firebase, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}
	return &Firebase{client: client}, nil
}

func (f *Firebase) Name() string { return "firebase" }

func (f *Firebase) Verify(ctx context.Context, token string) (Identity, error) {
	tok, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	ident := Identity{Subject: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		ident.DisplayName = name
	}
	return ident, nil
}

func (f *Firebase) CreateUser(ctx context.Context, email, displayName, password string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	record, err := f.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("%w: %v", ErrUserExists, err)
		}
		return "", fmt.Errorf("create firebase user: %w", err)
	}
	return record.UID, nil
}

func (f *Firebase) DeleteUser(ctx context.Context, subject string) error {
	if err := f.client.DeleteUser(ctx, subject); err != nil {
		if auth.IsUserNotFound(err) {
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		}
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}

func (f *Firebase) ResetPassword(ctx context.Context, subject, email string) (string, error) {
	link, err := f.client.PasswordResetLink(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) || auth.IsEmailNotFound(err) {
			return "", fmt.Errorf("%w: %v", ErrUserNotFound, err)
		}
		return "", fmt.Errorf("generate firebase reset link: %w", err)
	}
	return link, nil
}
