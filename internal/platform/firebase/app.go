package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrMissingProjectID is returned when no project is configured.
var ErrMissingProjectID = errors.New("firebase project ID is required")

// Config holds Firebase configuration.
type Config struct {
	ProjectID                    string
	GoogleApplicationCredentials string // Path to service account JSON (optional)
}

// clientOptions returns SDK options for cfg. Without a credentials file the SDK falls
// back to Application Default Credentials, or to the emulator when
// FIREBASE_AUTH_EMULATOR_HOST is set.
func clientOptions(cfg Config) ([]option.ClientOption, error) {
	if cfg.GoogleApplicationCredentials == "" {
		return nil, nil
	}
	creds, err := os.ReadFile(cfg.GoogleApplicationCredentials)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentialsJSON(creds)}, nil
}

// NewAuthClient initializes a Firebase app and returns its auth client, used to verify
// ID tokens on the search API.
func NewAuthClient(ctx context.Context, cfg Config) (*auth.Client, error) {
	if cfg.ProjectID == "" {
		return nil, ErrMissingProjectID
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth: %w", err)
	}
	return client, nil
}
