package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Options selects the Firebase project and credentials
type Options struct {
	CredentialsPath string
	ProjectID       string
	// CheckRevoked makes every verification also reject revoked sessions
	CheckRevoked bool
}

// Identity verifies Firebase ID tokens for the reader and author identity
type Identity struct {
	client       *auth.Client
	checkRevoked bool
	logger       *zap.Logger
}

// NewIdentity initializes the Firebase app and its auth client
func NewIdentity(ctx context.Context, opts Options, logger *zap.Logger) (*Identity, error) {
	if opts.CredentialsPath == "" {
		return nil, errors.New("firebase credentials path not provided")
	}
	if _, err := os.Stat(opts.CredentialsPath); err != nil {
		return nil, fmt.Errorf("firebase credentials file %s: %w", opts.CredentialsPath, err)
	}

	var appConfig *firebase.Config
	if opts.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: opts.ProjectID}
	}
	app, err := firebase.NewApp(ctx, appConfig, option.WithCredentialsFile(opts.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	logger = logger.Named("Firebase")
	logger.Info("Firebase identity initialized",
		zap.String("project", opts.ProjectID),
		zap.Bool("checkRevoked", opts.CheckRevoked))
	return &Identity{client: client, checkRevoked: opts.CheckRevoked, logger: logger}, nil
}

// VerifyIDToken checks the token signature and claims, and revocation when enabled
func (i *Identity) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if i.checkRevoked {
		token, err := i.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
		if err != nil && auth.IsIDTokenRevoked(err) {
			i.logger.Debug("Rejected revoked ID token")
		}
		return token, err
	}
	return i.client.VerifyIDToken(ctx, idToken)
}
