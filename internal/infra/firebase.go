// README: Firebase Admin SDK initialisation and ID-token verifier for signed-in travellers.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// VerifiedCaller is the identity extracted from a verified ID token.
type VerifiedCaller struct {
	UID   string
	Email string
}

// TokenVerifier verifies a raw ID token string.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*VerifiedCaller, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier returns nil (and no error) when projectID is empty so that
// local deployments run without token verification.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	if projectID == "" {
		return nil, nil
	}
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedCaller, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	caller := &VerifiedCaller{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		caller.Email = email
	}
	return caller, nil
}
