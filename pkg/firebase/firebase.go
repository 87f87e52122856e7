package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// TokenVerifier is the subset of *auth.Client used to check Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// App holds the initialized Firebase app and auth client
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
}

// InitFirebase initializes the Firebase application and authentication client
func InitFirebase(ctx context.Context, credentialsPath string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	return &App{FirebaseApp: firebaseApp, AuthClient: authClient}, nil
}

// Identity is the profile data SafeTrade reads out of a verified ID token.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	PhoneNumber   string
}

// IdentityFromToken extracts the claims SafeTrade uses. An email claim is required.
func IdentityFromToken(token *auth.Token) (Identity, error) {
	id := Identity{UID: token.UID}
	email, ok := token.Claims["email"].(string)
	if !ok || email == "" {
		return Identity{}, fmt.Errorf("firebase token for %s carries no email claim", token.UID)
	}
	id.Email = email
	id.EmailVerified, _ = token.Claims["email_verified"].(bool)
	id.Name, _ = token.Claims["name"].(string)
	id.PhoneNumber, _ = token.Claims["phone_number"].(string)
	return id, nil
}
