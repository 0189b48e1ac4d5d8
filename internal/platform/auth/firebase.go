package auth

import (
	"context"

	fbauth "firebase.google.com/go/v4/auth"
)

// User is the caller identified by a verified ID token.
type User struct {
	UID           string
	Email         string
	EmailVerified bool
}

// Verifier validates bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// FirebaseVerifier verifies Firebase ID tokens, including revocation.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier creates a verifier using the given auth client.
func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*User, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, firebaseError(err)
	}
	email, _ := token.Claims["email"].(string)
	verified, _ := token.Claims["email_verified"].(bool)
	return &User{UID: token.UID, Email: email, EmailVerified: verified}, nil
}

// firebaseError checks the SDK predicates in order; certificate failures come first
// because they are not the caller's fault.
func firebaseError(err error) error {
	checks := []struct {
		is  func(error) bool
		err error
	}{
		{fbauth.IsCertificateFetchFailed, ErrCertificateFetch},
		{fbauth.IsIDTokenExpired, ErrTokenExpired},
		{fbauth.IsIDTokenRevoked, ErrTokenRevoked},
		{fbauth.IsUserDisabled, ErrUserDisabled},
	}
	for _, c := range checks {
		if c.is(err) {
			return c.err
		}
	}
	return ErrInvalidToken
}

// Compile-time interface check
var _ Verifier = (*FirebaseVerifier)(nil)
