// Package testutil drives the Firebase Auth emulator from integration tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

const (
	defaultAuthEmulatorHost = "127.0.0.1:9099"
	ProjectID               = "demo-profile-search"
	fakeAPIKey              = "fake-api-key" //nolint:gosec // emulator accepts any key
)

// AuthEmulatorHost returns FIREBASE_AUTH_EMULATOR_HOST, or the emulator's default port.
func AuthEmulatorHost() string {
	if host := os.Getenv("FIREBASE_AUTH_EMULATOR_HOST"); host != "" {
		return host
	}
	return defaultAuthEmulatorHost
}

func reachable(host string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// RequireAuthEmulator skips t unless the Auth emulator is listening, and points the
// Firebase SDK at it for the duration of the test.
func RequireAuthEmulator(t *testing.T) {
	t.Helper()
	host := AuthEmulatorHost()
	if !reachable(host) {
		t.Skip("Firebase Auth emulator not available at " + host)
	}
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", host)
	clearAccounts(t, host)
}

func clearAccounts(t *testing.T, host string) {
	t.Helper()
	url := fmt.Sprintf("http://%s/emulator/v1/projects/%s/accounts", host, ProjectID)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("building clear request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("clearing emulator accounts: %v", err)
	}
	_ = resp.Body.Close()
}

// SignUp is the emulator's accounts:signUp response.
type SignUp struct {
	IDToken string `json:"idToken"`
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

// SignUpUser creates an email/password account and returns its ID token.
func SignUpUser(t *testing.T, email, password string) SignUp {
	t.Helper()
	url := fmt.Sprintf("http://%s/identitytoolkit.googleapis.com/v1/accounts:signUp?key=%s",
		AuthEmulatorHost(), fakeAPIKey)
	body, _ := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building sign-up request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("signing up test user: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-up returned %d", resp.StatusCode)
	}

	var out SignUp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding sign-up response: %v", err)
	}
	return out
}
