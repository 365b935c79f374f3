// Package sso implements the browser login flow against the identity
// provider: authorization-code redirect, callback handling, and ID token
// verification. API clients authenticate with bearer tokens instead; this
// flow exists for the dashboard.
package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Config configures the OIDC login flow
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// LoginUser is the identity established by a completed login
type LoginUser struct {
	SubjectID string
	Email     string
	Name      string
	// RawIDToken is the verified ID token, forwarded to the engine as the
	// session bearer token.
	RawIDToken string
}

// Flow drives the OIDC authorization-code login
type Flow struct {
	config       Config
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewFlow discovers the provider's endpoints and prepares the login flow
func NewFlow(ctx context.Context, config Config) (*Flow, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: config.ClientID})

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       scopes,
	}

	return &Flow{
		config:       config,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}, nil
}

// NewState generates an unguessable state parameter for one login attempt
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// InitiateLogin redirects the browser to the provider's authorization
// endpoint. The caller persists state (cookie or server-side session) and
// checks it on callback.
func (f *Flow) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	authURL := f.oauth2Config.AuthCodeURL(state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback exchanges the authorization code and verifies the ID
// token. expectedState must match the state the caller issued at login
// initiation.
func (f *Flow) HandleCallback(ctx context.Context, r *http.Request, expectedState string) (*LoginUser, error) {
	if state := r.URL.Query().Get("state"); state == "" || state != expectedState {
		return nil, fmt.Errorf("state mismatch")
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	oauth2Token, err := f.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("missing subject in ID token")
	}

	return &LoginUser{
		SubjectID:  idToken.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		RawIDToken: rawIDToken,
	}, nil
}
