package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a minimal in-process identity provider
type fakeProvider struct {
	mux          *http.ServeMux
	server       *httptest.Server
	tokenGrants  int
	failToken    bool
	failRoles    bool
	roles        []string
	permissions  []string
	jwksDocument string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	f := &fakeProvider{
		mux:          http.NewServeMux(),
		jwksDocument: `{"keys":[{"kty":"RSA","kid":"key-1","n":"AQAB","e":"AQAB"}]}`,
	}

	f.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenGrants++
		if f.failToken {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mgmt-token",
			"token_type":   "Bearer",
			"expires_in":   86400,
		})
	})

	f.mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mgmt-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if f.failRoles {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/roles"):
			out := make([]map[string]string, 0, len(f.roles))
			for _, role := range f.roles {
				out = append(out, map[string]string{"name": role})
			}
			json.NewEncoder(w).Encode(out)
		default:
			out := make([]map[string]string, 0, len(f.permissions))
			for _, p := range f.permissions {
				out = append(out, map[string]string{"permission_name": p})
			}
			json.NewEncoder(w).Encode(out)
		}
	})

	f.mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.jwksDocument))
	})

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) client() *Client {
	return NewClient(Config{
		Domain:       "shadi.us.auth0.com",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      f.server.URL,
	}, nil, nil)
}

func TestManagementTokenCached(t *testing.T) {
	provider := newFakeProvider(t)
	client := provider.client()
	ctx := context.Background()

	token, err := client.ManagementToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mgmt-token", token)

	// Second call reuses the cached grant
	_, err = client.ManagementToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.tokenGrants)
}

func TestManagementTokenUnavailable(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failToken = true
	client := provider.client()

	_, err := client.ManagementToken(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestFetchRolesAndPermissions(t *testing.T) {
	provider := newFakeProvider(t)
	provider.roles = []string{"vendor"}
	provider.permissions = []string{"read:vendor_info", "respond:vendor_inquiries"}
	client := provider.client()

	assignments, err := client.FetchRolesAndPermissions(context.Background(), "auth0|123")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor"}, assignments.Roles)
	assert.Equal(t, []string{"read:vendor_info", "respond:vendor_inquiries"}, assignments.Permissions)
}

func TestFetchRolesAndPermissionsDegradesToEmpty(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failRoles = true
	client := provider.client()

	assignments, err := client.FetchRolesAndPermissions(context.Background(), "auth0|123")
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Empty(t, assignments.Roles)
	assert.Empty(t, assignments.Permissions)
}

func TestFetchRolesAndPermissionsTokenFailure(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failToken = true
	client := provider.client()

	_, err := client.FetchRolesAndPermissions(context.Background(), "auth0|123")
	assert.ErrorIs(t, err, ErrSyncFailed)
}

func TestFetchSigningKeys(t *testing.T) {
	provider := newFakeProvider(t)
	client := provider.client()

	keySet, err := client.FetchSigningKeys(context.Background(), "shadi.us.auth0.com")
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	assert.Equal(t, "key-1", keySet.Keys[0].Kid)
}

func TestFetchSigningKeysNoRetryOnError(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{Domain: "shadi.us.auth0.com", BaseURL: server.URL}, nil, nil)

	_, err := client.FetchSigningKeys(context.Background(), "shadi.us.auth0.com")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, hits)
}
