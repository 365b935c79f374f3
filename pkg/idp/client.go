package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shadi-events/gatehouse/pkg/authn"
	"github.com/shadi-events/gatehouse/pkg/observability"
)

var (
	// ErrProviderUnavailable indicates a transport-level failure talking to
	// the identity provider. Calls are single-attempt; retries are caller
	// policy.
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrSyncFailed indicates the provider answered but the role/permission
	// fetch did not succeed. Non-fatal: callers degrade to cached state.
	ErrSyncFailed = errors.New("permission sync failed")
)

// DefaultRequestTimeout bounds every outbound provider call
const DefaultRequestTimeout = 10 * time.Second

// Config holds identity provider connection settings
type Config struct {
	// Domain is the provider tenant domain, e.g. "shadi.us.auth0.com".
	Domain string

	// ClientID and ClientSecret are machine-to-machine credentials for the
	// management API.
	ClientID     string
	ClientSecret string

	// RequestTimeout bounds each outbound call. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// BaseURL overrides the provider base URL ("https://<Domain>"). Used by
	// tests to point at a local fake.
	BaseURL string
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://" + c.Domain
}

// RoleAssignments is the provider's view of a subject's roles and
// permissions.
type RoleAssignments struct {
	Roles       []string
	Permissions []string
}

// Client talks to the identity provider's token, JWKS, and management API
// endpoints. The management token obtained via the client-credentials grant
// is cached in memory for its lifetime and refreshed on expiry or first use.
type Client struct {
	config     Config
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewClient creates an identity provider client. logger and metrics may be
// nil.
func NewClient(config Config, logger *observability.Logger, metrics *observability.Metrics) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	creds := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.baseURL() + "/oauth/token",
		EndpointParams: url.Values{
			"audience": {config.baseURL() + "/api/v2/"},
		},
	}

	// TokenSource caches the management token and refreshes it when it
	// expires; the oauth2.HTTPClient context value routes the grant through
	// our bounded client.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Client{
		config:     config,
		httpClient: httpClient,
		tokens:     creds.TokenSource(ctx),
		logger:     logger,
		metrics:    metrics,
	}
}

// ManagementToken exchanges stored client credentials for a service-level
// token, reusing the cached token while it remains valid. Single attempt;
// transport failures surface as ErrProviderUnavailable.
func (c *Client) ManagementToken(ctx context.Context) (string, error) {
	start := time.Now()
	token, err := c.tokens.Token()
	c.record("management_token", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return token.AccessToken, nil
}

// FetchRolesAndPermissions calls the provider's management API for the
// subject's current role and permission assignments. On failure it returns
// an empty result alongside ErrSyncFailed so a transient provider outage
// does not lock principals out of already-granted local permissions.
func (c *Client) FetchRolesAndPermissions(ctx context.Context, subjectID string) (RoleAssignments, error) {
	token, err := c.ManagementToken(ctx)
	if err != nil {
		return RoleAssignments{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	var assignments RoleAssignments

	var roles []struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "fetch_roles", "/api/v2/users/"+url.PathEscape(subjectID)+"/roles", token, &roles); err != nil {
		return RoleAssignments{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	for _, r := range roles {
		assignments.Roles = append(assignments.Roles, r.Name)
	}

	var permissions []struct {
		PermissionName string `json:"permission_name"`
	}
	if err := c.getJSON(ctx, "fetch_permissions", "/api/v2/users/"+url.PathEscape(subjectID)+"/permissions", token, &permissions); err != nil {
		return RoleAssignments{}, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	for _, p := range permissions {
		assignments.Permissions = append(assignments.Permissions, p.PermissionName)
	}

	return assignments, nil
}

// FetchSigningKeys fetches the issuer's JWKS. No retry; failures surface
// directly to the token validator.
func (c *Client) FetchSigningKeys(ctx context.Context, issuerDomain string) (*authn.JWKSet, error) {
	base := c.config.BaseURL
	if base == "" {
		base = "https://" + issuerDomain
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/.well-known/jwks.json", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.record("fetch_jwks", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var keySet authn.JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("%w: decoding jwks: %v", ErrProviderUnavailable, err)
	}
	return &keySet, nil
}

// getJSON performs an authenticated management API GET and decodes the body
func (c *Client) getJSON(ctx context.Context, operation, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.baseURL()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.record(operation, start, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("management API %s returned %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// record emits provider call metrics when metrics are configured
func (c *Client) record(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordProviderRequest(operation, status, time.Since(start))
}
