package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadi-events/gatehouse/pkg/sso"
)

// fakeLoginFlow stands in for the provider round trip: the redirect target
// is synthetic and the callback succeeds when the state matches.
type fakeLoginFlow struct {
	user *sso.LoginUser
	err  error
}

func (f *fakeLoginFlow) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	http.Redirect(w, r, "https://provider.example/authorize?state="+state, http.StatusFound)
}

func (f *fakeLoginFlow) HandleCallback(ctx context.Context, r *http.Request, expectedState string) (*sso.LoginUser, error) {
	if r.URL.Query().Get("state") != expectedState {
		return nil, errors.New("state mismatch")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func loginStateFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == loginStateCookie {
			return c
		}
	}
	t.Fatal("login state cookie not set")
	return nil
}

func TestLoginRedirectsWithState(t *testing.T) {
	h := newTestServer(t)
	h.server.EnableLogin(&fakeLoginFlow{})

	rec := h.do(t, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	cookie := loginStateFrom(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Contains(t, rec.Header().Get("Location"), "state="+cookie.Value)
}

func TestLoginCallbackEstablishesPrincipal(t *testing.T) {
	h := newTestServer(t)
	h.server.EnableLogin(&fakeLoginFlow{user: &sso.LoginUser{
		SubjectID:  "auth0|vendor",
		Email:      "vendor@example.com",
		RawIDToken: "id-token-1",
	}})
	h.addPrincipal(7, "auth0|vendor", "read:vendor_info")

	rec := h.do(t, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := loginStateFrom(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/login/callback?code=abc&state="+cookie.Value, nil)
	req.AddCookie(cookie)
	callback := httptest.NewRecorder()
	h.server.ServeHTTP(callback, req)
	require.Equal(t, http.StatusOK, callback.Code, callback.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(callback.Body.Bytes(), &resp))
	assert.Equal(t, "auth0|vendor", resp.SubjectID)
	assert.Equal(t, []string{"read:vendor_info"}, resp.Permissions)
	assert.Equal(t, "id-token-1", resp.IDToken)
}

func TestLoginCallbackWithoutStateCookie(t *testing.T) {
	h := newTestServer(t)
	h.server.EnableLogin(&fakeLoginFlow{user: &sso.LoginUser{SubjectID: "auth0|vendor"}})

	rec := h.do(t, http.MethodGet, "/login/callback?code=abc&state=whatever", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginCallbackRejectsMismatchedState(t *testing.T) {
	h := newTestServer(t)
	h.server.EnableLogin(&fakeLoginFlow{user: &sso.LoginUser{SubjectID: "auth0|vendor"}})

	rec := h.do(t, http.MethodGet, "/login", "", nil)
	cookie := loginStateFrom(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/login/callback?code=abc&state=forged", nil)
	req.AddCookie(cookie)
	callback := httptest.NewRecorder()
	h.server.ServeHTTP(callback, req)
	assert.Equal(t, http.StatusUnauthorized, callback.Code)
}

func TestLoginRoutesAbsentWhenNotEnabled(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
