package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shadi-events/gatehouse/pkg/httputil"
	"github.com/shadi-events/gatehouse/pkg/sso"
)

// loginStateCookie carries the OIDC state parameter between the login
// redirect and the provider callback.
const loginStateCookie = "gatehouse_login_state"

// loginStateTTL bounds how long a pending login attempt stays valid
const loginStateTTL = 10 * time.Minute

// LoginFlow drives the browser OIDC login. *sso.Flow satisfies this.
type LoginFlow interface {
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string)
	HandleCallback(ctx context.Context, r *http.Request, expectedState string) (*sso.LoginUser, error)
}

// EnableLogin registers the interactive login routes. GET /login redirects
// the browser to the provider; GET /login/callback verifies the returned
// ID token and establishes the principal's authorization state.
func (s *Server) EnableLogin(flow LoginFlow) {
	s.login = flow
	s.router.HandleFunc("/login", s.initiateLogin).Methods("GET")
	s.router.HandleFunc("/login/callback", s.completeLogin).Methods("GET")
}

type loginResponse struct {
	SubjectID   string   `json:"subject_id"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	// IDToken is the verified ID token; clients present it as the bearer
	// token on subsequent API calls.
	IDToken string `json:"id_token"`
}

func (s *Server) initiateLogin(w http.ResponseWriter, r *http.Request) {
	state, err := sso.NewState()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     loginStateCookie,
		Value:    state,
		Path:     "/login",
		MaxAge:   int(loginStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	s.login.InitiateLogin(w, r, state)
}

func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(loginStateCookie)
	if err != nil {
		httputil.WriteBadRequest(w, "missing login state")
		return
	}

	// The state is single-use regardless of outcome
	http.SetCookie(w, &http.Cookie{
		Name:     loginStateCookie,
		Path:     "/login",
		MaxAge:   -1,
		HttpOnly: true,
	})

	user, err := s.login.HandleCallback(r.Context(), r, cookie.Value)
	if err != nil {
		if s.auditLog != nil {
			s.auditLog.AuthFailure(err.Error())
		}
		httputil.WriteUnauthorized(w, "login failed")
		return
	}

	p, err := s.engine.EstablishSession(r.Context(), user.SubjectID, user.Email)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, loginResponse{
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		Roles:       p.Roles,
		Permissions: p.Permissions,
		IDToken:     user.RawIDToken,
	})
}
