package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/shadi-events/gatehouse/pkg/gatehouse"
	"github.com/shadi-events/gatehouse/pkg/httputil"
	"github.com/shadi-events/gatehouse/pkg/middleware"
	"github.com/shadi-events/gatehouse/pkg/principal"
	"github.com/shadi-events/gatehouse/pkg/scope"
)

func isAccessDenial(err error) bool {
	return errors.Is(err, gatehouse.ErrNoVendorAccess) || errors.Is(err, gatehouse.ErrCapabilityDenied)
}

type meResponse struct {
	ID         int64      `json:"id"`
	SubjectID  string     `json:"subject_id"`
	Email      string     `json:"email,omitempty"`
	Roles      []string   `json:"roles"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r)
	httputil.WriteSuccess(w, meResponse{
		ID:         p.ID,
		SubjectID:  p.SubjectID,
		Email:      p.Email,
		Roles:      p.Roles,
		LastSynced: p.LastSynced,
	})
}

type permissionsResponse struct {
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
	LastSynced  *time.Time `json:"last_synced,omitempty"`
}

func (s *Server) getMyPermissions(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r)
	httputil.WriteSuccess(w, permissionsResponse{
		Roles:       p.Roles,
		Permissions: p.Permissions,
		LastSynced:  p.LastSynced,
	})
}

func (s *Server) refreshMyPermissions(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r)

	refreshed, err := s.engine.RefreshPermissions(r.Context(), p.SubjectID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, permissionsResponse{
		Roles:       refreshed.Roles,
		Permissions: refreshed.Permissions,
		LastSynced:  refreshed.LastSynced,
	})
}

type vendorAccessResponse struct {
	VendorID     string             `json:"vendor_id"`
	HasAccess    bool               `json:"has_access"`
	Tier         scope.Tier         `json:"tier,omitempty"`
	Source       scope.GrantSource  `json:"source,omitempty"`
	Capabilities []scope.Capability `json:"capabilities,omitempty"`
}

func (s *Server) getVendorAccess(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r)
	vendorID := mux.Vars(r)["id"]

	grant, err := s.engine.AuthorizeVendorAction(r.Context(), p, vendorID, scope.CapabilityReadInfo)
	if err != nil {
		if isAccessDenial(err) {
			httputil.WriteSuccess(w, vendorAccessResponse{VendorID: vendorID, HasAccess: false})
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, vendorAccessResponse{
		VendorID:     vendorID,
		HasAccess:    true,
		Tier:         grant.Tier,
		Source:       grant.Source,
		Capabilities: grant.Capabilities(),
	})
}

type inquiryResponse struct {
	ID          string              `json:"id"`
	VendorID    string              `json:"vendor_id"`
	Status      scope.InquiryStatus `json:"status"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

func (s *Server) respondToInquiry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vendorID := vars["id"]
	inquiryID := vars["inquiryID"]
	grant := middleware.GetVendorGrant(r)
	claims := middleware.GetClaims(r)

	inq, err := s.scopes.GetInquiry(r.Context(), inquiryID)
	if err != nil {
		if errors.Is(err, scope.ErrInquiryNotFound) {
			httputil.WriteNotFound(w, "inquiry not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if inq.VendorID != vendorID {
		httputil.WriteNotFound(w, "inquiry not found")
		return
	}

	from := inq.Status
	if err := s.scopes.TransitionInquiry(r.Context(), grant, inq, scope.InquiryResponded); err != nil {
		switch {
		case errors.Is(err, scope.ErrInvalidTransition):
			httputil.WriteConflict(w, "inquiry cannot be responded to in its current state")
		case errors.Is(err, scope.ErrStaleInquiryStatus):
			httputil.WriteConflict(w, "inquiry changed state concurrently")
		case errors.Is(err, scope.ErrRespondNotPermitted):
			httputil.WriteForbidden(w, "responding to inquiries not permitted")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	if claims != nil {
		s.auditLog.InquiryTransition(claims.Subject, vendorID, inquiryID, string(from), string(inq.Status))
	}
	httputil.WriteSuccess(w, inquiryResponse{
		ID:          inq.ID,
		VendorID:    inq.VendorID,
		Status:      inq.Status,
		RespondedAt: inq.RespondedAt,
	})
}

type grantStaffRequest struct {
	PrincipalID  int64                  `json:"principal_id"`
	Tier         scope.Tier             `json:"tier"`
	Capabilities *scope.CapabilityFlags `json:"capabilities,omitempty"`
}

type staffResponse struct {
	ID           int64                  `json:"id"`
	VendorID     string                 `json:"vendor_id"`
	PrincipalID  int64                  `json:"principal_id"`
	Tier         scope.Tier             `json:"tier"`
	Capabilities *scope.CapabilityFlags `json:"capabilities,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (s *Server) grantStaff(w http.ResponseWriter, r *http.Request) {
	vendorID := mux.Vars(r)["id"]
	claims := middleware.GetClaims(r)

	var req grantStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.PrincipalID == 0 || !req.Tier.Valid() {
		httputil.WriteBadRequest(w, "principal_id and a valid tier are required")
		return
	}

	rel := &scope.VendorStaff{
		VendorID:     vendorID,
		PrincipalID:  req.PrincipalID,
		Tier:         req.Tier,
		Capabilities: req.Capabilities,
	}
	if err := s.scopes.GrantStaff(r.Context(), rel); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if claims != nil {
		s.auditLog.StaffGranted(claims.Subject, strconv.FormatInt(req.PrincipalID, 10), vendorID, string(req.Tier))
	}
	httputil.WriteCreated(w, staffResponse{
		ID:           rel.ID,
		VendorID:     rel.VendorID,
		PrincipalID:  rel.PrincipalID,
		Tier:         rel.Tier,
		Capabilities: rel.Capabilities,
		CreatedAt:    rel.CreatedAt,
	})
}

func (s *Server) listStaff(w http.ResponseWriter, r *http.Request) {
	vendorID := mux.Vars(r)["id"]

	rels, err := s.scopes.ListStaff(r.Context(), vendorID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	out := make([]staffResponse, 0, len(rels))
	for _, rel := range rels {
		out = append(out, staffResponse{
			ID:           rel.ID,
			VendorID:     rel.VendorID,
			PrincipalID:  rel.PrincipalID,
			Tier:         rel.Tier,
			Capabilities: rel.Capabilities,
			CreatedAt:    rel.CreatedAt,
		})
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) revokeStaff(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vendorID := vars["id"]
	claims := middleware.GetClaims(r)

	principalID, err := strconv.ParseInt(vars["principalID"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid principal id")
		return
	}

	if err := s.scopes.RevokeStaff(r.Context(), principalID, vendorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteNotFound(w, "no active relationship")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if claims != nil {
		s.auditLog.StaffRevoked(claims.Subject, vars["principalID"], vendorID)
	}
	httputil.WriteNoContent(w)
}

type overrideRequest struct {
	Permissions []string `json:"permissions"`
}

func (s *Server) overridePermissions(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["subject"]
	claims := middleware.GetClaims(r)

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	target, err := s.principals.GetBySubject(r.Context(), subjectID)
	if err != nil {
		if errors.Is(err, principal.ErrPrincipalNotFound) {
			httputil.WriteNotFound(w, "principal not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	actor := ""
	if claims != nil {
		actor = claims.Subject
	}
	if err := s.orch.Override(r.Context(), actor, target, req.Permissions); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, permissionsResponse{
		Roles:       target.Roles,
		Permissions: target.Permissions,
		LastSynced:  target.LastSynced,
	})
}
