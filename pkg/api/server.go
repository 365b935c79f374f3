package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shadi-events/gatehouse/pkg/audit"
	"github.com/shadi-events/gatehouse/pkg/gatehouse"
	"github.com/shadi-events/gatehouse/pkg/middleware"
	"github.com/shadi-events/gatehouse/pkg/observability"
	"github.com/shadi-events/gatehouse/pkg/principal"
	"github.com/shadi-events/gatehouse/pkg/scope"
)

// PermissionManagePrincipals gates the administrative permission override
// endpoint.
const PermissionManagePrincipals = "manage:principals"

// Server exposes the authorization engine over HTTP
type Server struct {
	router     *mux.Router
	engine     *gatehouse.Service
	principals *principal.Store
	orch       *principal.Orchestrator
	scopes     *scope.Store
	login      LoginFlow
	logger     *observability.Logger
	metrics    *observability.Metrics
	auditLog   *audit.Logger
}

// NewServer creates the API server and registers its routes. logger,
// metrics, and auditLog may be nil.
func NewServer(engine *gatehouse.Service, principals *principal.Store, orch *principal.Orchestrator,
	scopes *scope.Store, logger *observability.Logger, metrics *observability.Metrics, auditLog *audit.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		engine:     engine,
		principals: principals,
		orch:       orch,
		scopes:     scopes,
		logger:     logger,
		metrics:    metrics,
		auditLog:   auditLog,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Observability(s.logger, s.metrics))

	authn := middleware.NewAuthMiddleware(s.engine, false)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(authn.Handler)

	// Introspection
	v1.HandleFunc("/me", s.getMe).Methods("GET")
	v1.HandleFunc("/me/permissions", s.getMyPermissions).Methods("GET")
	v1.HandleFunc("/me/permissions/refresh", s.refreshMyPermissions).Methods("POST")

	// Vendor-scoped access
	v1.HandleFunc("/vendors/{id}/access", s.getVendorAccess).Methods("GET")
	v1.Handle("/vendors/{id}/inquiries/{inquiryID}/respond",
		middleware.RequireVendorCapability(s.engine, scope.CapabilityRespondInquiries)(
			http.HandlerFunc(s.respondToInquiry))).Methods("POST")

	// Staff management
	v1.Handle("/vendors/{id}/staff",
		middleware.RequireVendorCapability(s.engine, scope.CapabilityManageTeam)(
			http.HandlerFunc(s.grantStaff))).Methods("POST")
	v1.Handle("/vendors/{id}/staff",
		middleware.RequireVendorCapability(s.engine, scope.CapabilityManageTeam)(
			http.HandlerFunc(s.listStaff))).Methods("GET")
	v1.Handle("/vendors/{id}/staff/{principalID}",
		middleware.RequireVendorCapability(s.engine, scope.CapabilityManageTeam)(
			http.HandlerFunc(s.revokeStaff))).Methods("DELETE")

	// Administration
	v1.Handle("/principals/{subject}/permissions",
		middleware.RequirePermission(s.engine, PermissionManagePrincipals)(
			http.HandlerFunc(s.overridePermissions))).Methods("PUT")
}

// Router returns the configured router for mounting
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
