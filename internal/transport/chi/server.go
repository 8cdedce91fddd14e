package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	"github.com/sitly-nl/matchsearch/internal/logger"
	healthuc "github.com/sitly-nl/matchsearch/internal/usecase/health"
)

// ErrorCode is the machine-readable error kind in error responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeInvalidParameter ErrorCode = "invalid_parameter"
	CodeForbidden        ErrorCode = "forbidden"
	CodeNotFound         ErrorCode = "not_found"
	CodeUnknownTenant    ErrorCode = "unknown_tenant"
	CodeSearchFailed     ErrorCode = "search_failed"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
}

// Searcher runs user searches.
type Searcher interface {
	Search(ctx context.Context, tenant string, raw request.RawInput, actor request.Actor) (result.SearchResult, error)
}

// PlaceResolver resolves places and postal areas.
type PlaceResolver interface {
	ResolveByURLSlug(ctx context.Context, tenant, slug string, localeID int, merge bool) (*domplace.Place, error)
	ResolveByKeyword(ctx context.Context, tenant, keyword string, limit, localeID int) ([]domplace.Place, error)
	ResolveByProximity(
		ctx context.Context, tenant string, center geo.Point, radiusKm float64,
		limit int, exclude []string, localeID int, merge bool,
	) ([]domplace.Place, error)
	ResolveByPostalCode(ctx context.Context, tenant, code string) (*domplace.PostalCode, error)
	ResolveByPostalRange(ctx context.Context, tenant, code string) (*domplace.PostalRange, error)
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the search API.
type Server struct {
	search        Searcher
	places        PlaceResolver
	health        HealthChecker
	tenants       map[string]struct{}
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server for the given tenants.
func NewServer(
	search Searcher,
	places PlaceResolver,
	health HealthChecker,
	tenants []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		places:  places,
		health:  health,
		tenants: make(map[string]struct{}, len(tenants)),
		logger:  logger,
	}
	for _, t := range tenants {
		s.tenants[t] = struct{}{}
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, CodeForbidden),
		parseErrorHandler,
		sentinelHandler(domain.ErrUnknownTenant, http.StatusNotFound, CodeUnknownTenant),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrSearchFailed, http.StatusInternalServerError, CodeSearchFailed),
	}
	return s
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/{tenant}", func(r chi.Router) {
		r.Use(s.tenantMiddleware)
		r.Get("/users/search", s.SearchUsers)
		r.Get("/places", s.SearchPlaces)
		r.Get("/places/nearby", s.NearbyPlaces)
		r.Get("/places/{slug}", s.GetPlace)
		r.Get("/postal-codes/{code}", s.GetPostalCode)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// Handler returns a router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// tenantMiddleware rejects tenants this deployment does not serve.
func (s *Server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := chi.URLParam(r, "tenant")
		if _, ok := s.tenants[tenant]; !ok {
			s.handleDomainError(w, domain.ErrUnknownTenant)
			return
		}
		logger.AddFields(r.Context(), zap.String("tenant", tenant))
		next.ServeHTTP(w, r)
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrForbidden,
		domain.ErrUnknownTenant,
		domain.ErrNotFound,
		domain.ErrSearchFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// parseErrorHandler reports the offending parameter with a 422.
func parseErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var pe *domain.SearchParseError
	if !errors.As(err, &pe) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code:    CodeInvalidParameter,
		Message: pe.Error(),
		Param:   pe.Param,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
