package chi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/sitly-nl/matchsearch/internal/domain"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
)

const (
	defaultNearbyRadiusKm = 10.0
	defaultNearbyLimit    = 10
	maxPlaceLimit         = 100
)

// SearchUsers handles GET /v1/{tenant}/users/search.
func (s *Server) SearchUsers(w http.ResponseWriter, r *http.Request) {
	raw, err := searchInput(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.search.Search(r.Context(), chi.URLParam(r, "tenant"), raw, ActorFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResultToResponse(res))
}

// GetPlace handles GET /v1/{tenant}/places/{slug}.
func (s *Server) GetPlace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		localeID int
		merge    bool
	)
	if !bindQuery(w, q, "locale", false, &localeID) || !bindQuery(w, q, "merge", false, &merge) {
		return
	}

	p, err := s.places.ResolveByURLSlug(r.Context(), chi.URLParam(r, "tenant"), chi.URLParam(r, "slug"), localeID, merge)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if p == nil {
		s.handleDomainError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, placeToResponse(*p))
}

// SearchPlaces handles GET /v1/{tenant}/places?keyword=.
func (s *Server) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		keyword  string
		limit    int
		localeID int
	)
	if !bindQuery(w, q, "keyword", true, &keyword) ||
		!bindQuery(w, q, "limit", false, &limit) ||
		!bindQuery(w, q, "locale", false, &localeID) {
		return
	}
	if strings.TrimSpace(keyword) == "" {
		writeParamError(w, "keyword", "keyword must not be empty")
		return
	}
	if limit < 0 || limit > maxPlaceLimit {
		writeParamError(w, "limit", "limit must be between 1 and 100")
		return
	}

	places, err := s.places.ResolveByKeyword(r.Context(), chi.URLParam(r, "tenant"), keyword, limit, localeID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placesToResponse(places))
}

// NearbyPlaces handles GET /v1/{tenant}/places/nearby.
func (s *Server) NearbyPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		lat, lng float64
		radius   = defaultNearbyRadiusKm
		limit    = defaultNearbyLimit
		exclude  []string
		localeID int
		merge    bool
	)
	if !bindQuery(w, q, "lat", true, &lat) ||
		!bindQuery(w, q, "lng", true, &lng) ||
		!bindQuery(w, q, "radius", false, &radius) ||
		!bindQuery(w, q, "limit", false, &limit) ||
		!bindList(w, q, "exclude", &exclude) ||
		!bindQuery(w, q, "locale", false, &localeID) ||
		!bindQuery(w, q, "merge", false, &merge) {
		return
	}

	center := geo.Point{Lat: lat, Lon: lng}
	if err := center.Validate(); err != nil {
		writeParamError(w, "lat", err.Error())
		return
	}
	if radius <= 0 {
		writeParamError(w, "radius", "radius must be positive")
		return
	}
	if limit <= 0 || limit > maxPlaceLimit {
		writeParamError(w, "limit", "limit must be between 1 and 100")
		return
	}

	places, err := s.places.ResolveByProximity(
		r.Context(), chi.URLParam(r, "tenant"), center, radius, limit, exclude, localeID, merge,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placesToResponse(places))
}

// GetPostalCode handles GET /v1/{tenant}/postal-codes/{code}. An exact code
// wins over the numeric range containing it.
func (s *Server) GetPostalCode(w http.ResponseWriter, r *http.Request) {
	tenant, code := chi.URLParam(r, "tenant"), chi.URLParam(r, "code")

	pc, err := s.places.ResolveByPostalCode(r.Context(), tenant, code)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if pc != nil {
		writeJSON(w, http.StatusOK, PostalAreaResponse{
			Code:    pc.Code,
			Match:   "exact",
			PlaceID: pc.PlaceID,
			Center:  pointToResponse(pc.Center),
			Bounds:  boundsToResponse(pc.Bounds),
		})
		return
	}

	pr, err := s.places.ResolveByPostalRange(r.Context(), tenant, code)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if pr == nil {
		s.handleDomainError(w, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, PostalAreaResponse{
		Code:    code,
		Match:   "range",
		PlaceID: pr.PlaceID,
		From:    pr.From,
		To:      pr.To,
		Center:  pointToResponse(pr.Center),
		Bounds:  boundsToResponse(pr.Bounds),
	})
}

// bindQuery binds a scalar query parameter, writing a 400 on failure.
func bindQuery(w http.ResponseWriter, q url.Values, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, q, dest); err != nil {
		writeParamError(w, name, err.Error())
		return false
	}
	return true
}

// bindList binds a comma-separated list parameter.
func bindList(w http.ResponseWriter, q url.Values, name string, dest *[]string) bool {
	if err := runtime.BindQueryParameter("form", false, false, name, q, dest); err != nil {
		writeParamError(w, name, err.Error())
		return false
	}
	return true
}

func writeParamError(w http.ResponseWriter, param, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeBadRequest,
		Message: message,
		Param:   param,
	})
}
