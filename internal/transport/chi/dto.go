package chi

import (
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	domplace "github.com/sitly-nl/matchsearch/internal/domain/place"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SearchResponse is the body of GET /v1/{tenant}/users/search. Data holds
// hits for a page, clusters for a grouped search and nothing for a count.
type SearchResponse struct {
	Data any        `json:"data,omitempty"`
	Meta SearchMeta `json:"meta"`
}

// SearchMeta carries the pagination of a page or the total of a count or cluster list.
type SearchMeta struct {
	Pagination *result.Pagination `json:"pagination,omitempty"`
	Total      *int               `json:"total,omitempty"`
}

// HitResponse is a single ranked user.
type HitResponse struct {
	ID          int64                `json:"id"`
	Score       float64              `json:"score"`
	DistanceKm  *float64             `json:"distance_km,omitempty"`
	Factors     map[string]float64   `json:"factors,omitempty"`
	Explanation *ExplanationResponse `json:"explanation,omitempty"`
}

// ExplanationResponse is a score breakdown node.
type ExplanationResponse struct {
	Value       float64               `json:"value"`
	Description string                `json:"description"`
	Details     []ExplanationResponse `json:"details,omitempty"`
}

// ClusterResponse is a map cluster.
type ClusterResponse struct {
	Count     int     `json:"count"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PointResponse is a coordinate pair.
type PointResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoundsResponse is a bounding box.
type BoundsResponse struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// PlaceResponse is a localized place.
type PlaceResponse struct {
	ID          string        `json:"id"`
	CanonicalID string        `json:"canonical_id,omitempty"`
	LocaleID    int           `json:"locale_id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	SlugEnglish string        `json:"slug_english,omitempty"`
	Location    PointResponse `json:"location"`
	UserCount   int           `json:"user_count"`
}

// PlaceListResponse wraps a list of places.
type PlaceListResponse struct {
	Data []PlaceResponse `json:"data"`
}

// PostalAreaResponse is an exact postal code or the range containing it.
type PostalAreaResponse struct {
	Code    string         `json:"code"`
	Match   string         `json:"match"` // "exact" or "range"
	PlaceID string         `json:"place_id,omitempty"`
	From    int            `json:"from,omitempty"`
	To      int            `json:"to,omitempty"`
	Center  PointResponse  `json:"center"`
	Bounds  BoundsResponse `json:"bounds"`
}

func searchResultToResponse(r result.SearchResult) SearchResponse {
	switch {
	case r.Count != nil:
		n := *r.Count
		return SearchResponse{Meta: SearchMeta{Total: &n}}
	case r.Clusters != nil:
		data := make([]ClusterResponse, len(r.Clusters.Groups))
		for i, g := range r.Clusters.Groups {
			data[i] = ClusterResponse{Count: g.Count, Latitude: g.Latitude, Longitude: g.Longitude}
		}
		total := r.Clusters.Total
		return SearchResponse{Data: data, Meta: SearchMeta{Total: &total}}
	case r.Page != nil:
		data := make([]HitResponse, len(r.Page.Hits))
		for i, h := range r.Page.Hits {
			data[i] = hitToResponse(h)
		}
		p := r.Page.Pagination
		return SearchResponse{Data: data, Meta: SearchMeta{Pagination: &p}}
	}
	return SearchResponse{Data: []HitResponse{}}
}

func hitToResponse(h result.Hit) HitResponse {
	return HitResponse{
		ID:          h.UserID,
		Score:       h.Score,
		DistanceKm:  h.DistanceKm,
		Factors:     h.Factors,
		Explanation: explanationToResponse(h.Explanation),
	}
}

func explanationToResponse(e *result.Explanation) *ExplanationResponse {
	if e == nil {
		return nil
	}
	out := &ExplanationResponse{Value: e.Value, Description: e.Description}
	for i := range e.Details {
		out.Details = append(out.Details, *explanationToResponse(&e.Details[i]))
	}
	return out
}

func pointToResponse(p geo.Point) PointResponse {
	return PointResponse{Latitude: p.Lat, Longitude: p.Lon}
}

func boundsToResponse(b geo.Bounds) BoundsResponse {
	return BoundsResponse{North: b.North, South: b.South, East: b.East, West: b.West}
}

func placeToResponse(p domplace.Place) PlaceResponse {
	return PlaceResponse{
		ID:          p.ID,
		CanonicalID: p.CanonicalID,
		LocaleID:    p.LocaleID,
		Name:        p.Name,
		Slug:        p.Slug,
		SlugEnglish: p.SlugEnglish,
		Location:    pointToResponse(p.Location),
		UserCount:   p.UserCount,
	}
}

func placesToResponse(places []domplace.Place) PlaceListResponse {
	data := make([]PlaceResponse, len(places))
	for i, p := range places {
		data[i] = placeToResponse(p)
	}
	return PlaceListResponse{Data: data}
}
