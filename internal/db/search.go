package db

import (
	"github.com/sitly-nl/matchsearch/internal/domain/search/filter"
	"github.com/sitly-nl/matchsearch/internal/domain/search/query"
)

// AggregateQuery runs a compiled search through FT.AGGREGATE.
type AggregateQuery struct {
	IndexName string
	Query     *query.Compiled
	// KeyField is the document field returned as AggregateRow.Key.
	KeyField string
	// GeoField is the GEO field distances are measured on.
	GeoField string
	// LatField and LonField feed clustering.
	LatField string
	LonField string
}

// AggregateResult is the output of FT.AGGREGATE. For grouped queries Rows
// carry cluster buckets instead of documents.
type AggregateResult struct {
	Rows   []AggregateRow
	Groups []GroupRow
}

// AggregateRow is one ranked document.
type AggregateRow struct {
	Key         string
	Score       float64
	Distance    *float64
	Fields      map[string]string
	Explanation *Explanation
}

// GroupRow is one clustering bucket.
type GroupRow struct {
	Count     int
	Latitude  float64
	Longitude float64
}

// Explanation is a node of a score breakdown tree.
type Explanation struct {
	Value       float64
	Description string
	Details     []Explanation
}

// Shape restricts a GEOSHAPE field to geometries within a WKT polygon.
type Shape struct {
	Field string
	WKT   string
}

// ListQuery is a plain filtered FT.SEARCH.
type ListQuery struct {
	IndexName string
	Filters   filter.Expression
	Within    *Shape
	SortBy    string
	SortDesc  bool
	Offset    int
	Limit     int
	Fields    []string
}

// CountQuery counts documents matching Filters.
type CountQuery struct {
	IndexName string
	Filters   filter.Expression
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
