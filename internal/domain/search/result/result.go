// Package result holds search output: ranked hits, pages and map clusters.
package result

// Explanation is a node of a score breakdown tree.
type Explanation struct {
	Value       float64
	Description string
	Details     []Explanation
}

// Hit is a single ranked candidate.
type Hit struct {
	UserID      int64
	Score       float64
	DistanceKm  *float64
	Explanation *Explanation
	// Factors is the per-factor breakdown, set only for explained searches.
	Factors map[string]float64
}

// Pagination describes the returned page and the full result size.
type Pagination struct {
	Number int `json:"number"`
	Size   int `json:"size"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// NewPagination derives the page count from total and size.
func NewPagination(number, size, total int) Pagination {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Pagination{Number: number, Size: size, Total: total, Pages: pages}
}

// Page is a paginated, ranked result.
type Page struct {
	Hits       []Hit
	Pagination Pagination
}

// Cluster is a group of nearby hits.
type Cluster struct {
	Count     int
	Latitude  float64
	Longitude float64
}

// Clusters is a grouped result.
type Clusters struct {
	Groups []Cluster
	Total  int
}

// SearchResult is exactly one of Page, Clusters or Count.
type SearchResult struct {
	Page     *Page
	Clusters *Clusters
	Count    *int
}
