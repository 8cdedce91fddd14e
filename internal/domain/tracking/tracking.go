// Package tracking records the top results a searcher was shown so the
// ranking can later be evaluated against who they actually contacted.
package tracking

import (
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// Hit is one tracked candidate.
type Hit struct {
	UserID int64   `json:"user_id"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// Record is the tracked outcome of one search. Touched becomes true once
// the searcher interacts with any tracked hit.
type Record struct {
	SearchID  string    `json:"search_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Touched   bool      `json:"touched"`
	Hits      []Hit     `json:"hits"`
}

// NewRecord keeps the first topN hits in rank order, ranks starting at 1.
func NewRecord(searchID string, userID int64, createdAt time.Time, ids []int64, scores []float64, topN int) Record {
	n := len(ids)
	if topN > 0 && n > topN {
		n = topN
	}
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		var score float64
		if i < len(scores) {
			score = scores[i]
		}
		hits[i] = Hit{UserID: ids[i], Score: score, Rank: i + 1}
	}
	return Record{SearchID: searchID, UserID: userID, CreatedAt: createdAt, Hits: hits}
}

// Eligibility is what decides whether a search may be tracked.
type Eligibility struct {
	Sort     criteria.SortMode
	Page     int
	IsTest   bool
	Searcher *user.User
	Latest   *Record
}

// Eligible reports whether a new record should be written. Only first
// pages of relevance searches by non-quarantined care seekers qualify, at
// most once per window.
func Eligible(e Eligibility, now time.Time, window time.Duration) bool {
	if e.Sort != criteria.SortRelevance || e.Page > 1 || e.IsTest {
		return false
	}
	if e.Searcher == nil || !e.Searcher.SeeksCare() || e.Searcher.IsQuarantined(now) {
		return false
	}
	return e.Latest == nil || now.Sub(e.Latest.CreatedAt) >= window
}

// Replaces reports whether writing a new record should delete latest.
func Replaces(latest *Record) bool {
	return latest != nil && !latest.Touched
}
