package tracking

import (
	"testing"
	"time"

	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

const window = 30 * 24 * time.Hour

func base() Eligibility {
	return Eligibility{Sort: criteria.SortRelevance, Page: 1, Searcher: &user.User{ID: 7, Role: user.RoleParent}}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		mod  func(e *Eligibility)
		want bool
	}{
		{"first page relevance", func(*Eligibility) {}, true},
		{"page two", func(e *Eligibility) { e.Page = 2 }, false},
		{"distance sort", func(e *Eligibility) { e.Sort = criteria.SortDistance }, false},
		{"test search", func(e *Eligibility) { e.IsTest = true }, false},
		{"no searcher", func(e *Eligibility) { e.Searcher = nil }, false},
		{"quarantined", func(e *Eligibility) {
			e.Searcher = &user.User{ID: 7, Role: user.RoleParent, QuarantinedUntil: now.Add(time.Hour)}
		}, false},
		{"caregiver searcher", func(e *Eligibility) {
			e.Searcher = &user.User{ID: 7, Role: user.RoleBabysitter}
		}, false},
		{"record two days old", func(e *Eligibility) {
			e.Latest = &Record{CreatedAt: now.Add(-2 * 24 * time.Hour)}
		}, false},
		{"record 31 days old", func(e *Eligibility) {
			e.Latest = &Record{CreatedAt: now.Add(-31 * 24 * time.Hour)}
		}, true},
		{"touched record 31 days old", func(e *Eligibility) {
			e.Latest = &Record{CreatedAt: now.Add(-31 * 24 * time.Hour), Touched: true}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base()
			tt.mod(&e)
			if got := Eligible(e, now, window); got != tt.want {
				t.Fatalf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRecord_TopN(t *testing.T) {
	ids := make([]int64, 30)
	scores := make([]float64, 30)
	for i := range ids {
		ids[i] = int64(100 + i)
		scores[i] = float64(30 - i)
	}
	r := NewRecord("s1", 7, now, ids, scores, 20)
	if len(r.Hits) != 20 {
		t.Fatalf("want 20 hits, got %d", len(r.Hits))
	}
	if r.Hits[0].Rank != 1 || r.Hits[0].UserID != 100 || r.Hits[19].Rank != 20 {
		t.Fatalf("ranks out of order: first=%+v last=%+v", r.Hits[0], r.Hits[19])
	}
}

func TestReplaces(t *testing.T) {
	if Replaces(nil) || Replaces(&Record{Touched: true}) || !Replaces(&Record{}) {
		t.Fatal("only untouched records are replaced")
	}
}
