package sideeffects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/geo"
	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	domtracking "github.com/sitly-nl/matchsearch/internal/domain/tracking"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// --- Mocks ---

type mockTracking struct {
	mu        sync.Mutex
	latest    *domtracking.Record
	latestErr error
	createErr error
	created   []domtracking.Record
	deleted   []string
	calls     int
}

func (m *mockTracking) Latest(_ context.Context, _ string, _ int64) (*domtracking.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.latest, m.latestErr
}

func (m *mockTracking) Create(_ context.Context, _ string, rec domtracking.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, rec)
	return nil
}

func (m *mockTracking) Delete(_ context.Context, _, searchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, searchID)
	return nil
}

type mockPrefs struct {
	mu     sync.Mutex
	writes []user.PreferenceChanges
}

func (m *mockPrefs) UpdatePreferences(_ context.Context, _ string, _ *user.User, c user.PreferenceChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, c)
	return nil
}

// --- Helpers ---

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(tr *mockTracking, prefs *mockPrefs) *Service {
	svc := New(tr, prefs, Config{TrackingWindow: 30 * 24 * time.Hour, TopN: 20, RetryAttempts: 2}, zap.NewNop())
	svc.WithClock(func() time.Time { return now })
	svc.newID = func() string { return "search-new" }
	return svc
}

func careSeeker() *user.User {
	return &user.User{ID: 7, Role: user.RoleParent, Preferences: user.Preferences{MaxDistanceKm: 15}}
}

func relevance(t *testing.T, p criteria.Params) criteria.Criteria {
	t.Helper()
	p.Sort = criteria.SortRelevance
	if p.Page.Number == 0 {
		p.Page = criteria.Page{Number: 1, Size: 20}
	}
	cr, err := criteria.New(p)
	if err != nil {
		t.Fatalf("criteria: %v", err)
	}
	return cr
}

func hits(n int) []result.Hit {
	out := make([]result.Hit, n)
	for i := range out {
		out[i] = result.Hit{UserID: int64(100 + i), Score: float64(n - i)}
	}
	return out
}

// --- Tests ---

func TestRecordTopHits_ReplacesStaleRecord(t *testing.T) {
	tr := &mockTracking{latest: &domtracking.Record{SearchID: "search-old", UserID: 7, CreatedAt: now.Add(-31 * 24 * time.Hour)}}
	svc := newTestService(tr, &mockPrefs{})

	written, err := svc.RecordTopHits(context.Background(), "nl", careSeeker(), relevance(t, criteria.Params{}), false, hits(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !written {
		t.Fatal("expected a record to be written")
	}
	if len(tr.created) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(tr.created))
	}
	if len(tr.deleted) != 1 || tr.deleted[0] != "search-old" {
		t.Errorf("expected search-old deleted, got %v", tr.deleted)
	}
	rec := tr.created[0]
	if rec.SearchID != "search-new" || rec.UserID != 7 || len(rec.Hits) != 20 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Hits[0].Rank != 1 || rec.Hits[0].UserID != 100 {
		t.Errorf("unexpected first hit %+v", rec.Hits[0])
	}
}

func TestRecordTopHits_WithinWindowSkipped(t *testing.T) {
	tr := &mockTracking{latest: &domtracking.Record{SearchID: "search-old", UserID: 7, CreatedAt: now.Add(-2 * 24 * time.Hour)}}
	svc := newTestService(tr, &mockPrefs{})

	written, err := svc.RecordTopHits(context.Background(), "nl", careSeeker(), relevance(t, criteria.Params{}), false, hits(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written || len(tr.created) != 0 || len(tr.deleted) != 0 {
		t.Errorf("expected no writes, created=%d deleted=%d", len(tr.created), len(tr.deleted))
	}
}

func TestRecordTopHits_TouchedRecordKept(t *testing.T) {
	tr := &mockTracking{latest: &domtracking.Record{
		SearchID: "search-old", UserID: 7, Touched: true, CreatedAt: now.Add(-40 * 24 * time.Hour),
	}}
	svc := newTestService(tr, &mockPrefs{})

	if _, err := svc.RecordTopHits(context.Background(), "nl", careSeeker(), relevance(t, criteria.Params{}), false, hits(3)); err != nil {
		t.Fatal(err)
	}
	if len(tr.deleted) != 0 {
		t.Errorf("touched record must be kept, deleted %v", tr.deleted)
	}
	if len(tr.created) != 1 {
		t.Errorf("expected 1 created record, got %d", len(tr.created))
	}
}

func TestRecordTopHits_Ineligible(t *testing.T) {
	caregiver := &user.User{ID: 9, Role: user.RoleBabysitter}
	quarantined := careSeeker()
	quarantined.QuarantinedUntil = now.Add(time.Hour)

	tests := []struct {
		name     string
		searcher *user.User
		page     int
		isTest   bool
	}{
		{"caregiver", caregiver, 1, false},
		{"quarantined", quarantined, 1, false},
		{"second page", careSeeker(), 2, false},
		{"test search", careSeeker(), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTracking{}
			svc := newTestService(tr, &mockPrefs{})
			cr := relevance(t, criteria.Params{Page: criteria.Page{Number: tt.page, Size: 20}})
			written, err := svc.RecordTopHits(context.Background(), "nl", tt.searcher, cr, tt.isTest, hits(3))
			if err != nil {
				t.Fatal(err)
			}
			if written || len(tr.created) != 0 {
				t.Error("expected no record")
			}
		})
	}
}

func TestRecordTopHits_RetriesTransientFailure(t *testing.T) {
	tr := &mockTracking{latestErr: errors.New("connection reset")}
	svc := newTestService(tr, &mockPrefs{})

	_, err := svc.RecordTopHits(context.Background(), "nl", careSeeker(), relevance(t, criteria.Params{}), false, hits(3))
	if err == nil {
		t.Fatal("expected error")
	}
	if tr.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", tr.calls)
	}
}

func TestReconcilePreferences_UnchangedDistanceNoWrite(t *testing.T) {
	prefs := &mockPrefs{}
	svc := newTestService(&mockTracking{}, prefs)
	cr := relevance(t, criteria.Params{Center: &geo.Point{Lat: 52.37, Lon: 4.9}, DistanceKm: 15})

	written, err := svc.ReconcilePreferences(context.Background(), "nl", careSeeker(), cr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if written || len(prefs.writes) != 0 {
		t.Errorf("expected no write, got %d", len(prefs.writes))
	}
}

func TestReconcilePreferences_ChangedDistanceOneWrite(t *testing.T) {
	prefs := &mockPrefs{}
	svc := newTestService(&mockTracking{}, prefs)
	cr := relevance(t, criteria.Params{Center: &geo.Point{Lat: 52.37, Lon: 4.9}, DistanceKm: 25})

	written, err := svc.ReconcilePreferences(context.Background(), "nl", careSeeker(), cr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !written || len(prefs.writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(prefs.writes))
	}
	w := prefs.writes[0]
	if w.MaxDistanceKm == nil || *w.MaxDistanceKm != 25 {
		t.Errorf("expected distance 25, got %v", w.MaxDistanceKm)
	}
	if w.Gender != nil || w.RemoteTutor != nil || w.AfterSchool != nil || w.Languages != nil || w.Availability != nil {
		t.Errorf("only distance may change, got %+v", w)
	}
}

func TestReconcilePreferences_FlagsLanguagesAndGrid(t *testing.T) {
	prefs := &mockPrefs{}
	svc := newTestService(&mockTracking{}, prefs)
	searcher := careSeeker()
	searcher.Preferences.Languages = []string{"nl", "en"}

	cell, _ := availability.ParseCell("tuesday", "evening")
	grid := availability.Grid{}.With(cell, true)
	cr := relevance(t, criteria.Params{
		Flags:     map[user.Flag]bool{user.FlagRemoteTutor: true, user.FlagSmoker: false},
		Languages: []string{"en", "nl"},
		Gender:    "f",
	})

	if _, err := svc.ReconcilePreferences(context.Background(), "nl", searcher, cr, &grid); err != nil {
		t.Fatal(err)
	}
	if len(prefs.writes) != 1 {
		t.Fatalf("expected one write, got %d", len(prefs.writes))
	}
	w := prefs.writes[0]
	if w.RemoteTutor == nil || !*w.RemoteTutor {
		t.Error("expected remote tutor change")
	}
	if w.AfterSchool != nil {
		t.Error("after school was not requested")
	}
	if w.Languages != nil {
		t.Error("same language set must not be written")
	}
	if w.Gender == nil || *w.Gender != "f" {
		t.Error("expected gender change")
	}
	if w.Availability == nil || !w.Availability.Has(cell) {
		t.Error("expected full availability grid")
	}
}

func TestReconcilePreferences_NonRelevanceIgnored(t *testing.T) {
	prefs := &mockPrefs{}
	svc := newTestService(&mockTracking{}, prefs)
	cr, err := criteria.New(criteria.Params{Center: &geo.Point{Lat: 52, Lon: 5}, DistanceKm: 40, Sort: criteria.SortDistance})
	if err != nil {
		t.Fatal(err)
	}
	if written, _ := svc.ReconcilePreferences(context.Background(), "nl", careSeeker(), cr, nil); written {
		t.Error("expected no write for distance sort")
	}
}

func TestDispatcher_RunsEffects(t *testing.T) {
	tr := &mockTracking{}
	prefs := &mockPrefs{}
	d, err := NewDispatcher(newTestService(tr, prefs), 4, time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	cr := relevance(t, criteria.Params{Center: &geo.Point{Lat: 52.37, Lon: 4.9}, DistanceKm: 30})
	d.Dispatch(Event{
		Tenant:   "nl",
		Actor:    request.Actor{UserID: 7, Context: request.ContextSelf},
		Searcher: careSeeker(),
		Criteria: cr,
		Hits:     hits(3),
	})
	d.Wait()

	if len(tr.created) != 1 {
		t.Errorf("expected tracking record, got %d", len(tr.created))
	}
	if len(prefs.writes) != 1 {
		t.Errorf("expected preference write, got %d", len(prefs.writes))
	}
}

func TestDispatcher_PublicSkipsPreferences(t *testing.T) {
	tr := &mockTracking{}
	prefs := &mockPrefs{}
	d, err := NewDispatcher(newTestService(tr, prefs), 4, time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	cr := relevance(t, criteria.Params{Center: &geo.Point{Lat: 52.37, Lon: 4.9}, DistanceKm: 30})
	d.Dispatch(Event{
		Tenant:   "nl",
		Actor:    request.Actor{UserID: 7, Context: request.ContextPublic},
		Searcher: careSeeker(),
		Criteria: cr,
		Hits:     hits(3),
	})
	d.Wait()

	if len(prefs.writes) != 0 {
		t.Errorf("public searches must not write preferences, got %d", len(prefs.writes))
	}
}

func TestDispatcher_FailureSwallowed(t *testing.T) {
	tr := &mockTracking{createErr: errors.New("down")}
	d, err := NewDispatcher(newTestService(tr, &mockPrefs{}), 1, time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	d.Dispatch(Event{
		Tenant:   "nl",
		Actor:    request.Actor{UserID: 7, Context: request.ContextGem},
		Searcher: careSeeker(),
		Criteria: relevance(t, criteria.Params{}),
		Hits:     hits(1),
	})
	d.Wait()

	if len(tr.created) != 0 {
		t.Error("expected no record")
	}
}
