// Package sideeffects persists what a search leaves behind: a snapshot of
// the top hits for response tracking and the searcher's updated preferences.
package sideeffects

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	domtracking "github.com/sitly-nl/matchsearch/internal/domain/tracking"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
)

// Config holds thresholds and retry settings.
type Config struct {
	TrackingWindow time.Duration
	TopN           int
	RetryAttempts  uint
	RetryDelay     time.Duration
}

// Service runs individual side effects synchronously.
type Service struct {
	tracking TrackingRepository
	prefs    PreferenceWriter
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// New creates a side-effect service.
func New(tracking TrackingRepository, prefs PreferenceWriter, cfg Config, logger *zap.Logger) *Service {
	if cfg.TrackingWindow <= 0 {
		cfg.TrackingWindow = 30 * 24 * time.Hour
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	return &Service{
		tracking: tracking,
		prefs:    prefs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordTopHits snapshots the first hits of an eligible search. A previous
// record the searcher never acted on is deleted first. It reports whether a
// record was written.
func (s *Service) RecordTopHits(
	ctx context.Context, tenant string, searcher *user.User, cr criteria.Criteria, isTest bool, hits []result.Hit,
) (bool, error) {
	if searcher == nil || len(hits) == 0 {
		return false, nil
	}

	var latest *domtracking.Record
	err := s.retry(ctx, func() error {
		var err error
		latest, err = s.tracking.Latest(ctx, tenant, searcher.ID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("load latest tracking record: %w", err)
	}

	now := s.now()
	eligible := domtracking.Eligible(domtracking.Eligibility{
		Sort:     cr.Sort(),
		Page:     cr.Page().Number,
		IsTest:   isTest,
		Searcher: searcher,
		Latest:   latest,
	}, now, s.cfg.TrackingWindow)
	if !eligible {
		return false, nil
	}

	if domtracking.Replaces(latest) {
		if err := s.retry(ctx, func() error { return s.tracking.Delete(ctx, tenant, latest.SearchID) }); err != nil {
			return false, fmt.Errorf("delete tracking record %s: %w", latest.SearchID, err)
		}
	}

	ids := make([]int64, len(hits))
	scores := make([]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.UserID
		scores[i] = h.Score
	}
	rec := domtracking.NewRecord(s.newID(), searcher.ID, now, ids, scores, s.cfg.TopN)
	if err := s.retry(ctx, func() error { return s.tracking.Create(ctx, tenant, rec) }); err != nil {
		return false, fmt.Errorf("create tracking record: %w", err)
	}
	return true, nil
}

// ReconcilePreferences writes back the preferences a relevance search used
// when they differ from the stored ones. availabilityUsed, when set,
// replaces the stored grid. It reports whether anything was written.
func (s *Service) ReconcilePreferences(
	ctx context.Context, tenant string, searcher *user.User, cr criteria.Criteria, availabilityUsed *availability.Grid,
) (bool, error) {
	if searcher == nil || cr.Sort() != criteria.SortRelevance {
		return false, nil
	}
	changes := diffPreferences(searcher, cr, availabilityUsed)
	if changes.IsEmpty() {
		return false, nil
	}
	if err := s.retry(ctx, func() error { return s.prefs.UpdatePreferences(ctx, tenant, searcher, changes) }); err != nil {
		return false, fmt.Errorf("update preferences of user %d: %w", searcher.ID, err)
	}
	return true, nil
}

func (s *Service) retry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying side effect write", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func diffPreferences(u *user.User, cr criteria.Criteria, grid *availability.Grid) user.PreferenceChanges {
	var ch user.PreferenceChanges
	stored := u.Preferences

	if km := int(math.Round(cr.DistanceKm())); km > 0 && km != stored.MaxDistanceKm {
		ch.MaxDistanceKm = &km
	}
	if g := cr.Gender(); g != "" && g != stored.Gender {
		ch.Gender = &g
	}
	flags := cr.Flags()
	if v, ok := flags[user.FlagRemoteTutor]; ok && v != stored.RemoteTutor {
		ch.RemoteTutor = &v
	}
	if v, ok := flags[user.FlagAfterSchool]; ok && v != stored.AfterSchool {
		ch.AfterSchool = &v
	}
	if langs := cr.Languages(); len(langs) > 0 && !sameSet(langs, stored.Languages) {
		ch.Languages = langs
	}
	if grid != nil && *grid != u.Availability {
		g := *grid
		ch.Availability = &g
	}
	return ch
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
