package sideeffects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/domain/availability"
	"github.com/sitly-nl/matchsearch/internal/domain/search/criteria"
	"github.com/sitly-nl/matchsearch/internal/domain/search/request"
	"github.com/sitly-nl/matchsearch/internal/domain/search/result"
	"github.com/sitly-nl/matchsearch/internal/domain/user"
	"github.com/sitly-nl/matchsearch/internal/metrics"
)

// Effect labels.
const (
	EffectTracking    = "tracking"
	EffectPreferences = "preferences"
)

// Event is everything a finished page search hands over for persistence.
type Event struct {
	Tenant                string
	Actor                 request.Actor
	Searcher              *user.User
	Criteria              criteria.Criteria
	IsTest                bool
	Hits                  []result.Hit
	RequestedAvailability *availability.Grid
}

type effects interface {
	RecordTopHits(
		ctx context.Context, tenant string, searcher *user.User, cr criteria.Criteria, isTest bool, hits []result.Hit,
	) (bool, error)
	ReconcilePreferences(
		ctx context.Context, tenant string, searcher *user.User, cr criteria.Criteria, availabilityUsed *availability.Grid,
	) (bool, error)
}

// Dispatcher runs side effects on a bounded goroutine pool so they never
// delay the response. Failures are logged and counted.
type Dispatcher struct {
	pool    *ants.Pool
	svc     effects
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a pool of size workers.
func NewDispatcher(svc effects, size int, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create side effect pool: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{pool: pool, svc: svc, logger: logger, timeout: timeout}, nil
}

// Dispatch schedules the side effects of ev. Only authenticated searchers
// leave anything behind; preferences follow self searches only.
func (d *Dispatcher) Dispatch(ev Event) {
	if ev.Searcher == nil || !ev.Actor.IsAuthenticated() {
		return
	}
	d.submit(EffectTracking, ev, func(ctx context.Context) (bool, error) {
		return d.svc.RecordTopHits(ctx, ev.Tenant, ev.Searcher, ev.Criteria, ev.IsTest, ev.Hits)
	})
	if ev.Actor.IsSelf() {
		d.submit(EffectPreferences, ev, func(ctx context.Context) (bool, error) {
			return d.svc.ReconcilePreferences(ctx, ev.Tenant, ev.Searcher, ev.Criteria, ev.RequestedAvailability)
		})
	}
}

func (d *Dispatcher) submit(effect string, ev Event, run func(ctx context.Context) (bool, error)) {
	log := d.logger.With(
		zap.String("effect", effect),
		zap.String("tenant", ev.Tenant),
		zap.Int64("user_id", ev.Searcher.ID),
	)
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		done, err := run(ctx)
		switch {
		case err != nil:
			metrics.SideEffectsTotal.WithLabelValues(effect, "error").Inc()
			log.Error("side effect failed", zap.Error(err))
		case done:
			metrics.SideEffectsTotal.WithLabelValues(effect, "ok").Inc()
			log.Debug("side effect applied")
		default:
			metrics.SideEffectsTotal.WithLabelValues(effect, "skipped").Inc()
		}
	})
	if err != nil {
		d.wg.Done()
		metrics.SideEffectsTotal.WithLabelValues(effect, "rejected").Inc()
		log.Error("side effect rejected", zap.Error(err))
	}
}

// Wait blocks until every submitted side effect has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Release waits for running side effects and stops the pool.
func (d *Dispatcher) Release() {
	d.Wait()
	d.pool.Release()
}
