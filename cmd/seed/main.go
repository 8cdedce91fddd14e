// Seed loads a fixture of places, postal areas and user profiles into the
// search store and creates the tenant's indexes.
//
// Usage:
//
//	ENV=local seed -fixture cmd/seed/testdata/amsterdam.yaml -workers 8
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/sitly-nl/matchsearch/internal/config"
	dbRedis "github.com/sitly-nl/matchsearch/internal/db/redis"
	"github.com/sitly-nl/matchsearch/internal/domain"
	logpkg "github.com/sitly-nl/matchsearch/internal/logger"
	placerepo "github.com/sitly-nl/matchsearch/internal/repository/place"
	schemarepo "github.com/sitly-nl/matchsearch/internal/repository/schema"
	userrepo "github.com/sitly-nl/matchsearch/internal/repository/user"
)

type options struct {
	fixture string
	workers int
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.fixture, "fixture", "cmd/seed/testdata/amsterdam.yaml", "fixture file to load")
	flag.IntVar(&o.workers, "workers", 8, "parallel profile writers")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	env := config.GetEnv()
	logger, err := logpkg.NewLogger(env)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, env, opts, logger); err != nil {
		logger.Error("seed failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, env string, opts options, logger *zap.Logger) error {
	start := time.Now()

	cfg, err := config.Load(env)
	if err != nil {
		return err
	}
	fx, err := loadFixture(opts.fixture)
	if err != nil {
		return err
	}
	if _, ok := cfg.Tenant(fx.Tenant); !ok {
		return fmt.Errorf("tenant %q is not configured for env %s", fx.Tenant, env)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer store.Close()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	keys := domain.NewKeyspace(cfg.Storage.KeyPrefix)
	created, err := schemarepo.New(store, keys).Ensure(ctx, fx.Tenant)
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("indexes ready", zap.String("tenant", fx.Tenant), zap.Strings("created", created))

	if err := seedPlaces(ctx, placerepo.New(store, keys), fx); err != nil {
		return err
	}
	n, err := seedUsers(ctx, userrepo.New(store, keys), fx, opts.workers, logger)
	if err != nil {
		return err
	}

	logger.Info("seed done",
		zap.String("tenant", fx.Tenant),
		zap.Int("places", len(fx.Places)),
		zap.Int("postal_codes", len(fx.PostalCodes)),
		zap.Int("postal_ranges", len(fx.PostalRanges)),
		zap.Int("users", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func seedPlaces(ctx context.Context, repo *placerepo.Repo, fx fixture) error {
	for _, p := range fx.Places {
		if err := repo.Save(ctx, fx.Tenant, p.place()); err != nil {
			return err
		}
	}
	for _, pc := range fx.PostalCodes {
		if err := repo.SavePostalCode(ctx, fx.Tenant, pc.postalCode()); err != nil {
			return err
		}
	}
	for _, pr := range fx.PostalRanges {
		if err := repo.SavePostalRange(ctx, fx.Tenant, pr.postalRange()); err != nil {
			return err
		}
	}
	return nil
}

// seedUsers writes profiles on a worker pool and returns how many were written.
func seedUsers(ctx context.Context, repo *userrepo.Repo, fx fixture, workers int, logger *zap.Logger) (int, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, fmt.Errorf("create pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
		errs    []error
	)
	for i, fields := range fx.Users {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			id, err := repo.Import(ctx, fx.Tenant, fields)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
				return
			}
			written++
			logger.Debug("user written", zap.Int64("user_id", id))
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submit users[%d]: %w", i, submitErr))
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return written, errors.Join(errs...)
}
