package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports whether a tenant's user index exists.
type IndexChecker interface {
	UserIndexExists(ctx context.Context, tenant string) (bool, error)
}
