package ports

import (
	"context"

	"waste-dispatch-service/internal/domain"
)

// Persistent store for successful route lookups.
// Entries are immutable once written; a key is written at most once
// per process but implementations must tolerate overwrites.
type RouteCache interface {
	GetRoute(ctx context.Context, key string) (domain.RouteResult, bool, error)
	PutRoute(ctx context.Context, key string, r domain.RouteResult) error
}
