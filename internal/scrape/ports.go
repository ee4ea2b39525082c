package scrape

import (
	"context"
	"time"

	"github.com/ekenbil/vehicle-sync/internal/domain"
)

// SessionCache holds the cross-call state of one logical run, keyed by an
// opaque session token. Entries expire after the configured TTL so abandoned
// runs clean up on their own. The same token must not be driven by two
// concurrent batch calls; different tokens are fully independent.
type SessionCache interface {
	GetLinks(ctx context.Context, token string) ([]string, bool, error)
	SaveLinks(ctx context.Context, token string, links []string, ttl time.Duration) error
	GetProcessedIDs(ctx context.Context, token string) ([]int64, error)
	SaveProcessedIDs(ctx context.Context, token string, ids []int64, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// Repository is the persistence boundary the batch runner requires.
type Repository interface {
	// IsDuplicate returns the storage id for uid, or 0 when absent.
	IsDuplicate(ctx context.Context, uid string) (int64, error)
	// CreateOrUpdate upserts the vehicle by its natural key and returns the
	// storage id. Repeating the call for the same UID must not create a
	// second record.
	CreateOrUpdate(ctx context.Context, v *domain.Vehicle) (int64, error)
	// DeleteNotIn removes every stored vehicle whose id is absent from ids
	// and returns how many were removed. Invoked by the orchestration layer
	// after the final batch, not by the runner itself.
	DeleteNotIn(ctx context.Context, ids []int64) (int64, error)
}
