package port

import "context"

type IdempotencyRepository interface {
	// AcquireKey claims key, returns false if it is already held
	AcquireKey(ctx context.Context, key string) (bool, error)

	// ReleaseKey frees key so the request can be retried
	ReleaseKey(ctx context.Context, key string) error
}
