package app

import (
	"context"
	"fmt"
)

// RedisPinger is the minimal coordination-store interface for readiness.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker is the minimal blob-store interface for readiness.
type BucketChecker interface {
	HeadBucket(ctx context.Context) error
}

// BuildReadinessChecks returns the redis and blob readiness probes.
func BuildReadinessChecks(store RedisPinger, blob BucketChecker) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	redisCheck := func(ctx context.Context) error {
		if store == nil {
			return fmt.Errorf("redis not configured")
		}
		return store.Ping(ctx)
	}
	blobCheck := func(ctx context.Context) error {
		if blob == nil {
			return fmt.Errorf("blob store not configured")
		}
		return blob.HeadBucket(ctx)
	}
	return redisCheck, blobCheck
}
