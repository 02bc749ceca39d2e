// Package indexstore defines the Store contract: a key-value store with
// string/set primitives, TTL, and pipelining, backing the Scanner's
// generational object index. Concrete drivers live in subpackages
// (redis, memory).
package indexstore

import (
	"context"
	"time"
)

// Store is the capability contract the Scanner and Scheduler depend on.
// Every method is safe for concurrent use.
type Store interface {
	// Set writes key=value, with ttl of zero meaning no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, and false if key is absent or
	// expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SetAdd adds members to the set at key.
	SetAdd(ctx context.Context, key string, members ...string) error

	// SetRemove removes members from the set at key.
	SetRemove(ctx context.Context, key string, members ...string) error

	// SetMembers returns every member of the set at key.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Pipeline batches the operations queued by fn into a single round
	// trip where the driver supports it.
	Pipeline(ctx context.Context, fn func(Pipeliner) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Pipeliner queues Store writes for batched execution. Reads are not
// supported inside a pipeline; the Scanner only ever batches writes.
type Pipeliner interface {
	Set(key, value string, ttl time.Duration)
	Delete(key string)
	SetAdd(key string, members ...string)
	SetRemove(key string, members ...string)
}
