// Package forensics holds the sentinel errors shared across the pipeline.
package forensics

import "errors"

var (
	// ErrUpstream signals an RPC/transport failure that survived the retry budget.
	ErrUpstream = errors.New("upstream rpc failure")
	// ErrDecode signals a malformed log that was counted and dropped.
	ErrDecode = errors.New("malformed event")
	// ErrNotFound signals a query miss.
	ErrNotFound = errors.New("not found")
	// ErrCapacity signals a subscriber queue overflow.
	ErrCapacity = errors.New("subscriber queue full")
	// ErrPersistence signals a durable-store write failure.
	ErrPersistence = errors.New("durable store write failed")
	// ErrCancelled signals cooperative cancellation of an in-flight operation.
	ErrCancelled = errors.New("operation cancelled")
)
