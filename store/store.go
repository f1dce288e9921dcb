// Package store persists the current cursor value for each indexer name.
//
// Values are stored in their canonical encoded form; the engine owns
// encoding and decoding. Three implementations are provided: an
// in-process map (default; state is lost on restart), a Pebble-backed
// durable store, and a NATS JetStream key-value bucket for deployments
// already carrying NATS.
package store

import "context"

// Store is the minimal KV capability the engine needs for cursors.
type Store interface {
	// Get returns the encoded cursor for name. The second return is false
	// when no cursor has been written yet.
	Get(ctx context.Context, name string) (string, bool, error)
	// Set writes the encoded cursor for name. Last writer wins.
	Set(ctx context.Context, name, value string) error
	// Delete removes the cursor for name. Deleting an absent cursor is
	// not an error.
	Delete(ctx context.Context, name string) error
}
