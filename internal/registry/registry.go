// Package registry maps tracking identifiers to recipient metadata.
//
// Entries are written once at registration time and read during event
// enrichment. Unlike the registry's first iteration, entries carry a TTL:
// a mapping that outlives the engagement window is evicted rather than
// held forever.
package registry

import (
	"context"
	"log"
)

// Entry is the recipient metadata attached to a tracking id.
type Entry struct {
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
}

// Store persists tracking-id mappings. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores the mapping, refreshing its TTL.
	Put(ctx context.Context, trackingID string, e Entry) error
	// Get returns the mapping and whether it exists. An expired or unknown
	// id reports found=false, not an error.
	Get(ctx context.Context, trackingID string) (Entry, bool, error)
	Close() error
}

// Registry resolves tracking ids for event enrichment.
type Registry struct {
	store Store
}

// New creates a registry backed by the given store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// Register stores the mapping for a tracking id.
func (r *Registry) Register(ctx context.Context, trackingID string, e Entry) error {
	return r.store.Put(ctx, trackingID, e)
}

// Resolve returns the recipient id and name for a tracking id. Unknown,
// expired, or unreachable mappings all resolve to empty strings: a stale
// tracking id is an expected signal, never an error.
func (r *Registry) Resolve(ctx context.Context, trackingID string) (string, string) {
	e, ok, err := r.store.Get(ctx, trackingID)
	if err != nil {
		log.Printf("[Registry] lookup failed for %s: %v", trackingID, err)
		return "", ""
	}
	if !ok {
		return "", ""
	}
	return e.RecipientID, e.RecipientName
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
