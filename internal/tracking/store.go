package tracking

import "context"

// Store is a keyed record store with subscribe/push semantics. Every backend
// enforces Apply's write-once rules on its own side.
type Store interface {
	// Apply performs m against the record named id and returns the result.
	Apply(ctx context.Context, id string, m Mutation) (*Record, error)
	// Get returns the current record, or nil and no error when it is absent.
	Get(ctx context.Context, id string) (*Record, error)
	// Subscribe delivers the full current record (nil when absent) right away
	// and again after every change, until cancel is called or ctx ends.
	Subscribe(ctx context.Context, id string, fn func(*Record)) (cancel func(), err error)
}
