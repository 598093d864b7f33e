package history

import "context"

// Log persists and retrieves lifecycle events.
type Log interface {
	// Append adds a new event to the log.
	Append(ctx context.Context, e Event) error

	// ForOwner returns the newest events of an owner, newest first, at most limit.
	ForOwner(ctx context.Context, ownerID string, limit int) ([]Event, error)

	// Close releases resources.
	Close() error
}

// NopLog discards every event. It is used when no history database is configured.
type NopLog struct{}

func (NopLog) Append(context.Context, Event) error { return nil }

func (NopLog) ForOwner(context.Context, string, int) ([]Event, error) { return nil, nil }

func (NopLog) Close() error { return nil }
