package history

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a lifecycle transition.
type Kind string

const (
	KindAdopted           Kind = "adopted"
	KindFed               Kind = "fed"
	KindDied              Kind = "died"
	KindDeathAnnounced    Kind = "death_announced"
	KindRenamed           Kind = "renamed"
	KindRevived           Kind = "revived"
	KindLastFedOverridden Kind = "last_fed_overridden"
	KindCleared           Kind = "cleared"
)

// Event is one entry of the lifecycle history.
type Event struct {
	ID      string
	OwnerID string
	Kind    Kind
	At      time.Time
	Detail  string
}

// NewEvent returns an event with a fresh id.
func NewEvent(ownerID string, kind Kind, at time.Time, detail string) Event {
	return Event{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Kind:    kind,
		At:      at,
		Detail:  detail,
	}
}
