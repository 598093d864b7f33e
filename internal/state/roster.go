package state

import (
	"time"

	"git.home.luguber.info/inful/feedbot/internal/pet"
)

// Entry pairs an owner id with its pet.
type Entry struct {
	OwnerID string
	Pet     *pet.Pet
}

// Roster is an insertion-ordered mapping from owner id to pet.
type Roster struct {
	order     []string
	pets      map[string]*pet.Pet
	lastSweep *time.Time
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{pets: make(map[string]*pet.Pet)}
}

// Len returns the number of pets.
func (r *Roster) Len() int { return len(r.order) }

// Get returns the pet owned by ownerID.
func (r *Roster) Get(ownerID string) (*pet.Pet, bool) {
	p, ok := r.pets[ownerID]
	return p, ok
}

// Put stores p for ownerID. New owners are appended to the iteration order.
func (r *Roster) Put(ownerID string, p *pet.Pet) {
	if _, exists := r.pets[ownerID]; !exists {
		r.order = append(r.order, ownerID)
	}
	r.pets[ownerID] = p
}

// Entries returns the pets in insertion order. The pets are shared with the roster.
func (r *Roster) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Entry{OwnerID: id, Pet: r.pets[id]})
	}
	return out
}

// Clear removes every pet. The last sweep instant is kept.
func (r *Roster) Clear() {
	r.order = nil
	r.pets = make(map[string]*pet.Pet)
}

// LastSweep returns the instant of the most recent completed sweep.
func (r *Roster) LastSweep() (time.Time, bool) {
	if r.lastSweep == nil {
		return time.Time{}, false
	}
	return *r.lastSweep, true
}

// SetLastSweep records the instant of a completed sweep.
func (r *Roster) SetLastSweep(at time.Time) {
	r.lastSweep = &at
}

// Clone returns a deep copy.
func (r *Roster) Clone() *Roster {
	c := &Roster{
		order: append([]string(nil), r.order...),
		pets:  make(map[string]*pet.Pet, len(r.pets)),
	}
	for id, p := range r.pets {
		c.pets[id] = p.Clone()
	}
	if r.lastSweep != nil {
		ls := *r.lastSweep
		c.lastSweep = &ls
	}
	return c
}
