// Package pet defines the Pet record, its status values, and the invariants
// every stored record must satisfy.
package pet

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength caps pet names, counted in runes after normalization.
const MaxNameLength = 32

// Status is the resolved lifecycle state of an owner's pet.
type Status string

const (
	StatusAbsent Status = "absent"
	StatusAlive  Status = "alive"
	StatusDead   Status = "dead"
)

// Pet is the persisted record for one owner.
type Pet struct {
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"creation_time"`
	LastFed       time.Time  `json:"last_fed"`
	TotalFeedings int        `json:"total_feedings"`
	Dead          bool       `json:"dead"`
	DeathDate     *time.Time `json:"death_date,omitempty"`
	DeathNotified bool       `json:"death_notified,omitempty"`
	CauseOfDeath  string     `json:"cause_of_death,omitempty"`
}

// New returns a living pet adopted at now whose last feeding is lastFed.
func New(name string, now, lastFed time.Time) *Pet {
	return &Pet{
		Name:      name,
		CreatedAt: now,
		LastFed:   lastFed,
	}
}

// Clone returns a deep copy.
func (p *Pet) Clone() *Pet {
	if p == nil {
		return nil
	}
	c := *p
	if p.DeathDate != nil {
		d := *p.DeathDate
		c.DeathDate = &d
	}
	return &c
}

// MarkDead flips the pet to dead at now. It is a no-op for a pet that is already dead,
// so DeathDate is set exactly once per death.
func (p *Pet) MarkDead(now time.Time) bool {
	if p.Dead {
		return false
	}
	p.Dead = true
	d := now
	p.DeathDate = &d
	return true
}

// MarkNotified records that the death was announced with cause.
func (p *Pet) MarkNotified(cause string) {
	p.DeathNotified = true
	p.CauseOfDeath = cause
}

// Revive clears every death field and backdates LastFed to lastFed.
func (p *Pet) Revive(lastFed time.Time) {
	p.Dead = false
	p.DeathDate = nil
	p.DeathNotified = false
	p.CauseOfDeath = ""
	p.LastFed = lastFed
}

var (
	ErrDeathDateMismatch = errors.New("dead flag and death date disagree")
	ErrNotifiedAlive     = errors.New("death notified for a living pet")
	ErrNotifiedNoCause   = errors.New("death notified without a cause")
	ErrNegativeFeedings  = errors.New("total feedings is negative")
)

// Validate reports the first invariant the record violates.
func (p *Pet) Validate() error {
	if p.Dead != (p.DeathDate != nil) {
		return ErrDeathDateMismatch
	}
	if p.DeathNotified && !p.Dead {
		return ErrNotifiedAlive
	}
	if p.DeathNotified && p.CauseOfDeath == "" {
		return ErrNotifiedNoCause
	}
	if p.TotalFeedings < 0 {
		return ErrNegativeFeedings
	}
	return nil
}

// Repair rewrites a record so that Validate passes, returning a description of each
// change. The dead flag is authoritative; a missing death date is filled with fallback.
func (p *Pet) Repair(fallback time.Time) []string {
	var fixes []string
	if p.Dead && p.DeathDate == nil {
		d := fallback
		p.DeathDate = &d
		fixes = append(fixes, "filled missing death date")
	}
	if !p.Dead && p.DeathDate != nil {
		p.DeathDate = nil
		fixes = append(fixes, "dropped death date of living pet")
	}
	if p.DeathNotified && !p.Dead {
		p.DeathNotified = false
		p.CauseOfDeath = ""
		fixes = append(fixes, "cleared death notification of living pet")
	}
	if p.DeathNotified && p.CauseOfDeath == "" {
		p.CauseOfDeath = UnrecordedCause
		fixes = append(fixes, "filled missing cause of death")
	}
	if p.TotalFeedings < 0 {
		p.TotalFeedings = 0
		fixes = append(fixes, "reset negative feeding count")
	}
	return fixes
}

// NormalizeName trims and NFC-normalizes raw, caps it at MaxNameLength runes and
// substitutes fallback when nothing remains.
func NormalizeName(raw, fallback string) string {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return fallback
	}
	return name
}

func (p *Pet) String() string {
	if p.Dead {
		return fmt.Sprintf("%s (dead, %d feedings)", p.Name, p.TotalFeedings)
	}
	return fmt.Sprintf("%s (%d feedings)", p.Name, p.TotalFeedings)
}
