// Package lifecycle applies feeding, adoption, admin and sweep transitions to the
// roster held by the state store.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/history"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/metrics"
	"git.home.luguber.info/inful/feedbot/internal/pet"
	"git.home.luguber.info/inful/feedbot/internal/state"
)

// MinDaysMissed is the smallest usable death threshold. Adopt and Revive backdate
// the last feeding by one civil day, so a threshold of one would kill the pet on
// its first feeding.
const MinDaysMissed = 2

// Rules parameterize the lifecycle.
type Rules struct {
	// MaxDaysMissed is the number of civil days without food after which a pet dies.
	MaxDaysMissed int
	// DefaultName replaces empty pet names.
	DefaultName string
	// Location is the civil timezone all day arithmetic happens in.
	Location *time.Location
}

// Engine performs lifecycle operations. Each operation is one store transaction.
type Engine struct {
	store    *state.Store
	rules    Rules
	history  history.Log
	recorder metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistory records every applied mutation in log.
func WithHistory(log history.Log) Option {
	return func(e *Engine) {
		if log != nil {
			e.history = log
		}
	}
}

// WithMetrics reports outcomes to recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// NewEngine returns an engine operating on store.
func NewEngine(store *state.Store, rules Rules, opts ...Option) *Engine {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	if rules.MaxDaysMissed < MinDaysMissed {
		rules.MaxDaysMissed = MinDaysMissed
	}
	e := &Engine{
		store:    store,
		rules:    rules,
		history:  history.NopLog{},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the rules the engine was built with.
func (e *Engine) Rules() Rules { return e.rules }

// DaysMissed returns how many civil days have started since p was last fed.
func (e *Engine) DaysMissed(p *pet.Pet, now time.Time) int {
	return civil.DaysBetween(p.LastFed, now, e.rules.Location)
}

// resolve flips p to dead when it has gone unfed too long. It reports whether a
// transition happened.
func (e *Engine) resolve(p *pet.Pet, now time.Time) (pet.Status, bool) {
	if p.Dead {
		return pet.StatusDead, false
	}
	if e.DaysMissed(p, now) >= e.rules.MaxDaysMissed {
		p.MarkDead(now)
		return pet.StatusDead, true
	}
	return pet.StatusAlive, false
}

// peek resolves status without touching p.
func (e *Engine) peek(p *pet.Pet, now time.Time) pet.Status {
	if p.Dead || e.DaysMissed(p, now) >= e.rules.MaxDaysMissed {
		return pet.StatusDead
	}
	return pet.StatusAlive
}

// Status resolves the owner's pet, persisting an alive to dead transition.
func (e *Engine) Status(ctx context.Context, ownerID string, now time.Time) (pet.Status, error) {
	var (
		status pet.Status
		events []history.Event
	)
	err := e.store.Update(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			status = pet.StatusAbsent
			return nil
		}
		var died bool
		status, died = e.resolve(p, now)
		if died {
			tx.Put(ownerID, p)
			events = append(events, e.deathEvent(ownerID, p, now))
		}
		return nil
	})
	if err != nil {
		return pet.StatusAbsent, err
	}
	e.committed(ctx, events)
	return status, nil
}

// FeedResult is the outcome of a feeding attempt.
type FeedResult string

const (
	Fed             FeedResult = "fed"
	AlreadyFedToday FeedResult = "already_fed_today"
	FeedDead        FeedResult = "dead"
	NoSuchPet       FeedResult = "no_such_pet"
)

var feedMetric = map[FeedResult]metrics.FeedingResult{
	Fed:             metrics.FeedingFed,
	AlreadyFedToday: metrics.FeedingAlreadyFed,
	FeedDead:        metrics.FeedingDead,
	NoSuchPet:       metrics.FeedingNoPet,
}

// Feed feeds the owner's pet at now. The returned pet is a snapshot taken after the
// attempt and is nil for NoSuchPet.
func (e *Engine) Feed(ctx context.Context, ownerID string, now time.Time) (FeedResult, *pet.Pet, error) {
	var (
		result   FeedResult
		snapshot *pet.Pet
		events   []history.Event
	)
	err := e.store.Update(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			result = NoSuchPet
			return nil
		}
		status, died := e.resolve(p, now)
		switch {
		case status == pet.StatusDead:
			result = FeedDead
			if died {
				tx.Put(ownerID, p)
				events = append(events, e.deathEvent(ownerID, p, now))
			}
		case e.DaysMissed(p, now) <= 0:
			result = AlreadyFedToday
		default:
			p.LastFed = now
			p.TotalFeedings++
			tx.Put(ownerID, p)
			result = Fed
			events = append(events, history.NewEvent(ownerID, history.KindFed, now, strconv.Itoa(p.TotalFeedings)))
		}
		snapshot = p.Clone()
		return nil
	})
	if err != nil {
		e.recorder.IncFeeding(metrics.FeedingStoreFailure)
		return "", nil, err
	}
	e.recorder.IncFeeding(feedMetric[result])
	e.committed(ctx, events)
	return result, snapshot, nil
}

// Adopt creates a pet for ownerID. Its last feeding is backdated one civil day so
// the owner can feed it immediately.
func (e *Engine) Adopt(ctx context.Context, ownerID, name string, now time.Time) (*pet.Pet, error) {
	var created *pet.Pet
	err := e.store.Update(func(tx *state.Tx) error {
		if _, ok := tx.Get(ownerID); ok {
			return ErrPetExists.WithContext("owner_id", ownerID)
		}
		p := pet.New(pet.NormalizeName(name, e.rules.DefaultName), now, civil.DaysAgo(now, 1, e.rules.Location))
		tx.Put(ownerID, p)
		created = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.committed(ctx, []history.Event{history.NewEvent(ownerID, history.KindAdopted, now, created.Name)})
	return created, nil
}

// Rename changes the name of the owner's pet and returns the previous name.
func (e *Engine) Rename(ctx context.Context, ownerID, name string, now time.Time) (string, *pet.Pet, error) {
	var (
		previous string
		renamed  *pet.Pet
	)
	err := e.store.Update(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			return ErrNoSuchPet.WithContext("owner_id", ownerID)
		}
		previous = p.Name
		p.Name = pet.NormalizeName(name, e.rules.DefaultName)
		tx.Put(ownerID, p)
		renamed = p.Clone()
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	e.committed(ctx, []history.Event{
		history.NewEvent(ownerID, history.KindRenamed, now, fmt.Sprintf("%s -> %s", previous, renamed.Name)),
	})
	return previous, renamed, nil
}

// Revive brings the owner's pet back to life with its last feeding backdated one
// civil day. Reviving a living pet only resets its last feeding.
func (e *Engine) Revive(ctx context.Context, ownerID string, now time.Time) (*pet.Pet, error) {
	var revived *pet.Pet
	err := e.store.Update(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			return ErrNoSuchPet.WithContext("owner_id", ownerID)
		}
		p.Revive(civil.DaysAgo(now, 1, e.rules.Location))
		tx.Put(ownerID, p)
		revived = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.committed(ctx, []history.Event{history.NewEvent(ownerID, history.KindRevived, now, "")})
	return revived, nil
}

// ForceSetLastFed sets the last feeding of a living pet to daysAgo civil days before
// now. The next status check may then kill the pet.
func (e *Engine) ForceSetLastFed(ctx context.Context, ownerID string, daysAgo int, now time.Time) (*pet.Pet, error) {
	if daysAgo < 0 {
		return nil, ErrInvalidDaysAgo.WithContext("days_ago", daysAgo)
	}
	var updated *pet.Pet
	err := e.store.Update(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			return ErrNoSuchPet.WithContext("owner_id", ownerID)
		}
		if p.Dead {
			return ErrPetIsDead.WithContext("owner_id", ownerID)
		}
		p.LastFed = civil.DaysAgo(now, daysAgo, e.rules.Location)
		tx.Put(ownerID, p)
		updated = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.committed(ctx, []history.Event{
		history.NewEvent(ownerID, history.KindLastFedOverridden, now, updated.LastFed.Format(time.RFC3339)),
	})
	return updated, nil
}

// ClearAll removes every pet and returns how many were removed.
func (e *Engine) ClearAll(ctx context.Context, now time.Time) (int, error) {
	var owners []string
	err := e.store.Update(func(tx *state.Tx) error {
		for _, entry := range tx.Entries() {
			owners = append(owners, entry.OwnerID)
		}
		tx.Clear()
		return nil
	})
	if err != nil {
		return 0, err
	}
	events := make([]history.Event, 0, len(owners))
	for _, owner := range owners {
		events = append(events, history.NewEvent(owner, history.KindCleared, now, ""))
	}
	e.committed(ctx, events)
	e.recorder.SetPets(0, 0)
	return len(owners), nil
}

// Listing is a read-only view of one stored pet.
type Listing struct {
	OwnerID    string
	Pet        *pet.Pet
	Status     pet.Status
	DaysMissed int
}

// Get returns the owner's pet with its status resolved at now. Nothing is persisted.
func (e *Engine) Get(ownerID string, now time.Time) (Listing, bool, error) {
	var (
		listing Listing
		found   bool
	)
	err := e.store.View(func(tx *state.Tx) error {
		p, ok := tx.Get(ownerID)
		if !ok {
			return nil
		}
		found = true
		listing = e.listing(ownerID, p, now)
		return nil
	})
	return listing, found, err
}

// ListAll returns every pet in insertion order with its status resolved at now.
// Nothing is persisted.
func (e *Engine) ListAll(now time.Time) ([]Listing, error) {
	var out []Listing
	err := e.store.View(func(tx *state.Tx) error {
		entries := tx.Entries()
		out = make([]Listing, 0, len(entries))
		for _, entry := range entries {
			out = append(out, e.listing(entry.OwnerID, entry.Pet, now))
		}
		return nil
	})
	return out, err
}

func (e *Engine) listing(ownerID string, p *pet.Pet, now time.Time) Listing {
	return Listing{
		OwnerID:    ownerID,
		Pet:        p.Clone(),
		Status:     e.peek(p, now),
		DaysMissed: e.DaysMissed(p, now),
	}
}

// Stats aggregates the roster.
type Stats struct {
	Total         int
	Alive         int
	Dead          int
	TotalFeedings int
}

// Stats aggregates every pet with status resolved at now. Nothing is persisted.
func (e *Engine) Stats(now time.Time) (Stats, error) {
	listings, err := e.ListAll(now)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, l := range listings {
		s.Total++
		s.TotalFeedings += l.Pet.TotalFeedings
		if l.Status == pet.StatusDead {
			s.Dead++
		} else {
			s.Alive++
		}
	}
	e.recorder.SetPets(s.Alive, s.Dead)
	return s, nil
}

// Death is a death ready to be announced.
type Death struct {
	OwnerID    string
	Name       string
	Cause      string
	DiedAt     time.Time
	DaysMissed int
}

// SweepDeaths resolves every pet at now and marks each unannounced death as
// announced with a cause chosen by pick. The sweep instant is recorded in the same
// transaction. The caller announces the returned deaths.
func (e *Engine) SweepDeaths(ctx context.Context, now time.Time, pick pet.CausePicker) ([]Death, error) {
	if pick == nil {
		pick = pet.RandomCause(nil)
	}
	var (
		deaths      []Death
		events      []history.Event
		died        int
		alive, dead int
	)
	err := e.store.Update(func(tx *state.Tx) error {
		for _, entry := range tx.Entries() {
			p := entry.Pet
			status, transitioned := e.resolve(p, now)
			if transitioned {
				died++
				events = append(events, e.deathEvent(entry.OwnerID, p, now))
			}
			if status == pet.StatusAlive {
				alive++
				continue
			}
			dead++
			if p.DeathNotified {
				continue
			}
			p.MarkNotified(pick())
			tx.Put(entry.OwnerID, p)
			deaths = append(deaths, Death{
				OwnerID:    entry.OwnerID,
				Name:       p.Name,
				Cause:      p.CauseOfDeath,
				DiedAt:     *p.DeathDate,
				DaysMissed: e.DaysMissed(p, now),
			})
			events = append(events, history.NewEvent(entry.OwnerID, history.KindDeathAnnounced, now, p.CauseOfDeath))
		}
		tx.SetLastSweep(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.committed(ctx, events)
	e.recorder.SetPets(alive, dead)
	if died > 0 {
		slog.Info("Pets died of neglect", logfields.Count(died))
	}
	return deaths, nil
}

// LastSweep returns when the last sweep completed.
func (e *Engine) LastSweep() (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := e.store.View(func(tx *state.Tx) error {
		at, ok = tx.LastSweep()
		return nil
	})
	return at, ok, err
}

func (e *Engine) deathEvent(ownerID string, p *pet.Pet, now time.Time) history.Event {
	return history.NewEvent(ownerID, history.KindDied, now,
		fmt.Sprintf("%s after %d days unfed", p.Name, e.DaysMissed(p, now)))
}

// committed runs after a transaction persisted. History failures never undo the
// mutation they describe.
func (e *Engine) committed(ctx context.Context, events []history.Event) {
	for _, ev := range events {
		if ev.Kind == history.KindDied {
			e.recorder.IncDeaths(1)
		}
		if err := e.history.Append(ctx, ev); err != nil {
			slog.Warn("Failed to record history", logfields.OwnerID(ev.OwnerID), slog.String("kind", string(ev.Kind)), logfields.Error(err))
		}
	}
}
