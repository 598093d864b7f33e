package state

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/logfields"
	"git.home.luguber.info/inful/feedbot/internal/pet"
)

// Store is the single writer of the roster. Every Update runs under one mutex and,
// when it changed anything, is persisted before Update returns.
type Store struct {
	path      string
	mu        sync.Mutex
	roster    *Roster
	lastSaved *time.Time
}

// Open loads the roster at path and returns a store owning it. Load diagnostics are
// logged and the store starts empty; only an unusable data directory is an error.
func Open(path string, opts LoadOptions) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create data directory").
			Fatal().WithContext("path", path).Build()
	}

	roster, report, err := Load(path, opts)
	switch {
	case errors.Is(err, ErrNoStateFile):
		slog.Info("No state file found, starting with an empty roster", logfields.Path(path))
	case err != nil:
		slog.Warn("Could not load state file, starting with an empty roster", logfields.Path(path), logfields.Error(err))
	default:
		slog.Info("Loaded roster", logfields.Path(path), logfields.Count(roster.Len()), slog.Bool("legacy", report.Legacy))
	}
	for owner, fixes := range report.Repairs {
		slog.Warn("Repaired stored pet", logfields.OwnerID(owner), slog.Any("fixes", fixes))
	}
	for owner, reason := range report.Skipped {
		slog.Warn("Skipped undecodable stored pet", logfields.OwnerID(owner), slog.String("reason", reason))
	}

	// The next save rewrites the file without whatever could not be read.
	if (err != nil && !errors.Is(err, ErrNoStateFile)) || len(report.Skipped) > 0 {
		if kept, cerr := preserve(path, opts.Now); cerr != nil {
			slog.Error("Could not keep a copy of the unreadable state file", logfields.Path(path), logfields.Error(cerr))
		} else if kept != "" {
			slog.Warn("Kept a copy of the original state file", logfields.Path(kept))
		}
	}

	return &Store{path: path, roster: roster}, nil
}

// PreservedSuffix marks copies of state files that did not load cleanly.
const PreservedSuffix = ".unreadable-"

// preserve copies the file at path next to it and returns the copy's path. A
// missing file is not copied.
func preserve(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if now.IsZero() {
		now = time.Now()
	}
	kept := path + PreservedSuffix + now.UTC().Format("20060102T150405")
	if err := os.WriteFile(kept, data, 0o600); err != nil {
		return "", err
	}
	return kept, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Tx gives a transaction access to the roster.
type Tx struct {
	roster *Roster
	dirty  bool
}

// Get returns the pet owned by ownerID.
func (tx *Tx) Get(ownerID string) (*pet.Pet, bool) { return tx.roster.Get(ownerID) }

// Put stores p and marks the transaction for persistence.
func (tx *Tx) Put(ownerID string, p *pet.Pet) {
	tx.roster.Put(ownerID, p)
	tx.dirty = true
}

// Entries returns the pets in insertion order.
func (tx *Tx) Entries() []Entry { return tx.roster.Entries() }

// Len returns the number of pets.
func (tx *Tx) Len() int { return tx.roster.Len() }

// Clear removes every pet.
func (tx *Tx) Clear() {
	tx.roster.Clear()
	tx.dirty = true
}

// LastSweep returns the most recent completed sweep.
func (tx *Tx) LastSweep() (time.Time, bool) { return tx.roster.LastSweep() }

// SetLastSweep records a completed sweep.
func (tx *Tx) SetLastSweep(at time.Time) {
	tx.roster.SetLastSweep(at)
	tx.dirty = true
}

// Update runs fn with exclusive access. If fn fails, or persisting its changes
// fails, the in-memory roster is restored to its state before fn ran.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.roster.Clone()
	tx := &Tx{roster: s.roster}
	if err := fn(tx); err != nil {
		s.roster = snapshot
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := Save(s.path, s.roster); err != nil {
		s.roster = snapshot
		return err
	}
	now := time.Now()
	s.lastSaved = &now
	return nil
}

// View runs fn against a copy of the roster; changes made by fn are discarded.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.Lock()
	snapshot := s.roster.Clone()
	s.mu.Unlock()
	return fn(&Tx{roster: snapshot})
}

// LastSaved returns when the roster was last persisted by this process.
func (s *Store) LastSaved() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSaved == nil {
		return time.Time{}, false
	}
	return *s.lastSaved, true
}
