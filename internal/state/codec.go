package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	ferrors "git.home.luguber.info/inful/feedbot/internal/foundation/errors"
	"git.home.luguber.info/inful/feedbot/internal/pet"
)

// DocumentVersion is written to every saved document.
const DocumentVersion = 1

var (
	// ErrNoStateFile is the diagnostic for a missing backing file.
	ErrNoStateFile = ferrors.NotFoundError("state file not found").Info().Build()
	// ErrCorruptStateFile is the diagnostic for a document that cannot be decoded.
	ErrCorruptStateFile = ferrors.FileSystemError("state file is malformed").Warning().Build()
)

// LoadOptions controls how incomplete records are interpreted.
type LoadOptions struct {
	// Location interprets timestamps that carry no zone offset.
	Location *time.Location
	// DefaultName replaces missing or empty pet names.
	DefaultName string
	// Now fills timestamps that are missing entirely.
	Now time.Time
}

// LoadReport describes repairs applied while loading.
type LoadReport struct {
	Legacy  bool
	Repairs map[string][]string
	// Skipped maps entries that could not be decoded to the reason. Entries without
	// a readable owner are keyed by position ("#3").
	Skipped map[string]string
}

type document struct {
	Version   int        `json:"version"`
	LastSweep *time.Time `json:"last_sweep,omitempty"`
	Pets      []record   `json:"pets"`
}

type record struct {
	OwnerID string `json:"owner_id"`
	pet.Pet
}

// rawRecord tolerates missing fields and naive ISO-8601 timestamps.
type rawRecord struct {
	OwnerID       string  `json:"owner_id"`
	Name          *string `json:"name"`
	CreationTime  string  `json:"creation_time"`
	LastFed       string  `json:"last_fed"`
	TotalFeedings *int    `json:"total_feedings"`
	Dead          bool    `json:"dead"`
	DeathDate     string  `json:"death_date"`
	DeathNotified bool    `json:"death_notified"`
	CauseOfDeath  string  `json:"cause_of_death"`
}

type rawDocument struct {
	Version   json.RawMessage   `json:"version"`
	LastSweep json.RawMessage   `json:"last_sweep"`
	Pets      []json.RawMessage `json:"pets"`
}

// Load reads the roster at path. It never fails hard: on a missing or malformed file
// it returns an empty roster together with a diagnostic error. Single entries that
// cannot be decoded are left out and listed in the report.
func Load(path string, opts LoadOptions) (*Roster, LoadReport, error) {
	report := LoadReport{Repairs: map[string][]string{}, Skipped: map[string]string{}}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRoster(), report, ErrNoStateFile.WithContext("path", path)
		}
		return NewRoster(), report, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read state file").
			Warning().WithContext("path", path).Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewRoster(), report, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return NewRoster(), report, corrupt(path, err)
	}

	var raws []rawRecord
	var lastSweep string
	if _, versioned := top["version"]; versioned {
		var doc rawDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return NewRoster(), report, corrupt(path, err)
		}
		for i, entry := range doc.Pets {
			var raw rawRecord
			if err := json.Unmarshal(entry, &raw); err != nil {
				report.Skipped[entryKey(entry, i)] = err.Error()
				continue
			}
			raws = append(raws, raw)
		}
		if len(doc.LastSweep) > 0 && string(doc.LastSweep) != "null" {
			if err := json.Unmarshal(doc.LastSweep, &lastSweep); err != nil {
				report.Skipped["last_sweep"] = err.Error()
			}
		}
	} else {
		report.Legacy = true
		ids := make([]string, 0, len(top))
		for id := range top {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			var raw rawRecord
			if err := json.Unmarshal(top[id], &raw); err != nil {
				report.Skipped[id] = err.Error()
				continue
			}
			raw.OwnerID = id
			raws = append(raws, raw)
		}
	}

	roster := NewRoster()
	for _, raw := range raws {
		if raw.OwnerID == "" {
			continue
		}
		p, fixes := raw.toPet(opts)
		if len(fixes) > 0 {
			report.Repairs[raw.OwnerID] = fixes
		}
		roster.Put(raw.OwnerID, p)
	}
	if at, ok := parseInstant(lastSweep, opts.Location); ok {
		roster.SetLastSweep(at)
	}
	return roster, report, nil
}

// entryKey names an undecodable versioned entry by its owner when that much is
// readable.
func entryKey(entry json.RawMessage, i int) string {
	var id struct {
		OwnerID string `json:"owner_id"`
	}
	if json.Unmarshal(entry, &id) == nil && id.OwnerID != "" {
		return id.OwnerID
	}
	return fmt.Sprintf("#%d", i)
}

func corrupt(path string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, ErrCorruptStateFile.Message()).
		Warning().WithContext("path", path).Build()
}

func (raw rawRecord) toPet(opts LoadOptions) (*pet.Pet, []string) {
	var fixes []string
	p := &pet.Pet{
		Dead:          raw.Dead,
		DeathNotified: raw.DeathNotified,
		CauseOfDeath:  raw.CauseOfDeath,
	}

	if raw.Name != nil {
		p.Name = pet.NormalizeName(*raw.Name, opts.DefaultName)
	} else {
		p.Name = opts.DefaultName
	}
	if raw.TotalFeedings != nil {
		p.TotalFeedings = *raw.TotalFeedings
	}

	created, hasCreated := parseInstant(raw.CreationTime, opts.Location)
	lastFed, hasLastFed := parseInstant(raw.LastFed, opts.Location)
	switch {
	case hasCreated && hasLastFed:
	case hasLastFed:
		created = lastFed
		fixes = append(fixes, "creation time taken from last feeding")
	case hasCreated:
		lastFed = created
		fixes = append(fixes, "last feeding taken from creation time")
	default:
		created, lastFed = opts.Now, opts.Now
		fixes = append(fixes, "timestamps missing, set to load time")
	}
	p.CreatedAt, p.LastFed = created, lastFed

	if d, ok := parseInstant(raw.DeathDate, opts.Location); ok {
		p.DeathDate = &d
	}
	fixes = append(fixes, p.Repair(opts.Now)...)
	return p, fixes
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func parseInstant(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Save writes the roster to path atomically: the document is written to a temporary
// file in the same directory, synced, and renamed over path.
func Save(path string, r *Roster) error {
	doc := document{Version: DocumentVersion, Pets: make([]record, 0, r.Len())}
	if at, ok := r.LastSweep(); ok {
		doc.LastSweep = &at
	}
	for _, e := range r.Entries() {
		doc.Pets = append(doc.Pets, record{OwnerID: e.OwnerID, Pet: *e.Pet})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal state").Build()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return saveErr(err, path, "create temporary state file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return saveErr(err, path, "write temporary state file")
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return saveErr(err, path, "chmod temporary state file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return saveErr(err, path, "sync temporary state file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return saveErr(err, path, "close temporary state file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return saveErr(err, path, "replace state file")
	}
	syncDir(dir)
	return nil
}

func saveErr(err error, path, msg string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).Retryable().WithContext("path", path).Build()
}

// syncDir makes the rename durable. Failures are ignored: some filesystems
// do not support syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
