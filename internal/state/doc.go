// Package state persists the pet roster.
//
// The roster is a mapping from owner id to pet that keeps insertion order so that
// listings are reproducible. It is stored as a single JSON document that is
// replaced atomically (write temp file, fsync, rename) after every mutating
// transaction. Loading fails soft: a missing or malformed document yields an empty
// roster and a diagnostic that callers log.
//
// Key components:
//   - Roster: ordered owner → pet mapping plus the last sweep instant
//   - Load / Save: document codec with legacy layout support
//   - Store: single-writer owner of the roster with Update/View transactions
package state
