package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyOwnerID    = "owner_id"
	KeyChannelID  = "channel_id"
	KeyMessageID  = "message_id"
	KeyPetName    = "pet_name"
	KeyStatus     = "status"
	KeyResult     = "result"
	KeyCommand    = "command"
	KeyCause      = "cause"
	KeySession    = "session_id"
	KeyState      = "state"
	KeyPath       = "path"
	KeySubject    = "subject"
	KeyJobID      = "job_id"
	KeyNextRun    = "next_run"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func OwnerID(id string) slog.Attr      { return slog.String(KeyOwnerID, id) }
func ChannelID(id string) slog.Attr    { return slog.String(KeyChannelID, id) }
func MessageID(id string) slog.Attr    { return slog.String(KeyMessageID, id) }
func PetName(n string) slog.Attr       { return slog.String(KeyPetName, n) }
func Status(s string) slog.Attr        { return slog.String(KeyStatus, s) }
func Result(r string) slog.Attr        { return slog.String(KeyResult, r) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func Cause(c string) slog.Attr         { return slog.String(KeyCause, c) }
func Session(id string) slog.Attr      { return slog.String(KeySession, id) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func NextRun(t time.Time) slog.Attr    { return slog.Time(KeyNextRun, t) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
