package metrics

import "time"

// FeedingResult enumerates outcomes of a feeding attempt.
type FeedingResult string

const (
	FeedingFed          FeedingResult = "fed"
	FeedingAlreadyFed   FeedingResult = "already_fed"
	FeedingDead         FeedingResult = "dead"
	FeedingNoPet        FeedingResult = "no_pet"
	FeedingStoreFailure FeedingResult = "error"
)

// SweepOutcome enumerates daily sweep outcomes.
type SweepOutcome string

const (
	SweepCompleted   SweepOutcome = "completed"
	SweepSkipped     SweepOutcome = "skipped"
	SweepFailed      SweepOutcome = "failed"
	SweepPartialSend SweepOutcome = "partial_send"
)

// AdoptionOutcome enumerates how an adoption handshake ended.
type AdoptionOutcome string

const (
	AdoptionCompleted AdoptionOutcome = "completed"
	AdoptionTimedOut  AdoptionOutcome = "timed_out"
	AdoptionRejected  AdoptionOutcome = "rejected"
	AdoptionFailed    AdoptionOutcome = "failed"
)

// Recorder defines observability hooks for pet lifecycle metrics.
type Recorder interface {
	IncFeeding(result FeedingResult)
	IncDeaths(n int)
	IncAdoption(outcome AdoptionOutcome)
	ObserveSweep(d time.Duration, outcome SweepOutcome)
	SetPets(alive, dead int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFeeding(FeedingResult)                 {}
func (NoopRecorder) IncDeaths(int)                            {}
func (NoopRecorder) IncAdoption(AdoptionOutcome)              {}
func (NoopRecorder) ObserveSweep(time.Duration, SweepOutcome) {}
func (NoopRecorder) SetPets(int, int)                         {}
