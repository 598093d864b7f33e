package scheduler

import (
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var (
	// ErrChannelUnavailable is returned when the announcement channel cannot be
	// reached; the sweep is skipped until the next fire.
	ErrChannelUnavailable = errors.MessagingError("announcement channel unavailable").Build()

	// ErrSchedulerCreate indicates the underlying scheduler could not be created.
	ErrSchedulerCreate = errors.SchedulerError("failed to create scheduler").Build()

	// ErrJobCreate indicates a job could not be registered.
	ErrJobCreate = errors.SchedulerError("failed to create scheduled job").Build()

	// ErrNoJob is returned by NextRun before a daily job is registered.
	ErrNoJob = errors.NotFoundError("no daily job scheduled").Build()
)
