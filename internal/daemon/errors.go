package daemon

import "git.home.luguber.info/inful/feedbot/internal/foundation/errors"

var (
	ErrConfigRequired = errors.DaemonError("configuration is required").Build()
	ErrNotRunning     = errors.DaemonError("daemon is not running").Build()
	ErrAlreadyRunning = errors.DaemonError("daemon is already running").Build()
)
