package history

// Sentinel errors for history log operations.

import (
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.HistoryError("could not open history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.HistoryError("failed to initialize history schema").Build()

	// ErrAppendFailed indicates appending an event failed.
	ErrAppendFailed = errors.HistoryError("failed to append history event").Build()

	// ErrQueryFailed indicates querying events failed.
	ErrQueryFailed = errors.HistoryError("failed to query history events").Build()
)
