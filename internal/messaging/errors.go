package messaging

import (
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var (
	// ErrConnect indicates the broker could not be reached at startup.
	ErrConnect = errors.MessagingError("failed to connect to message broker").Build()

	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.MessagingError("message broker not connected").Build()

	// ErrNoChannel is returned when a channel id is empty.
	ErrNoChannel = errors.ValidationError("channel id is empty").Build()

	// ErrPublish indicates an outbound message could not be published.
	ErrPublish = errors.MessagingError("failed to publish outbound message").Build()
)
