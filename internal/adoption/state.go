package adoption

import (
	"strings"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/feedbot/internal/foundation/normalization"
)

// State is a step of the adoption handshake.
type State int

const (
	AwaitingName State = iota
	AwaitingConfirmation
	Done
	TimedOut
)

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Done:
		return "done"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Answer is a classified confirmation reply.
type Answer int

const (
	Unrecognized Answer = iota
	Confirm
	Deny
)

var fold = cases.Fold()

var answers = normalization.WithCustomNormalizer(map[string]Answer{
	"yes":     Confirm,
	"y":       Confirm,
	"confirm": Confirm,
	"✅":       Confirm,
	"no":      Deny,
	"n":       Deny,
	"cancel":  Deny,
	"❌":       Deny,
}, Unrecognized, func(s string) string {
	return fold.String(strings.TrimSpace(s))
})

// ParseAnswer classifies a confirmation reply.
func ParseAnswer(raw string) Answer {
	return answers.Normalize(raw)
}
