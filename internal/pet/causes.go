package pet

import (
	"math/rand/v2"
	"slices"
)

// UnrecordedCause marks a death announced before causes were recorded.
const UnrecordedCause = "causes lost to history"

// Causes is the fixed list a cause of death is drawn from.
var Causes = []string{
	"starvation",
	"sheer neglect",
	"a broken heart",
	"eating a sock out of desperation",
	"boredom",
	"chasing an imaginary snack",
	"loneliness",
	"waiting by the food bowl",
}

// CausePicker chooses a cause of death.
type CausePicker func() string

// RandomCause returns a picker drawing uniformly from Causes using r.
// A nil r uses the global source.
func RandomCause(r *rand.Rand) CausePicker {
	return func() string {
		if r == nil {
			return Causes[rand.IntN(len(Causes))]
		}
		return Causes[r.IntN(len(Causes))]
	}
}

// IsKnownCause reports whether cause is part of Causes.
func IsKnownCause(cause string) bool {
	return slices.Contains(Causes, cause)
}
