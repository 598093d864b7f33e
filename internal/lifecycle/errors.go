package lifecycle

import (
	"git.home.luguber.info/inful/feedbot/internal/foundation/errors"
)

var (
	// ErrNoSuchPet is returned when the owner has no pet.
	ErrNoSuchPet = errors.NotFoundError("owner has no pet").Build()

	// ErrPetExists is returned when adopting for an owner that already has a pet.
	ErrPetExists = errors.AlreadyExistsError("owner already has a pet").Build()

	// ErrPetIsDead is returned when an operation requires a living pet.
	ErrPetIsDead = errors.ValidationError("pet is dead").Build()

	// ErrInvalidDaysAgo is returned when a last-fed override points into the future.
	ErrInvalidDaysAgo = errors.ValidationError("days ago must be zero or positive").Build()
)
