package engine

import "errors"

var (
	// ErrDataNotFound is returned by New when the catalog has no row for the city, month or crop.
	ErrDataNotFound = errors.New("reference data not found")
	// ErrInvalidSnapshot is returned when a snapshot cannot be turned back into an engine.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrTransientTick marks a single failed tick. The driver loop logs it and keeps going.
	ErrTransientTick = errors.New("tick failed")
	// ErrActionFailure marks a player action that could not be carried out.
	// The action still returns a message that can be shown to the player.
	ErrActionFailure = errors.New("action failed")
)
