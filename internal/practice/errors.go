package practice

import "errors"

// Sentinel errors for the practice package.
// Check with errors.Is: errors.Is(err, practice.ErrLevelNotFound).
var (
	ErrValidation       = errors.New("practice: invalid request")
	ErrLevelNotFound    = errors.New("practice: level not found")
	ErrExerciseNotFound = errors.New("practice: exercise not found")
	// ErrConflict reports a progress upsert race that persisted after the
	// internal retry. Rare; surfaced to the caller as a 409-equivalent.
	ErrConflict = errors.New("practice: concurrent progress update")
)
