package services

import "errors"

// Engine error taxonomy. Every failure here is a deterministic function of
// state: retrying without changing state fails identically, so nothing in the
// engine retries. Write paths surface these untouched; the only place that
// swallows an error is the fail-open stage info read.
var (
	// Advancing past the terminal stage. Fatal to the call, not the process.
	ErrNoFurtherStage = errors.New("no further stage to advance to")

	// Stage registry / transition protocol.
	ErrUnknownStage       = errors.New("stage is not in the registry")
	ErrStageAlreadyClosed = errors.New("stage has already been closed")
	ErrStageNotCurrent    = errors.New("stage is not the current stage")

	// Eliminated team referenced as a winner. Data corruption: surfaced with
	// full context, never silently corrected.
	ErrInconsistentState = errors.New("bracket state inconsistent")

	// Scoring called before the slot has a result. Caller bug.
	ErrResultNotAvailable = errors.New("knockout result not available")

	// Resolving an already-resolved slot while corrections are disabled.
	ErrCorrectionRejected = errors.New("slot already resolved and corrections are disabled")
)
