// Package services implements the turn-processing core of the form gateway:
// the turn orchestrator, conversation state access, question/assessment
// recording, and telemetry emission. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
package services

import "errors"

var (
	// ErrFormNotResolved indicates that the inbound message's conversation
	// descriptor does not name a servable form: the formID meta is missing
	// or no form definition exists for it. Turns failing this way are
	// dropped silently (no reply).
	ErrFormNotResolved = errors.New("form not resolved from conversation descriptor")

	// ErrNoTraversalResult indicates that the form engine returned no next
	// question for a turn, so no reply can be built.
	ErrNoTraversalResult = errors.New("engine produced no traversal result")

	// ErrChainNotResolved indicates that a chain marker named a successor
	// bot that the campaign directory could not resolve.
	ErrChainNotResolved = errors.New("successor bot not resolved")
)
