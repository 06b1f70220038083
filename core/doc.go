// Package core contains the shared vocabulary of the engine: role-tagged
// conversation content with a closed set of part types, the per-conversation
// state record mutated during a turn, the fixed intent enumeration and the
// events emitted by streamed turns. Higher layers (model, tool, agent,
// router, orchestrator) all build on these types.
package core

import "github.com/google/uuid"

// NewID returns a new unique identifier used for tool-call and event
// correlation.
func NewID() string { return uuid.NewString() }
