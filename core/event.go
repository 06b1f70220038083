package core

import "time"

// TurnEventKind discriminates the events emitted by a streamed turn.
type TurnEventKind string

const (
	// TurnEventToken carries a chunk of the response text.
	TurnEventToken TurnEventKind = "token"
	// TurnEventAttachments carries the structured side-channel payloads
	// produced during the turn (flight cards, booking confirmations).
	TurnEventAttachments TurnEventKind = "attachments"
	// TurnEventSuggestedActions carries follow-up actions for the UI.
	TurnEventSuggestedActions TurnEventKind = "suggested_actions"
	// TurnEventError carries a user-facing error message. It is followed by
	// a done event; done stays the terminal event on every path.
	TurnEventError TurnEventKind = "error"
	// TurnEventDone closes the stream. It always carries the final full
	// text, the final state and the detected intent.
	TurnEventDone TurnEventKind = "done"
)

// TurnEvent is one element of a streamed turn. Which fields are populated
// depends on Kind.
type TurnEvent struct {
	ID               string            `json:"id"`
	Kind             TurnEventKind     `json:"kind"`
	Timestamp        time.Time         `json:"timestamp"`
	Text             string            `json:"text,omitempty"`   // token chunk or error message
	Attachments      []Attachment      `json:"attachments,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`

	// Populated on done only.
	FullText string `json:"full_text,omitempty"`
	State    *State `json:"state,omitempty"`
	Intent   Intent `json:"intent,omitempty"`
}

// NewTurnEvent creates an event of the given kind with a fresh id.
func NewTurnEvent(kind TurnEventKind) TurnEvent {
	return TurnEvent{ID: NewID(), Kind: kind, Timestamp: time.Now().UTC()}
}
