package core

import "encoding/json"

// Attachment is a UI-facing side-channel payload produced by an agent during
// the current turn (flight offer cards, booking confirmations). The shape is
// producer-defined; only the "type" key is conventional.
type Attachment map[string]any

// SuggestedAction is a follow-up action offered to the user alongside a
// response, e.g. saving a fresh booking to the calendar.
type SuggestedAction struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
	Type    string `json:"type"`
	Icon    string `json:"icon,omitempty"`
}

// State is the per-conversation record mutated while a turn is routed. It is
// owned exclusively by the single in-flight turn; callers must not process
// concurrent turns against the same State.
//
// Slots accumulate across turns (a later non-empty value overwrites an
// earlier one for the same key, values are never cleared automatically).
// LastOfferIDs is replaced wholesale by each search. Attachments and
// SuggestedActions are turn-scoped and must be taken off the state before it
// is persisted; StripTransient / the Take helpers guarantee that.
//
// Unknown JSON keys survive a round trip through Extra so that forward
// compatible data written by other components passes through untouched.
type State struct {
	CurrentIntent    string
	Slots            map[string]string
	PendingSlots     []string
	LastOfferIDs     []string
	LastBookingID    string
	Attachments      []Attachment
	SuggestedActions []SuggestedAction
	Extra            map[string]any
}

// NewState returns an empty conversation state.
func NewState() *State {
	return &State{Slots: map[string]string{}}
}

// MergeSlots folds extracted slot values into the accumulated slots. Empty
// values never overwrite existing ones.
func (s *State) MergeSlots(slots map[string]string) {
	if s.Slots == nil {
		s.Slots = map[string]string{}
	}
	for k, v := range slots {
		if v != "" {
			s.Slots[k] = v
		}
	}
}

// TakeAttachments returns the turn-scoped attachments and clears them.
func (s *State) TakeAttachments() []Attachment {
	a := s.Attachments
	s.Attachments = nil
	return a
}

// TakeSuggestedActions returns the turn-scoped suggested actions and clears them.
func (s *State) TakeSuggestedActions() []SuggestedAction {
	a := s.SuggestedActions
	s.SuggestedActions = nil
	return a
}

// StripTransient drops the turn-scoped side channels. Stores call this before
// persisting a state snapshot.
func (s *State) StripTransient() {
	s.Attachments = nil
	s.SuggestedActions = nil
}

// Clone returns a deep copy, so stores can hand out snapshots without
// exposing internal maps.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	c := &State{
		CurrentIntent: s.CurrentIntent,
		LastBookingID: s.LastBookingID,
		Slots:         map[string]string{},
	}
	for k, v := range s.Slots {
		c.Slots[k] = v
	}
	c.PendingSlots = append([]string(nil), s.PendingSlots...)
	c.LastOfferIDs = append([]string(nil), s.LastOfferIDs...)
	for _, a := range s.Attachments {
		ac := Attachment{}
		for k, v := range a {
			ac[k] = v
		}
		c.Attachments = append(c.Attachments, ac)
	}
	c.SuggestedActions = append([]SuggestedAction(nil), s.SuggestedActions...)
	if len(s.Extra) > 0 {
		c.Extra = map[string]any{}
		for k, v := range s.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Wire keys of the well-known state fields. The underscore prefix marks the
// turn-scoped side channels, matching what UI clients consume.
const (
	stateKeyIntent           = "current_intent"
	stateKeySlots            = "slots"
	stateKeyPendingSlots     = "pending_slots"
	stateKeyLastOfferIDs     = "last_offer_ids"
	stateKeyLastBookingID    = "last_booking_id"
	stateKeyAttachments      = "_attachments"
	stateKeySuggestedActions = "_suggested_actions"
)

// MarshalJSON renders the well-known fields under their wire keys and splices
// the Extra bag back in alongside them.
func (s *State) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for k, v := range s.Extra {
		m[k] = v
	}
	if s.CurrentIntent != "" {
		m[stateKeyIntent] = s.CurrentIntent
	}
	if len(s.Slots) > 0 {
		m[stateKeySlots] = s.Slots
	}
	if len(s.PendingSlots) > 0 {
		m[stateKeyPendingSlots] = s.PendingSlots
	}
	if len(s.LastOfferIDs) > 0 {
		m[stateKeyLastOfferIDs] = s.LastOfferIDs
	}
	if s.LastBookingID != "" {
		m[stateKeyLastBookingID] = s.LastBookingID
	}
	if len(s.Attachments) > 0 {
		m[stateKeyAttachments] = s.Attachments
	}
	if len(s.SuggestedActions) > 0 {
		m[stateKeySuggestedActions] = s.SuggestedActions
	}
	return json.Marshal(m)
}

// UnmarshalJSON picks the well-known keys out of the object and keeps
// everything else in Extra.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = State{Slots: map[string]string{}}
	for k, v := range raw {
		switch k {
		case stateKeyIntent:
			if err := json.Unmarshal(v, &s.CurrentIntent); err != nil {
				return err
			}
		case stateKeySlots:
			if err := json.Unmarshal(v, &s.Slots); err != nil {
				return err
			}
		case stateKeyPendingSlots:
			if err := json.Unmarshal(v, &s.PendingSlots); err != nil {
				return err
			}
		case stateKeyLastOfferIDs:
			if err := json.Unmarshal(v, &s.LastOfferIDs); err != nil {
				return err
			}
		case stateKeyLastBookingID:
			if err := json.Unmarshal(v, &s.LastBookingID); err != nil {
				return err
			}
		case stateKeyAttachments:
			if err := json.Unmarshal(v, &s.Attachments); err != nil {
				return err
			}
		case stateKeySuggestedActions:
			if err := json.Unmarshal(v, &s.SuggestedActions); err != nil {
				return err
			}
		default:
			if s.Extra == nil {
				s.Extra = map[string]any{}
			}
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			s.Extra[k] = val
		}
	}
	return nil
}
