package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMergeSlots(t *testing.T) {
	st := NewState()
	st.MergeSlots(map[string]string{"origin": "HAN"})
	st.MergeSlots(map[string]string{"destination": "SGN", "origin": ""})
	assert.Equal(t, map[string]string{"origin": "HAN", "destination": "SGN"}, st.Slots)

	// Later non-empty values overwrite, value-wise, not merge-union.
	st.MergeSlots(map[string]string{"origin": "DAD"})
	assert.Equal(t, map[string]string{"origin": "DAD", "destination": "SGN"}, st.Slots)
}

func TestStateJSONRoundTripKeepsUnknownKeys(t *testing.T) {
	raw := `{
		"current_intent": "flight_search",
		"slots": {"origin": "HAN"},
		"last_offer_ids": ["id-a", "id-b"],
		"last_booking_id": "b-123",
		"custom_flag": true,
		"ui_hints": {"theme": "dark"}
	}`

	var st State
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, "flight_search", st.CurrentIntent)
	assert.Equal(t, []string{"id-a", "id-b"}, st.LastOfferIDs)
	assert.Equal(t, "b-123", st.LastBookingID)
	assert.Equal(t, true, st.Extra["custom_flag"])

	out, err := json.Marshal(&st)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, true, back["custom_flag"])
	assert.Equal(t, map[string]any{"theme": "dark"}, back["ui_hints"])
	assert.Equal(t, "b-123", back["last_booking_id"])
}

func TestStateTransientChannels(t *testing.T) {
	st := NewState()
	st.Attachments = []Attachment{{"type": "flight_offers"}}
	st.SuggestedActions = []SuggestedAction{{Label: "Lưu vào lịch", Type: "calendar"}}

	atts := st.TakeAttachments()
	require.Len(t, atts, 1)
	assert.Nil(t, st.Attachments)

	acts := st.TakeSuggestedActions()
	require.Len(t, acts, 1)
	assert.Nil(t, st.SuggestedActions)

	st.Attachments = []Attachment{{"type": "booking_success"}}
	st.StripTransient()
	assert.Nil(t, st.Attachments)
	assert.Nil(t, st.SuggestedActions)
}

func TestStateClone(t *testing.T) {
	st := NewState()
	st.Slots["origin"] = "HAN"
	st.LastOfferIDs = []string{"id-a"}
	st.Extra = map[string]any{"k": "v"}

	c := st.Clone()
	c.Slots["origin"] = "SGN"
	c.LastOfferIDs[0] = "id-z"

	assert.Equal(t, "HAN", st.Slots["origin"])
	assert.Equal(t, "id-a", st.LastOfferIDs[0])
	assert.Equal(t, "v", c.Extra["k"])
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentBookFlight, ParseIntent("book_flight"))
	assert.Equal(t, IntentGeneralQuestion, ParseIntent("made_up_intent"))
	assert.Equal(t, AgentFlight, IntentFlightSearch.Agent())
	assert.Equal(t, AgentAssistant, IntentSendEmail.Agent())
	assert.Equal(t, AgentRouter, IntentGreeting.Agent())
	assert.Equal(t, []string{"origin", "destination", "depart_date"}, IntentFlightSearch.RequiredSlots())
	assert.Empty(t, IntentGreeting.RequiredSlots())
}
