package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
)

func TestLoadUnknownCreatesEmpty(t *testing.T) {
	store := NewInMemoryStore()

	conv, err := store.Load(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "user-1", conv.UserID)
	assert.Empty(t, conv.History)
	require.NotNil(t, conv.State)
	assert.Equal(t, 0, store.Len())
}

func TestSaveStripsTransientState(t *testing.T) {
	store := NewInMemoryStore()

	conv := NewConversation("conv-1", "user-1")
	conv.History = append(conv.History, core.NewTextContent(core.RoleUser, "hi"))
	conv.State.LastBookingID = "b-1"
	conv.State.Attachments = []core.Attachment{{"type": "flight_offers"}}
	conv.State.SuggestedActions = []core.SuggestedAction{{Label: "x"}}
	require.NoError(t, store.Save(context.Background(), conv))

	loaded, err := store.Load(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", loaded.State.LastBookingID)
	assert.Empty(t, loaded.State.Attachments)
	assert.Empty(t, loaded.State.SuggestedActions)
	assert.Len(t, loaded.History, 1)
}

func TestLoadReturnsIsolatedClone(t *testing.T) {
	store := NewInMemoryStore()

	conv := NewConversation("conv-1", "user-1")
	conv.State.MergeSlots(map[string]string{"origin": "HAN"})
	require.NoError(t, store.Save(context.Background(), conv))

	a, err := store.Load(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	a.State.Slots["origin"] = "SGN"
	a.History = append(a.History, core.NewTextContent(core.RoleUser, "mutated"))

	b, err := store.Load(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "HAN", b.State.Slots["origin"])
	assert.Empty(t, b.History)
}
