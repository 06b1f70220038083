package travel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/tool"
)

func newFixture(t *testing.T) (*InMemory, Services) {
	t.Helper()
	store := NewInMemory()
	store.SeedPassenger("user-1", Passenger{ID: "pax-1", FirstName: "Ngoc", LastName: "Tran", Gender: "F"})
	store.SeedEmail("user-1", "ngoc@example.com")
	store.SeedPreferences("user-1", Preferences{
		CabinClass:         "ECONOMY",
		PreferredAirlines:  []string{"VN"},
		DefaultPassengerID: "pax-1",
	})
	return store, store.Services()
}

func findTool(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()
	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}
	t.Fatalf("tool %s not in catalog", name)
	return nil
}

func callJSON(t *testing.T, tl tool.Tool, args map[string]any) map[string]any {
	t.Helper()
	raw, err := tl.Call(context.Background(), args)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestSearchFlightsToolCapsAndIndexes(t *testing.T) {
	_, svc := newFixture(t)
	search := findTool(t, FlightTools(svc), "search_flights")

	out := callJSON(t, search, map[string]any{
		"origin":      "HAN",
		"destination": "SGN",
		"depart_date": "2026-09-10",
	})

	require.NotContains(t, out, "error")
	offers := out["offers"].([]any)
	assert.Len(t, offers, 5)
	assert.EqualValues(t, 5, out["count"])

	for i, raw := range offers {
		o := raw.(map[string]any)
		assert.EqualValues(t, i+1, o["index"])
		assert.Equal(t, "HAN", o["origin"])
		assert.Equal(t, "SGN", o["destination"])
		assert.NotEmpty(t, o["offer_id"])
	}
}

func TestSearchFlightsToolValidation(t *testing.T) {
	_, svc := newFixture(t)
	search := findTool(t, FlightTools(svc), "search_flights")

	_, err := search.Call(context.Background(), map[string]any{"origin": "HAN"})
	var terr *tool.ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.CodeValidation, terr.Code)

	out := callJSON(t, search, map[string]any{
		"origin":      "HAN",
		"destination": "SGN",
		"depart_date": "10/09/2026",
	})
	assert.Contains(t, out["error"], "depart_date")
}

func TestOfferByFlightNumberTool(t *testing.T) {
	store, svc := newFixture(t)
	offers, err := store.Search(context.Background(), SearchQuery{Origin: "HAN", Destination: "SGN", DepartDate: "2026-09-10"})
	require.NoError(t, err)
	require.NotEmpty(t, offers)

	lookup := findTool(t, FlightTools(svc), "get_offer_by_flight_number")

	out := callJSON(t, lookup, map[string]any{
		"flight_number": offers[0].FlightNumber,
		"origin":        "HAN",
		"destination":   "SGN",
	})
	require.Equal(t, true, out["found"])
	offer := out["offer"].(map[string]any)
	assert.Equal(t, offers[0].OfferID, offer["offer_id"])

	out = callJSON(t, lookup, map[string]any{"flight_number": "XX999"})
	assert.Equal(t, false, out["found"])
	assert.Contains(t, out["message"], "XX999")
}

func TestCreateBookingToolSendsConfirmationEmail(t *testing.T) {
	store, svc := newFixture(t)
	offers, err := store.Search(context.Background(), SearchQuery{Origin: "HAN", Destination: "DAD", DepartDate: "2026-09-12"})
	require.NoError(t, err)

	create := findTool(t, FlightTools(svc), "create_booking")
	out := callJSON(t, create, map[string]any{
		"offer_id":     offers[0].OfferID,
		"passenger_id": "pax-1",
		"user_id":      "user-1",
	})

	require.Equal(t, true, out["success"])
	assert.Equal(t, "CONFIRMED", out["status"])
	assert.NotEmpty(t, out["booking_id"])
	assert.NotEmpty(t, out["booking_reference"])
	assert.Equal(t, true, out["email_sent"])
}

func TestCreateBookingToolEmailFailureIsNonFatal(t *testing.T) {
	store := NewInMemory()
	store.SeedPassenger("user-2", Passenger{ID: "pax-2", FirstName: "An", LastName: "Le"})
	// No email seeded: SendFlightInfo fails, the booking must still succeed.
	svc := store.Services()

	offers, err := store.Search(context.Background(), SearchQuery{Origin: "SGN", Destination: "PQC", DepartDate: "2026-10-01"})
	require.NoError(t, err)

	create := findTool(t, FlightTools(svc), "create_booking")
	out := callJSON(t, create, map[string]any{
		"offer_id":     offers[0].OfferID,
		"passenger_id": "pax-2",
		"user_id":      "user-2",
	})

	require.Equal(t, true, out["success"])
	assert.Equal(t, false, out["email_sent"])
}

func TestCreateBookingToolDomainErrors(t *testing.T) {
	_, svc := newFixture(t)
	create := findTool(t, FlightTools(svc), "create_booking")

	out := callJSON(t, create, map[string]any{
		"offer_id":     "gone",
		"passenger_id": "pax-1",
		"user_id":      "user-1",
	})
	assert.Contains(t, out["error"], "not found")
}

func TestCancelBookingTool(t *testing.T) {
	store, svc := newFixture(t)
	offers, err := store.Search(context.Background(), SearchQuery{Origin: "HAN", Destination: "SGN", DepartDate: "2026-09-10"})
	require.NoError(t, err)
	conf, err := store.Create(context.Background(), "user-1", offers[0].OfferID, "pax-1")
	require.NoError(t, err)

	cancel := findTool(t, FlightTools(svc), "cancel_booking")
	out := callJSON(t, cancel, map[string]any{"booking_id": conf.BookingID, "user_id": "user-1"})
	require.Equal(t, true, out["success"])
	assert.Equal(t, "CANCELLED", out["status"])

	out = callJSON(t, cancel, map[string]any{"booking_id": conf.BookingID, "user_id": "user-1"})
	assert.Contains(t, out["error"], "already cancelled")
}

func TestAssistantCalendarAuthorizationFlow(t *testing.T) {
	store, svc := newFixture(t)
	offers, err := store.Search(context.Background(), SearchQuery{Origin: "HAN", Destination: "SGN", DepartDate: "2026-09-10"})
	require.NoError(t, err)
	conf, err := store.Create(context.Background(), "user-1", offers[0].OfferID, "pax-1")
	require.NoError(t, err)

	add := findTool(t, AssistantTools(svc), "add_booking_to_calendar")

	out := callJSON(t, add, map[string]any{"booking_id": conf.BookingID, "user_id": "user-1"})
	require.Equal(t, false, out["success"])
	assert.Equal(t, true, out["needs_authorization"])
	assert.Contains(t, out["authorization_url"], "https://")

	store.AuthorizeCalendar("user-1")
	out = callJSON(t, add, map[string]any{"booking_id": conf.BookingID, "user_id": "user-1"})
	require.Equal(t, true, out["success"])
	assert.Equal(t, conf.BookingID, out["booking_id"])
	assert.NotEmpty(t, out["google_event_id"])

	events := callJSON(t, findTool(t, AssistantTools(svc), "get_calendar_events"), map[string]any{"user_id": "user-1"})
	assert.EqualValues(t, 1, events["count"])
}

func TestSendFlightInfoEmailTool(t *testing.T) {
	_, svc := newFixture(t)
	send := findTool(t, AssistantTools(svc), "send_flight_info_email")

	out := callJSON(t, send, map[string]any{
		"user_id":        "user-1",
		"flight_summary": "HAN -> SGN 2026-09-10 VN214",
	})
	require.Equal(t, true, out["success"])
	assert.Contains(t, out["message"], "ngoc@example.com")

	out = callJSON(t, send, map[string]any{"user_id": "user-1"})
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "nothing to send")
}

func TestPreferencesToolUnsetUser(t *testing.T) {
	_, svc := newFixture(t)
	prefs := findTool(t, AssistantTools(svc), "get_user_preferences")

	out := callJSON(t, prefs, map[string]any{"user_id": "user-1"})
	p := out["preferences"].(map[string]any)
	assert.Equal(t, "pax-1", p["default_passenger_id"])

	out = callJSON(t, prefs, map[string]any{"user_id": "stranger"})
	assert.Nil(t, out["preferences"])
	assert.NotEmpty(t, out["message"])
}
