package core

// Intent is the classified purpose of a user message, drawn from a fixed
// enumeration. The zero value IntentUnknown means no classification happened
// (e.g. the turn was rejected before routing).
type Intent string

const (
	IntentUnknown         Intent = ""
	IntentFlightSearch    Intent = "flight_search"
	IntentBookFlight      Intent = "book_flight"
	IntentCancelBooking   Intent = "cancel_booking"
	IntentViewBooking     Intent = "view_booking"
	IntentAddToCalendar   Intent = "add_to_calendar"
	IntentSendEmail       Intent = "send_email"
	IntentViewPassengers  Intent = "view_passengers"
	IntentViewPreferences Intent = "view_preferences"
	IntentViewCalendar    Intent = "view_calendar"
	IntentGeneralQuestion Intent = "general_question"
	IntentGreeting        Intent = "greeting"
)

// AgentKind names the agent owning an intent.
type AgentKind int

const (
	// AgentRouter handles the intent directly with a lightweight model call.
	AgentRouter AgentKind = iota
	// AgentFlight owns search, booking and cancellation.
	AgentFlight
	// AgentAssistant owns lookups, calendar, email and general questions.
	AgentAssistant
)

var intents = map[Intent]AgentKind{
	IntentFlightSearch:    AgentFlight,
	IntentBookFlight:      AgentFlight,
	IntentCancelBooking:   AgentFlight,
	IntentViewBooking:     AgentAssistant,
	IntentAddToCalendar:   AgentAssistant,
	IntentSendEmail:       AgentAssistant,
	IntentViewPassengers:  AgentAssistant,
	IntentViewPreferences: AgentAssistant,
	IntentViewCalendar:    AgentAssistant,
	IntentGeneralQuestion: AgentAssistant,
	IntentGreeting:        AgentRouter,
}

// requiredSlots lists the slots an intent needs before delegation. book_flight
// is special: it needs ONE of offer_id / flight_number / offer_index, which
// the router resolves itself rather than through this table.
var requiredSlots = map[Intent][]string{
	IntentFlightSearch:  {"origin", "destination", "depart_date"},
	IntentCancelBooking: {"booking_id"},
	IntentAddToCalendar: {"booking_id"},
}

// ParseIntent maps a classifier label onto the closed enumeration. Unknown
// labels degrade to general_question so a drifting classifier can never
// produce an unroutable intent.
func ParseIntent(label string) Intent {
	in := Intent(label)
	if _, ok := intents[in]; ok {
		return in
	}
	return IntentGeneralQuestion
}

// Agent returns the agent owning the intent.
func (i Intent) Agent() AgentKind {
	kind, ok := intents[i]
	if !ok {
		return AgentAssistant
	}
	return kind
}

// RequiredSlots returns the slot names that must be present before the intent
// can be delegated. The returned slice must not be mutated.
func (i Intent) RequiredSlots() []string {
	return requiredSlots[i]
}

// String implements fmt.Stringer.
func (i Intent) String() string { return string(i) }
