// Package travel defines the domain collaborators the agents' tools delegate
// to (flight inventory, bookings, passengers, preferences, calendar and
// email) together with the tool catalogs exposing them to the models and
// in-memory implementations for tests and single-process deployments.
package travel

import "context"

// Offer is one bookable flight option returned by a search.
type Offer struct {
	OfferID      string  `json:"offer_id"`
	Index        int     `json:"index,omitempty"` // 1-based position within its search result
	Airline      string  `json:"airline"`
	FlightNumber string  `json:"flight_number"`
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	Departure    string  `json:"departure"` // RFC 3339
	Arrival      string  `json:"arrival"`   // RFC 3339
	Duration     int     `json:"duration"`  // minutes
	Stops        int     `json:"stops"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
}

// SearchQuery are the parameters of a flight search.
type SearchQuery struct {
	Origin      string
	Destination string
	DepartDate  string // YYYY-MM-DD
	Adults      int
	TravelClass string // ECONOMY or BUSINESS
	Currency    string
}

// Booking is a stored reservation.
type Booking struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"` // PENDING, CONFIRMED, CANCELLED
	Provider         string  `json:"provider"`
	BookingReference string  `json:"booking_reference"`
	TotalPrice       float64 `json:"total_price"`
	Currency         string  `json:"currency"`
	CreatedAt        string  `json:"created_at"`
}

// BookingConfirmation is the result of creating a booking.
type BookingConfirmation struct {
	BookingID        string `json:"booking_id"`
	Status           string `json:"status"`
	BookingReference string `json:"booking_reference"`
}

// Passenger is a traveler profile registered by a user.
type Passenger struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	DOB            string `json:"dob,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
}

// Preferences are a user's stored flight preferences.
type Preferences struct {
	CabinClass         string   `json:"cabin_class,omitempty"`
	PreferredAirlines  []string `json:"preferred_airlines,omitempty"`
	SeatPreference     string   `json:"seat_preference,omitempty"`
	DefaultPassengerID string   `json:"default_passenger_id,omitempty"`
}

// CalendarEvent is a booking synced into the user's calendar.
type CalendarEvent struct {
	ID            string `json:"id"`
	BookingID     string `json:"booking_id"`
	GoogleEventID string `json:"google_event_id"`
	SyncedAt      string `json:"synced_at,omitempty"`
}

// AuthorizationRequest signals that the user must complete an out-of-band
// authorization before the calendar operation can proceed. The URL is
// surfaced to the user verbatim.
type AuthorizationRequest struct {
	AuthorizationURL string `json:"authorization_url"`
	Message          string `json:"message"`
}

// EmailReceipt is the result of a dispatched email.
type EmailReceipt struct {
	SentTo  string `json:"sent_to"`
	EmailID string `json:"email_id"`
}

// FlightService provides flight inventory lookups.
type FlightService interface {
	// Search returns offers matching the query, best first.
	Search(ctx context.Context, q SearchQuery) ([]Offer, error)
	// OfferByFlightNumber resolves a recently searched offer by its flight
	// number plus route. A nil offer with nil error means not found; the
	// flight number alone is not unique across routes.
	OfferByFlightNumber(ctx context.Context, flightNumber, origin, destination, departDate string) (*Offer, error)
}

// BookingService manages reservations.
type BookingService interface {
	Create(ctx context.Context, userID, offerID, passengerID string) (*BookingConfirmation, error)
	Cancel(ctx context.Context, userID, bookingID, reason string) (*Booking, error)
	List(ctx context.Context, userID, statusFilter string) ([]Booking, error)
}

// PassengerService lists traveler profiles.
type PassengerService interface {
	List(ctx context.Context, userID string) ([]Passenger, error)
}

// PreferenceService reads stored flight preferences. A nil result with nil
// error means the user has not configured any.
type PreferenceService interface {
	Get(ctx context.Context, userID string) (*Preferences, error)
}

// CalendarService syncs bookings into the user's calendar.
type CalendarService interface {
	Events(ctx context.Context, userID string) ([]CalendarEvent, error)
	// AddBooking creates a calendar event for the booking. When the user has
	// not yet authorized calendar access it returns an AuthorizationRequest
	// instead of an event.
	AddBooking(ctx context.Context, userID, bookingID, calendarID string) (*CalendarEvent, *AuthorizationRequest, error)
}

// EmailService dispatches flight information mails. Either bookingID or
// flightSummary must be provided.
type EmailService interface {
	SendFlightInfo(ctx context.Context, userID, bookingID, flightSummary string) (*EmailReceipt, error)
}

// Services bundles all domain collaborators consumed by the tool catalogs.
type Services struct {
	Flights     FlightService
	Bookings    BookingService
	Passengers  PassengerService
	Preferences PreferenceService
	Calendar    CalendarService
	Email       EmailService
}
