package travel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/travelmesh/core"
)

// InMemory implements every travel service against process memory. It backs
// the example chatbot and the test suites; a production deployment swaps in
// provider-backed implementations per interface.
type InMemory struct {
	mu          sync.Mutex
	airlines    []seedAirline
	offers      map[string]Offer // by offer id, populated by Search
	bookings    map[string][]Booking
	passengers  map[string][]Passenger
	preferences map[string]*Preferences
	events      map[string][]CalendarEvent
	emails      map[string]string // user id -> address
	authorized  map[string]bool   // user id -> calendar access granted
}

type seedAirline struct {
	code    string
	name    string
	base    float64
	departs []int // departure hours
}

// NewInMemory returns a store with a small airline catalog. Per-user fixtures
// are added with the Seed* methods.
func NewInMemory() *InMemory {
	return &InMemory{
		airlines: []seedAirline{
			{code: "VN", name: "Vietnam Airlines", base: 1850000, departs: []int{6, 9, 14, 19}},
			{code: "VJ", name: "VietJet Air", base: 990000, departs: []int{5, 11, 16, 21}},
			{code: "QH", name: "Bamboo Airways", base: 1250000, departs: []int{7, 13, 18}},
		},
		offers:      make(map[string]Offer),
		bookings:    make(map[string][]Booking),
		passengers:  make(map[string][]Passenger),
		preferences: make(map[string]*Preferences),
		events:      make(map[string][]CalendarEvent),
		emails:      make(map[string]string),
		authorized:  make(map[string]bool),
	}
}

// SeedPassenger registers a passenger for a user.
func (s *InMemory) SeedPassenger(userID string, p Passenger) Passenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = core.NewID()
	}
	s.passengers[userID] = append(s.passengers[userID], p)
	return p
}

// SeedPreferences sets a user's flight preferences.
func (s *InMemory) SeedPreferences(userID string, p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.preferences[userID] = &cp
}

// SeedEmail sets the address confirmation emails are sent to.
func (s *InMemory) SeedEmail(userID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[userID] = address
}

// AuthorizeCalendar grants calendar access, clearing the needs-authorization
// response from AddBooking.
func (s *InMemory) AuthorizeCalendar(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[userID] = true
}

// Search synthesizes offers for the route deterministically from the airline
// catalog, so repeated searches over the same route yield stable prices.
func (s *InMemory) Search(_ context.Context, q SearchQuery) ([]Offer, error) {
	origin := strings.ToUpper(strings.TrimSpace(q.Origin))
	destination := strings.ToUpper(strings.TrimSpace(q.Destination))
	if origin == "" || destination == "" || q.DepartDate == "" {
		return nil, fmt.Errorf("search requires origin, destination and depart_date")
	}
	day, err := time.Parse("2006-01-02", q.DepartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid depart_date %q: expected YYYY-MM-DD", q.DepartDate)
	}

	duration := routeMinutes(origin, destination)
	classFactor := 1.0
	if strings.EqualFold(q.TravelClass, "BUSINESS") {
		classFactor = 2.6
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var offers []Offer
	for _, a := range s.airlines {
		for i, hour := range a.departs {
			dep := time.Date(day.Year(), day.Month(), day.Day(), hour, 15, 0, 0, time.UTC)
			o := Offer{
				OfferID:      core.NewID(),
				Airline:      a.name,
				FlightNumber: fmt.Sprintf("%s%d", a.code, 100+routeSeed(origin, destination)%800+i*2),
				Origin:       origin,
				Destination:  destination,
				Departure:    dep.Format(time.RFC3339),
				Arrival:      dep.Add(time.Duration(duration) * time.Minute).Format(time.RFC3339),
				Duration:     duration,
				Stops:        0,
				Price:        a.base * classFactor * float64(maxInt(q.Adults, 1)),
				Currency:     q.Currency,
			}
			if o.Currency == "" {
				o.Currency = "VND"
			}
			offers = append(offers, o)
			s.offers[o.OfferID] = o
		}
	}
	return offers, nil
}

// OfferByFlightNumber looks the flight up among previously searched offers.
func (s *InMemory) OfferByFlightNumber(_ context.Context, flightNumber, origin, destination, _ string) (*Offer, error) {
	want := normalizeFlightNumber(flightNumber)
	if want == "" {
		return nil, fmt.Errorf("flight_number is required")
	}
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offers {
		if normalizeFlightNumber(o.FlightNumber) != want {
			continue
		}
		if origin != "" && o.Origin != origin {
			continue
		}
		if destination != "" && o.Destination != destination {
			continue
		}
		cp := o
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemory) Create(_ context.Context, userID, offerID, passengerID string) (*BookingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s not found or expired, please search again", offerID)
	}
	if !s.hasPassengerLocked(userID, passengerID) {
		return nil, fmt.Errorf("passenger %s not found for this user", passengerID)
	}

	b := Booking{
		ID:               core.NewID(),
		Status:           "CONFIRMED",
		Provider:         offer.Airline,
		BookingReference: strings.ToUpper(uuid.NewString()[:6]),
		TotalPrice:       offer.Price,
		Currency:         offer.Currency,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	s.bookings[userID] = append(s.bookings[userID], b)
	return &BookingConfirmation{BookingID: b.ID, Status: b.Status, BookingReference: b.BookingReference}, nil
}

func (s *InMemory) Cancel(_ context.Context, userID, bookingID, _ string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.bookings[userID]
	for i := range list {
		if list[i].ID != bookingID {
			continue
		}
		if list[i].Status == "CANCELLED" {
			return nil, fmt.Errorf("booking %s is already cancelled", bookingID)
		}
		list[i].Status = "CANCELLED"
		cp := list[i]
		return &cp, nil
	}
	return nil, fmt.Errorf("booking %s not found", bookingID)
}

func (s *InMemory) List(_ context.Context, userID, statusFilter string) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Booking
	for _, b := range s.bookings[userID] {
		if statusFilter != "" && !strings.EqualFold(b.Status, statusFilter) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ListPassengers implements PassengerService. The method name differs from
// the interface's List because BookingService already claims it on this type.
func (s *InMemory) ListPassengers(_ context.Context, userID string) ([]Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Passenger(nil), s.passengers[userID]...), nil
}

func (s *InMemory) Get(_ context.Context, userID string) (*Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.preferences[userID]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) Events(_ context.Context, userID string) ([]CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CalendarEvent(nil), s.events[userID]...), nil
}

func (s *InMemory) AddBooking(_ context.Context, userID, bookingID, _ string) (*CalendarEvent, *AuthorizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized[userID] {
		return nil, &AuthorizationRequest{
			AuthorizationURL: "https://accounts.google.com/o/oauth2/auth?state=" + userID,
			Message:          "Bạn cần cấp quyền truy cập Google Calendar trước khi thêm sự kiện.",
		}, nil
	}
	if !s.hasBookingLocked(userID, bookingID) {
		return nil, nil, fmt.Errorf("booking %s not found", bookingID)
	}
	ev := CalendarEvent{
		ID:            core.NewID(),
		BookingID:     bookingID,
		GoogleEventID: "gcal_" + uuid.NewString()[:8],
		SyncedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	s.events[userID] = append(s.events[userID], ev)
	return &ev, nil, nil
}

func (s *InMemory) SendFlightInfo(_ context.Context, userID, bookingID, flightSummary string) (*EmailReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.emails[userID]
	if !ok {
		return nil, fmt.Errorf("no email address on file for this user")
	}
	if bookingID != "" && !s.hasBookingLocked(userID, bookingID) {
		return nil, fmt.Errorf("booking %s not found", bookingID)
	}
	if bookingID == "" && flightSummary == "" {
		return nil, fmt.Errorf("nothing to send: provide booking_id or flight_summary")
	}
	return &EmailReceipt{SentTo: addr, EmailID: core.NewID()}, nil
}

func (s *InMemory) hasPassengerLocked(userID, passengerID string) bool {
	for _, p := range s.passengers[userID] {
		if p.ID == passengerID {
			return true
		}
	}
	return false
}

func (s *InMemory) hasBookingLocked(userID, bookingID string) bool {
	for _, b := range s.bookings[userID] {
		if b.ID == bookingID {
			return true
		}
	}
	return false
}

// Services bundles the store behind the service interfaces.
func (s *InMemory) Services() Services {
	return Services{
		Flights:     s,
		Bookings:    s,
		Passengers:  passengerFunc(s.ListPassengers),
		Preferences: s,
		Calendar:    s,
		Email:       s,
	}
}

type passengerFunc func(ctx context.Context, userID string) ([]Passenger, error)

func (f passengerFunc) List(ctx context.Context, userID string) ([]Passenger, error) {
	return f(ctx, userID)
}

func normalizeFlightNumber(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// routeSeed hashes the route into a stable small number used for flight
// numbering.
func routeSeed(origin, destination string) int {
	h := 0
	for _, r := range origin + destination {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}

func routeMinutes(origin, destination string) int {
	known := map[string]int{
		"HANSGN": 130, "SGNHAN": 130,
		"HANDAD": 80, "DADHAN": 80,
		"SGNDAD": 85, "DADSGN": 85,
		"HANPQC": 135, "PQCHAN": 135,
		"SGNPQC": 60, "PQCSGN": 60,
	}
	if m, ok := known[origin+destination]; ok {
		return m
	}
	return 90 + routeSeed(origin, destination)%60
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
