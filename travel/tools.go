package travel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/tool"
)

// maxOffersReturned caps search results handed to the model, matching the
// number of offer cards the UI renders.
const maxOffersReturned = 5

// ToolsOptions configure the generated tool catalogs.
type ToolsOptions struct {
	Logger logging.Logger
}

// FlightTools builds the catalog bound to the Flight agent: search, offer
// lookup by flight number, booking creation/cancellation, plus the passenger
// and preference lookups the booking workflow needs.
func FlightTools(svc Services, optFns ...func(o *ToolsOptions)) []tool.Tool {
	opts := ToolsOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return []tool.Tool{
		searchFlightsTool(svc, opts.Logger),
		offerByFlightNumberTool(svc, opts.Logger),
		createBookingTool(svc, opts.Logger),
		cancelBookingTool(svc, opts.Logger),
		passengersTool(svc, opts.Logger),
		preferencesTool(svc, opts.Logger),
	}
}

// AssistantTools builds the catalog bound to the Assistant agent: lookups,
// calendar sync and email dispatch.
func AssistantTools(svc Services, optFns ...func(o *ToolsOptions)) []tool.Tool {
	opts := ToolsOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return []tool.Tool{
		passengersTool(svc, opts.Logger),
		bookingsTool(svc, opts.Logger),
		preferencesTool(svc, opts.Logger),
		calendarEventsTool(svc, opts.Logger),
		addToCalendarTool(svc, opts.Logger),
		sendEmailTool(svc, opts.Logger),
	}
}

// toJSON marshals v, falling back to an error payload. Tool results are
// opaque strings by contract, so marshal failures become result text too.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

// errJSON renders a domain failure as a result payload. Domain errors flow
// back to the model as data so it can explain them to the user.
func errJSON(err error) string {
	return toJSON(map[string]any{"error": err.Error()})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func searchFlightsTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"search_flights",
		"Search for flights between two airports on a given date. Returns a JSON list of offers with price, duration, stops.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"origin":       map[string]any{"type": "string", "description": "IATA departure code, e.g. HAN"},
				"destination":  map[string]any{"type": "string", "description": "IATA arrival code, e.g. SGN"},
				"depart_date":  map[string]any{"type": "string", "description": "Departure date YYYY-MM-DD"},
				"adults":       map[string]any{"type": "integer", "description": "Number of adult passengers (1-9)"},
				"travel_class": map[string]any{"type": "string", "description": "ECONOMY or BUSINESS"},
				"currency":     map[string]any{"type": "string", "description": "Currency code, default VND"},
			},
			"required": []string{"origin", "destination", "depart_date"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			q := SearchQuery{
				Origin:      stringArg(args, "origin"),
				Destination: stringArg(args, "destination"),
				DepartDate:  stringArg(args, "depart_date"),
				Adults:      intArg(args, "adults", 1),
				TravelClass: stringArg(args, "travel_class"),
				Currency:    stringArg(args, "currency"),
			}
			if q.TravelClass == "" {
				q.TravelClass = "ECONOMY"
			}
			if q.Currency == "" {
				q.Currency = "VND"
			}
			logger.Info("tool.search_flights", "origin", q.Origin, "destination", q.Destination, "date", q.DepartDate)

			offers, err := svc.Flights.Search(ctx, q)
			if err != nil {
				return errJSON(err), nil
			}
			if len(offers) == 0 {
				return toJSON(map[string]any{"offers": []Offer{}, "message": "Không tìm thấy chuyến bay nào."}), nil
			}
			if len(offers) > maxOffersReturned {
				offers = offers[:maxOffersReturned]
			}
			for i := range offers {
				offers[i].Index = i + 1
			}
			return toJSON(map[string]any{"offers": offers, "count": len(offers)}), nil
		},
	)
}

func offerByFlightNumberTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"get_offer_by_flight_number",
		"Get a flight offer by flight number plus route. The flight number alone is not unique; always provide origin and destination from the search context.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"flight_number": map[string]any{"type": "string", "description": `Flight number like "VJ145" or "VJ 145"`},
				"origin":        map[string]any{"type": "string", "description": "Departure airport code"},
				"destination":   map[string]any{"type": "string", "description": "Arrival airport code"},
				"depart_date":   map[string]any{"type": "string", "description": "Departure date YYYY-MM-DD, optional"},
			},
			"required": []string{"flight_number"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			fn := stringArg(args, "flight_number")
			logger.Info("tool.get_offer_by_flight_number", "flight_number", fn)

			offer, err := svc.Flights.OfferByFlightNumber(ctx, fn,
				stringArg(args, "origin"), stringArg(args, "destination"), stringArg(args, "depart_date"))
			if err != nil {
				return errJSON(err), nil
			}
			if offer == nil {
				return toJSON(map[string]any{
					"found":   false,
					"message": fmt.Sprintf("Không tìm thấy chuyến bay %s trong kết quả tìm kiếm gần đây.", fn),
				}), nil
			}
			return toJSON(map[string]any{"found": true, "offer": offer}), nil
		},
	)
}

func createBookingTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"create_booking",
		"Create a flight booking for a specific offer and passenger.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"offer_id":     map[string]any{"type": "string", "description": "Flight offer id from search results"},
				"passenger_id": map[string]any{"type": "string", "description": "Passenger id"},
				"user_id":      map[string]any{"type": "string", "description": "User id"},
			},
			"required": []string{"offer_id", "passenger_id", "user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			userID := stringArg(args, "user_id")
			offerID := stringArg(args, "offer_id")
			logger.Info("tool.create_booking", "offer_id", offerID)

			conf, err := svc.Bookings.Create(ctx, userID, offerID, stringArg(args, "passenger_id"))
			if err != nil {
				return errJSON(err), nil
			}

			result := map[string]any{
				"success":           true,
				"booking_id":        conf.BookingID,
				"status":            conf.Status,
				"booking_reference": conf.BookingReference,
			}

			// Confirmation email is best-effort; its failure never fails
			// the booking.
			if svc.Email != nil {
				if _, mailErr := svc.Email.SendFlightInfo(ctx, userID, conf.BookingID, ""); mailErr != nil {
					logger.Warn("tool.create_booking.email_failed", "error", mailErr.Error())
					result["email_sent"] = false
				} else {
					result["email_sent"] = true
				}
			}
			return toJSON(result), nil
		},
	)
}

func cancelBookingTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"cancel_booking",
		"Cancel an existing booking.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"booking_id": map[string]any{"type": "string", "description": "Booking id to cancel"},
				"user_id":    map[string]any{"type": "string", "description": "User id"},
				"reason":     map[string]any{"type": "string", "description": "Optional cancellation reason"},
			},
			"required": []string{"booking_id", "user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			bookingID := stringArg(args, "booking_id")
			logger.Info("tool.cancel_booking", "booking_id", bookingID)

			b, err := svc.Bookings.Cancel(ctx, stringArg(args, "user_id"), bookingID, stringArg(args, "reason"))
			if err != nil {
				return errJSON(err), nil
			}
			return toJSON(map[string]any{"success": true, "booking_id": b.ID, "status": b.Status}), nil
		},
	)
}

func passengersTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"get_passengers",
		"Get the list of passengers registered by the user.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "string", "description": "User id"},
			},
			"required": []string{"user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			logger.Info("tool.get_passengers")
			passengers, err := svc.Passengers.List(ctx, stringArg(args, "user_id"))
			if err != nil {
				return errJSON(err), nil
			}
			return toJSON(map[string]any{"passengers": passengers, "count": len(passengers)}), nil
		},
	)
}

func bookingsTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"get_bookings",
		"Get the list of bookings for the user, optionally filtered by status.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id":       map[string]any{"type": "string", "description": "User id"},
				"status_filter": map[string]any{"type": "string", "description": "Optional status: PENDING, CONFIRMED, CANCELLED"},
			},
			"required": []string{"user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			logger.Info("tool.get_bookings")
			bookings, err := svc.Bookings.List(ctx, stringArg(args, "user_id"), stringArg(args, "status_filter"))
			if err != nil {
				return errJSON(err), nil
			}
			return toJSON(map[string]any{"bookings": bookings, "count": len(bookings)}), nil
		},
	)
}

func preferencesTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"get_user_preferences",
		"Get the user's flight preferences (cabin class, airlines, seat, default passenger).",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "string", "description": "User id"},
			},
			"required": []string{"user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			logger.Info("tool.get_user_preferences")
			prefs, err := svc.Preferences.Get(ctx, stringArg(args, "user_id"))
			if err != nil {
				return errJSON(err), nil
			}
			if prefs == nil {
				return toJSON(map[string]any{"preferences": nil, "message": "Chưa cài đặt sở thích."}), nil
			}
			return toJSON(map[string]any{"preferences": prefs}), nil
		},
	)
}

func calendarEventsTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"get_calendar_events",
		"Get the user's flight calendar events.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "string", "description": "User id"},
			},
			"required": []string{"user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			logger.Info("tool.get_calendar_events")
			events, err := svc.Calendar.Events(ctx, stringArg(args, "user_id"))
			if err != nil {
				return errJSON(err), nil
			}
			return toJSON(map[string]any{"events": events, "count": len(events)}), nil
		},
	)
}

func addToCalendarTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"add_booking_to_calendar",
		"Add a booking to the user's calendar. May return needs_authorization with an authorization URL the user must visit first.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"booking_id":  map[string]any{"type": "string", "description": "Booking id to add"},
				"user_id":     map[string]any{"type": "string", "description": "User id"},
				"calendar_id": map[string]any{"type": "string", "description": "Calendar id, default primary"},
			},
			"required": []string{"booking_id", "user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			bookingID := stringArg(args, "booking_id")
			calendarID := stringArg(args, "calendar_id")
			if calendarID == "" {
				calendarID = "primary"
			}
			logger.Info("tool.add_booking_to_calendar", "booking_id", bookingID)

			event, auth, err := svc.Calendar.AddBooking(ctx, stringArg(args, "user_id"), bookingID, calendarID)
			if err != nil {
				return toJSON(map[string]any{"success": false, "error": err.Error()}), nil
			}
			if auth != nil {
				return toJSON(map[string]any{
					"success":             false,
					"needs_authorization": true,
					"authorization_url":   auth.AuthorizationURL,
					"message":             auth.Message,
				}), nil
			}
			return toJSON(map[string]any{
				"success":         true,
				"event_id":        event.ID,
				"booking_id":      event.BookingID,
				"google_event_id": event.GoogleEventID,
				"synced_at":       event.SyncedAt,
			}), nil
		},
	)
}

func sendEmailTool(svc Services, logger logging.Logger) tool.Tool {
	return tool.NewFunctionTool(
		"send_flight_info_email",
		"Send flight information to the user's email. Provide booking_id for booking details, or flight_summary for search results; at least one of them.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id":        map[string]any{"type": "string", "description": "User id"},
				"booking_id":     map[string]any{"type": "string", "description": "Optional booking id to send"},
				"flight_summary": map[string]any{"type": "string", "description": "Optional plain-text flight info to send"},
			},
			"required": []string{"user_id"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			logger.Info("tool.send_flight_info_email")
			receipt, err := svc.Email.SendFlightInfo(ctx,
				stringArg(args, "user_id"), stringArg(args, "booking_id"), stringArg(args, "flight_summary"))
			if err != nil {
				return toJSON(map[string]any{"success": false, "error": err.Error()}), nil
			}
			return toJSON(map[string]any{
				"success":  true,
				"message":  fmt.Sprintf("Đã gửi thông tin chuyến bay tới email %s thành công!", receipt.SentTo),
				"email_id": receipt.EmailID,
			}), nil
		},
	)
}
