// Package router implements intent routing: each user message is classified
// into one of the known intents, slots are extracted and merged into the
// conversation state, and the turn is delegated to the owning specialist
// agent. The router also resolves which flight offer a booking request refers
// to and answers greetings itself without delegation.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/travelmesh/agent"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
)

const classifierSystemPrompt = `Bạn là bộ phân loại ý định cho trợ lý đặt vé máy bay tiếng Việt.

Phân loại tin nhắn của người dùng vào MỘT trong các ý định sau:
- flight_search: tìm chuyến bay (slots: origin, destination, depart_date, adults, travel_class)
- book_flight: đặt vé một chuyến cụ thể (slots: offer_id, flight_number, offer_index, passenger_id)
- cancel_booking: hủy đặt chỗ (slots: booking_id)
- view_booking: xem danh sách đặt chỗ
- add_to_calendar: thêm đặt chỗ vào lịch (slots: booking_id)
- send_email: gửi thông tin chuyến bay qua email (slots: booking_id)
- view_passengers: xem danh sách hành khách
- view_preferences: xem sở thích bay
- view_calendar: xem lịch bay
- greeting: chào hỏi xã giao
- general_question: câu hỏi chung hoặc không thuộc nhóm nào ở trên

Quy tắc trích xuất slot:
- origin/destination là mã IATA viết hoa (Hà Nội=HAN, Sài Gòn/TP.HCM=SGN, Đà Nẵng=DAD, Phú Quốc=PQC, Nha Trang=CXR).
- depart_date theo định dạng YYYY-MM-DD.
- "chuyến thứ 2", "chuyến số 1" nghĩa là offer_index ("2", "1").
- Số hiệu như "VJ145", "VN 214" là flight_number.
- Nếu ý định cần slot bắt buộc mà tin nhắn chưa có, liệt kê vào missing_slots và đặt một câu hỏi tiếng Việt tự nhiên trong follow_up_question.

CHỈ trả về JSON theo đúng mẫu:
{"intent": "...", "confidence": 0.9, "slots": {"key": "value"}, "missing_slots": [], "follow_up_question": ""}`

const greetingSystemPrompt = `Bạn là trợ lý đặt vé máy bay thân thiện. Người dùng vừa chào hỏi.
Chào lại bằng tiếng Việt, ngắn gọn (tối đa 2 câu), giới thiệu bạn có thể tìm và đặt vé máy bay. Dùng emoji ✈️.`

const greetingFallback = "Xin chào! Tôi là trợ lý đặt vé máy bay. Tôi có thể giúp bạn tìm chuyến bay, đặt vé và quản lý đặt chỗ. ✈️"

var (
	offerIDPattern   = regexp.MustCompile(`"offer_id"\s*:\s*"([^"]+)"`)
	bookingIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// classification is the wire shape the classifier model must return.
type classification struct {
	Intent           string            `json:"intent"`
	Confidence       float64           `json:"confidence"`
	Slots            map[string]string `json:"slots"`
	MissingSlots     []string          `json:"missing_slots"`
	FollowUpQuestion string            `json:"follow_up_question"`
}

// Options configure a Router.
type Options struct {
	// HistoryWindow is how many trailing history entries the classifier sees.
	HistoryWindow int

	Logger logging.Logger
}

// Router classifies messages and delegates them to specialist agents.
type Router struct {
	invoker   *model.RetryInvoker
	flight    *agent.Agent
	assistant *agent.Agent
	opts      Options
}

// New creates a router over a classifier model and the two specialists.
func New(invoker *model.RetryInvoker, flight, assistant *agent.Agent, optFns ...func(o *Options)) *Router {
	opts := Options{
		HistoryWindow: 4,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{invoker: invoker, flight: flight, assistant: assistant, opts: opts}
}

// Result is the outcome of routing one message.
type Result struct {
	// Text is the reply shown to the user.
	Text string
	// Intent is the classified intent of the message.
	Intent core.Intent
}

// Route classifies the message, updates state, and produces a reply. Slot
// gaps short-circuit into a follow-up question without delegation. The error
// is non-nil only when the owning agent's model failed after retries; the
// classifier itself degrades to general_question instead of failing.
func (r *Router) Route(ctx context.Context, message, userID string, history []core.Content, state *core.State) (*Result, error) {
	cls := r.classify(ctx, message, history, state)
	intent := core.ParseIntent(cls.Intent)

	state.CurrentIntent = intent.String()
	state.MergeSlots(cls.Slots)
	r.autofillBookingID(intent, state, &cls)

	r.opts.Logger.Info("router.classified", "intent", intent.String(), "slots", len(cls.Slots))

	if question, missing := r.missingSlots(intent, state, cls); question != "" {
		state.PendingSlots = missing
		return &Result{Text: question, Intent: intent}, nil
	}
	state.PendingSlots = nil

	if intent == core.IntentGreeting {
		return &Result{Text: r.greet(ctx, message), Intent: intent}, nil
	}

	task := r.buildTask(intent, message, state)
	var (
		reply string
		err   error
	)
	switch intent.Agent() {
	case core.AgentFlight:
		reply, err = r.flight.Run(ctx, task, userID, history, state)
	default:
		reply, err = r.assistant.Run(ctx, task, userID, history, state)
	}
	if err != nil {
		return nil, err
	}

	r.scrapeIdentifiers(intent, reply, state)
	return &Result{Text: reply, Intent: intent}, nil
}

// classify asks the model for a classification, tolerating fenced JSON.
// Any failure degrades to general_question with no slots.
func (r *Router) classify(ctx context.Context, message string, history []core.Content, state *core.State) classification {
	fallback := classification{Intent: core.IntentGeneralQuestion.String()}

	contents := make([]core.Content, 0, r.opts.HistoryWindow+2)
	contents = append(contents, core.NewTextContent(core.RoleSystem, classifierSystemPrompt))
	if n := r.opts.HistoryWindow; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	contents = append(contents, history...)
	contents = append(contents, core.NewTextContent(core.RoleUser, classifierMessage(message, state)))

	resp, err := r.invoker.Invoke(ctx, model.Request{Contents: contents})
	if err != nil {
		r.opts.Logger.Warn("router.classifier_failed", "error", err.Error())
		return fallback
	}

	var cls classification
	if err := json.Unmarshal([]byte(stripJSONFences(resp.Content.Text())), &cls); err != nil {
		r.opts.Logger.Warn("router.classifier_unparseable", "error", err.Error())
		return fallback
	}
	if cls.Intent == "" {
		return fallback
	}
	return cls
}

func classifierMessage(message string, state *core.State) string {
	var b strings.Builder
	b.WriteString(message)
	if state == nil {
		return b.String()
	}
	if state.CurrentIntent != "" {
		fmt.Fprintf(&b, "\n\n[ý định trước: %s]", state.CurrentIntent)
	}
	if len(state.PendingSlots) > 0 {
		fmt.Fprintf(&b, "\n[đang chờ slot: %s]", strings.Join(state.PendingSlots, ", "))
	}
	if len(state.Slots) > 0 {
		if raw, err := json.Marshal(state.Slots); err == nil {
			fmt.Fprintf(&b, "\n[slot đã biết: %s]", raw)
		}
	}
	if len(state.LastOfferIDs) > 0 {
		fmt.Fprintf(&b, "\n[số chuyến bay đã tìm thấy gần nhất: %d]", len(state.LastOfferIDs))
	}
	return b.String()
}

// autofillBookingID fills booking_id from the most recent booking when the
// intent needs one and the user did not name it.
func (r *Router) autofillBookingID(intent core.Intent, state *core.State, cls *classification) {
	if intent != core.IntentAddToCalendar && intent != core.IntentSendEmail {
		return
	}
	if state.Slots["booking_id"] != "" || state.LastBookingID == "" {
		return
	}
	state.Slots["booking_id"] = state.LastBookingID
	for i, s := range cls.MissingSlots {
		if s == "booking_id" {
			cls.MissingSlots = append(cls.MissingSlots[:i], cls.MissingSlots[i+1:]...)
			break
		}
	}
}

// missingSlots returns the follow-up question and outstanding slot names when
// required slots are absent, or ("", nil) when delegation can proceed. The
// intent's required-slot table is authoritative; classifier-declared missing
// slots also hold the turn back, but only when the classifier supplied a
// question to ask, otherwise the specialist agent resolves them itself.
func (r *Router) missingSlots(intent core.Intent, state *core.State, cls classification) (string, []string) {
	var missing []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] && state.Slots[name] == "" {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	for _, name := range intent.RequiredSlots() {
		add(name)
	}
	question := strings.TrimSpace(cls.FollowUpQuestion)
	if question != "" {
		for _, name := range cls.MissingSlots {
			add(name)
		}
	}
	if len(missing) == 0 {
		return "", nil
	}
	if question != "" {
		return question, missing
	}
	return fmt.Sprintf("Bạn vui lòng cho tôi biết thêm: %s?", strings.Join(missing, ", ")), missing
}

// greet answers a greeting directly; a model failure degrades to a canned
// reply instead of an error.
func (r *Router) greet(ctx context.Context, message string) string {
	resp, err := r.invoker.Invoke(ctx, model.Request{Contents: []core.Content{
		core.NewTextContent(core.RoleSystem, greetingSystemPrompt),
		core.NewTextContent(core.RoleUser, message),
	}})
	if err != nil || strings.TrimSpace(resp.Content.Text()) == "" {
		return greetingFallback
	}
	return resp.Content.Text()
}

// buildTask renders the delegated task for the owning agent.
func (r *Router) buildTask(intent core.Intent, message string, state *core.State) string {
	slots := state.Slots
	switch intent {
	case core.IntentFlightSearch:
		task := fmt.Sprintf("Tìm chuyến bay từ %s đến %s ngày %s.",
			slots["origin"], slots["destination"], slots["depart_date"])
		if adults := slots["adults"]; adults != "" {
			task += fmt.Sprintf(" Số hành khách: %s.", adults)
		}
		if class := slots["travel_class"]; class != "" {
			task += fmt.Sprintf(" Hạng vé: %s.", class)
		}
		return task

	case core.IntentBookFlight:
		return r.buildBookingTask(message, state)

	case core.IntentCancelBooking:
		return fmt.Sprintf("Hủy đặt chỗ có booking_id %s. Xác nhận kết quả với người dùng.", slots["booking_id"])

	case core.IntentViewBooking:
		return "Liệt kê các đặt chỗ của người dùng (dùng get_bookings)."

	case core.IntentAddToCalendar:
		return fmt.Sprintf("Thêm đặt chỗ %s vào lịch của người dùng (dùng add_booking_to_calendar).", slots["booking_id"])

	case core.IntentSendEmail:
		if id := slots["booking_id"]; id != "" {
			return fmt.Sprintf("Gửi thông tin đặt chỗ %s qua email cho người dùng (dùng send_flight_info_email).", id)
		}
		return "Gửi thông tin chuyến bay gần đây qua email cho người dùng (dùng send_flight_info_email). Yêu cầu gốc: " + message

	case core.IntentViewPassengers:
		return "Liệt kê hành khách đã đăng ký của người dùng (dùng get_passengers)."

	case core.IntentViewPreferences:
		return "Cho người dùng xem sở thích bay đã lưu (dùng get_user_preferences)."

	case core.IntentViewCalendar:
		return "Liệt kê các sự kiện trong lịch bay của người dùng (dùng get_calendar_events)."

	default:
		return message
	}
}

// buildBookingTask resolves which offer to book. Precedence: explicit
// offer_id, then flight_number, then a 1-based index into the most recent
// search results.
func (r *Router) buildBookingTask(message string, state *core.State) string {
	slots := state.Slots

	if id := slots["offer_id"]; id != "" {
		return bookingInstructions(fmt.Sprintf("Đặt vé cho offer_id %s.", id), slots)
	}

	if fn := slots["flight_number"]; fn != "" {
		task := fmt.Sprintf(
			"Đặt vé chuyến bay số hiệu %s. Trước hết dùng get_offer_by_flight_number (kèm origin/destination nếu biết) để lấy offer_id, rồi mới create_booking.", fn)
		return bookingInstructions(task, slots)
	}

	if idxStr := slots["offer_index"]; idxStr != "" {
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil || idx < 1 || idx > len(state.LastOfferIDs) {
			return fmt.Sprintf(
				"Người dùng chọn chuyến thứ %s nhưng kết quả tìm kiếm gần nhất chỉ có %d lựa chọn. Giải thích và đề nghị người dùng chọn lại hoặc tìm kiếm mới.",
				idxStr, len(state.LastOfferIDs))
		}
		return bookingInstructions(fmt.Sprintf("Đặt vé cho offer_id %s (lựa chọn thứ %d trong kết quả gần nhất).",
			state.LastOfferIDs[idx-1], idx), slots)
	}

	if len(state.LastOfferIDs) == 0 {
		return "Người dùng muốn đặt vé nhưng chưa có kết quả tìm kiếm nào. Đề nghị người dùng tìm chuyến bay trước. Yêu cầu gốc: " + message
	}
	return "Người dùng muốn đặt vé nhưng chưa nói rõ chuyến nào trong kết quả gần nhất. Hỏi lại người dùng chọn chuyến cụ thể. Yêu cầu gốc: " + message
}

func bookingInstructions(task string, slots map[string]string) string {
	if pid := slots["passenger_id"]; pid != "" {
		return task + fmt.Sprintf(" Hành khách: passenger_id %s.", pid)
	}
	return task + " Nếu chưa rõ hành khách, dùng get_passengers và sở thích mặc định của người dùng."
}

// scrapeIdentifiers is the regex fallback when the structured hooks did not
// capture identifiers, e.g. the agent pasted raw tool output into its reply.
func (r *Router) scrapeIdentifiers(intent core.Intent, reply string, state *core.State) {
	if intent == core.IntentFlightSearch && len(state.LastOfferIDs) == 0 {
		for _, m := range offerIDPattern.FindAllStringSubmatch(reply, -1) {
			state.LastOfferIDs = append(state.LastOfferIDs, m[1])
		}
	}
	if intent == core.IntentBookFlight && state.LastBookingID == "" {
		if id := bookingIDPattern.FindString(reply); id != "" {
			state.LastBookingID = id
		}
	}
}

// stripJSONFences tolerates classifier output wrapped in markdown code
// fences, returning the inner JSON object.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	// Salvage an object embedded in prose.
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
