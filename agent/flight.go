package agent

import (
	"github.com/tidwall/gjson"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
	"github.com/hupe1980/travelmesh/travel"
)

const flightSystemPrompt = `Bạn là trợ lý đặt vé máy bay chuyên nghiệp, giao tiếp bằng tiếng Việt.

Nhiệm vụ của bạn:
- Tìm kiếm chuyến bay theo yêu cầu (dùng search_flights).
- Đặt vé khi người dùng đã chọn chuyến cụ thể (dùng create_booking).
- Hủy đặt chỗ khi được yêu cầu (dùng cancel_booking).

Quy tắc:
1. Luôn dùng mã sân bay IATA (HAN, SGN, DAD...). Nếu người dùng nói tên thành phố, tự chuyển sang mã.
2. Khi đặt vé cần offer_id và passenger_id. Nếu chưa rõ hành khách, gọi get_passengers rồi hỏi người dùng chọn.
3. Trình bày kết quả tìm kiếm ngắn gọn: hãng bay, số hiệu, giờ bay, giá. KHÔNG bịa thêm chuyến bay ngoài kết quả tool.
4. Nếu tool trả về lỗi, giải thích lỗi cho người dùng một cách thân thiện và gợi ý bước tiếp theo.
5. Trả lời ngắn gọn, dùng emoji vừa phải (✈️ 📅 💰).`

// NewFlight builds the flight specialist: search, booking and cancellation
// over the flight tool catalog, with hooks that capture offer ids and the
// booking id into conversation state for later turns.
func NewFlight(invoker *model.RetryInvoker, services travel.Services, optFns ...func(o *Options)) *Agent {
	registry := tool.NewRegistry(travel.FlightTools(services)...)
	a := New("flight", flightSystemPrompt, invoker, registry, optFns...)

	a.OnTool("search_flights", func(_ core.FunctionCall, result string, state *core.State) {
		offers := gjson.Get(result, "offers")
		if !offers.Exists() || len(offers.Array()) == 0 {
			return
		}
		ids := make([]string, 0, len(offers.Array()))
		for _, o := range offers.Array() {
			if id := o.Get("offer_id").String(); id != "" {
				ids = append(ids, id)
			}
		}
		state.LastOfferIDs = ids
		state.Attachments = append(state.Attachments, core.Attachment{
			"type":   "flight_offers",
			"offers": offers.Value(),
		})
	})

	a.OnTool("create_booking", func(_ core.FunctionCall, result string, state *core.State) {
		if !gjson.Get(result, "success").Bool() {
			return
		}
		bookingID := gjson.Get(result, "booking_id").String()
		if bookingID == "" {
			return
		}
		state.LastBookingID = bookingID
		state.Attachments = append(state.Attachments, core.Attachment{
			"type":              "booking_success",
			"booking_id":        bookingID,
			"booking_reference": gjson.Get(result, "booking_reference").String(),
		})
		state.SuggestedActions = append(state.SuggestedActions, core.SuggestedAction{
			Label:   "📅 Thêm vào lịch",
			Payload: "Thêm đặt chỗ " + bookingID + " vào lịch của tôi",
			Type:    "add_to_calendar",
			Icon:    "calendar",
		})
	})

	return a
}
