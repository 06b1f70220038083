package agent

import (
	"github.com/tidwall/gjson"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
	"github.com/hupe1980/travelmesh/travel"
)

const assistantSystemPrompt = `Bạn là trợ lý cá nhân về chuyến đi, giao tiếp bằng tiếng Việt.

Nhiệm vụ của bạn:
- Xem danh sách đặt chỗ, hành khách, sở thích bay của người dùng.
- Xem và đồng bộ lịch bay (get_calendar_events, add_booking_to_calendar).
- Gửi thông tin chuyến bay qua email (send_flight_info_email).

Quy tắc:
1. Nếu add_booking_to_calendar trả về needs_authorization, đưa nguyên văn authorization_url cho người dùng và hướng dẫn họ cấp quyền rồi thử lại.
2. Khi liệt kê đặt chỗ hoặc sự kiện, trình bày dạng danh sách ngắn gọn kèm mã đặt chỗ.
3. Không bịa dữ liệu: chỉ trả lời dựa trên kết quả tool.
4. Nếu tool trả về lỗi, giải thích thân thiện và gợi ý bước tiếp theo.`

// NewAssistant builds the personal assistant specialist: bookings, passenger
// and preference lookups, calendar sync and email dispatch.
func NewAssistant(invoker *model.RetryInvoker, services travel.Services, optFns ...func(o *Options)) *Agent {
	registry := tool.NewRegistry(travel.AssistantTools(services)...)
	a := New("assistant", assistantSystemPrompt, invoker, registry, optFns...)

	a.OnTool("add_booking_to_calendar", func(_ core.FunctionCall, result string, state *core.State) {
		if gjson.Get(result, "needs_authorization").Bool() {
			state.Attachments = append(state.Attachments, core.Attachment{
				"type":              "calendar_authorization",
				"authorization_url": gjson.Get(result, "authorization_url").String(),
			})
			return
		}
		if gjson.Get(result, "success").Bool() {
			state.Attachments = append(state.Attachments, core.Attachment{
				"type":       "calendar_event",
				"event_id":   gjson.Get(result, "event_id").String(),
				"booking_id": gjson.Get(result, "booking_id").String(),
			})
		}
	})

	return a
}
