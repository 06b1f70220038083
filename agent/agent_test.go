package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
	"github.com/hupe1980/travelmesh/travel"
)

func newTestInvoker(m *model.Mock) *model.RetryInvoker {
	return model.NewRetryInvoker(m, func(o *model.InvokerOptions) {
		o.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	})
}

func echoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	echo := tool.NewFunctionTool("echo", "echoes input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		})
	boom := tool.NewFunctionTool("boom", "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("downstream unavailable")
		})
	return tool.NewRegistry(echo, boom)
}

func TestRunDirectAnswerSkipsTools(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueText("Xin chào!")

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	out, err := a.Run(context.Background(), "chào", "user-1", nil, core.NewState())
	require.NoError(t, err)
	assert.Equal(t, "Xin chào!", out)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRunExecutesToolThenAnswers(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueToolCall("echo", `{"text":"pong"}`)
	mock.EnqueueText("Kết quả: pong")

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	out, err := a.Run(context.Background(), "ping", "user-1", nil, core.NewState())
	require.NoError(t, err)
	assert.Equal(t, "Kết quả: pong", out)

	// The second request must carry the assistant's call and the tool result.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Contents[len(reqs[1].Contents)-1]
	assert.Equal(t, core.RoleTool, last.Role)
	fr := last.Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "echo", fr.Name)
	assert.Equal(t, "pong", fr.Result)
}

func TestRunContainsUnknownTool(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueToolCall("no_such_tool", `{}`)
	mock.EnqueueText("xin lỗi, tôi không làm được")

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	out, err := a.Run(context.Background(), "task", "user-1", nil, core.NewState())
	require.NoError(t, err)
	assert.Equal(t, "xin lỗi, tôi không làm được", out)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	fr := reqs[1].Contents[len(reqs[1].Contents)-1].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Contains(t, fr.Result, "unknown tool")
}

func TestRunContainsToolError(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueToolCall("boom", `{}`)
	mock.EnqueueText("done")

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	out, err := a.Run(context.Background(), "task", "user-1", nil, core.NewState())
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	reqs := mock.Requests()
	fr := reqs[1].Contents[len(reqs[1].Contents)-1].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Contains(t, fr.Result, "downstream unavailable")
}

func TestRunIterationCap(t *testing.T) {
	mock := model.NewMock("mock")
	for i := 0; i < 10; i++ {
		mock.EnqueueToolCall("echo", `{"text":"again"}`)
	}

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	out, err := a.Run(context.Background(), "task", "user-1", nil, core.NewState())
	require.NoError(t, err)
	assert.Equal(t, maxIterationsMessage, out)
	assert.Equal(t, 5, mock.CallCount())
}

func TestRunHistoryWindow(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueText("ok")

	var history []core.Content
	for i := 0; i < 10; i++ {
		history = append(history, core.NewTextContent(core.RoleUser, "msg"))
	}

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	_, err := a.Run(context.Background(), "task", "user-1", history, core.NewState())
	require.NoError(t, err)

	// system + 6 history + task.
	require.Len(t, mock.Requests()[0].Contents, 8)
	assert.Equal(t, core.RoleSystem, mock.Requests()[0].Contents[0].Role)
}

func TestFlightAgentHooksCaptureOffersAndBooking(t *testing.T) {
	store := travel.NewInMemory()
	store.SeedPassenger("user-1", travel.Passenger{ID: "pax-1", FirstName: "Ngoc", LastName: "Tran"})
	store.SeedEmail("user-1", "ngoc@example.com")

	mock := model.NewMock("mock")
	mock.EnqueueToolCall("search_flights", `{"origin":"HAN","destination":"SGN","depart_date":"2026-09-10"}`)
	mock.EnqueueText("Đây là các chuyến bay phù hợp.")

	a := NewFlight(newTestInvoker(mock), store.Services())
	state := core.NewState()
	_, err := a.Run(context.Background(), "tìm chuyến bay HAN-SGN ngày 2026-09-10", "user-1", nil, state)
	require.NoError(t, err)

	require.Len(t, state.LastOfferIDs, 5)
	require.Len(t, state.Attachments, 1)
	assert.Equal(t, "flight_offers", state.Attachments[0]["type"])

	// Book the first captured offer.
	mock2 := model.NewMock("mock")
	mock2.EnqueueToolCall("create_booking",
		`{"offer_id":"`+state.LastOfferIDs[0]+`","passenger_id":"pax-1","user_id":"user-1"}`)
	mock2.EnqueueText("Đã đặt vé thành công!")

	b := NewFlight(newTestInvoker(mock2), store.Services())
	_, err = b.Run(context.Background(), "đặt vé", "user-1", nil, state)
	require.NoError(t, err)

	assert.NotEmpty(t, state.LastBookingID)
	require.Len(t, state.SuggestedActions, 1)
	assert.Equal(t, "add_to_calendar", state.SuggestedActions[0].Type)
	assert.Contains(t, state.SuggestedActions[0].Payload, state.LastBookingID)
}

func TestRunModelFailureEscapes(t *testing.T) {
	mock := model.NewMock("mock")
	mock.EnqueueError(errors.New("bad request"))

	a := New("test", "prompt", newTestInvoker(mock), echoRegistry(t))
	_, err := a.Run(context.Background(), "task", "user-1", nil, core.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent test")
}
