// Package agent implements the bounded tool-call loop that turns a model
// plus a tool catalog into a task executor. An agent receives a delegated
// task, reasons with its model, executes requested tools, feeds results back,
// and produces a final text answer. Tool failures are contained as data the
// model can react to; only model transport failures escape the loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

// maxIterationsMessage is returned when the loop hits its iteration cap
// without the model settling on a text answer.
const maxIterationsMessage = "⚠️ Agent đã xử lý quá nhiều bước. Vui lòng thử lại với yêu cầu đơn giản hơn."

// StateHook observes a completed tool call and may fold side effects into the
// conversation state. Hooks run after every call of their tool, including
// calls whose result is an error payload; the hook decides what counts.
type StateHook func(call core.FunctionCall, result string, state *core.State)

// Options configure an Agent.
type Options struct {
	// MaxIterations bounds model round-trips per Run. A round-trip that
	// returns plain text ends the loop early.
	MaxIterations int

	// HistoryWindow is how many trailing history entries accompany the task.
	HistoryWindow int

	Logger logging.Logger
}

// Agent drives the tool-call loop for one specialist role.
type Agent struct {
	name         string
	systemPrompt string
	invoker      *model.RetryInvoker
	registry     *tool.Registry
	hooks        map[string]StateHook
	opts         Options
}

// New creates an agent bound to a model invoker and a tool catalog.
func New(name, systemPrompt string, invoker *model.RetryInvoker, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxIterations: 5,
		HistoryWindow: 6,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Agent{
		name:         name,
		systemPrompt: systemPrompt,
		invoker:      invoker,
		registry:     registry,
		hooks:        make(map[string]StateHook),
		opts:         opts,
	}
}

// Name returns the agent's role name.
func (a *Agent) Name() string { return a.name }

// OnTool registers a state hook for the named tool, replacing any previous
// hook for that name.
func (a *Agent) OnTool(name string, hook StateHook) {
	a.hooks[name] = hook
}

// Run executes the task to completion. The returned text is the agent's
// final answer; an error means the model transport failed after retries and
// no answer exists. State is mutated in place by registered hooks.
func (a *Agent) Run(ctx context.Context, task, userID string, history []core.Content, state *core.State) (string, error) {
	contents := make([]core.Content, 0, a.opts.HistoryWindow+2)
	contents = append(contents, core.NewTextContent(core.RoleSystem, a.systemPrompt))
	contents = append(contents, tail(history, a.opts.HistoryWindow)...)
	contents = append(contents, core.NewTextContent(core.RoleUser, a.taskMessage(task, userID, state)))

	req := model.Request{Tools: a.registry.Definitions()}

	for iter := 0; iter < a.opts.MaxIterations; iter++ {
		req.Contents = contents

		resp, err := a.invoker.Invoke(ctx, req)
		if err != nil {
			a.opts.Logger.Error("agent.model_failed", "agent", a.name, "iteration", iter, "error", err.Error())
			return "", fmt.Errorf("agent %s: %w", a.name, err)
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			return resp.Content.Text(), nil
		}

		contents = append(contents, resp.Content)
		for _, call := range calls {
			result := a.execute(ctx, call, state)
			contents = append(contents, core.Content{
				Role: core.RoleTool,
				Parts: []core.Part{core.FunctionResponsePart{
					FunctionResponse: core.FunctionResponse{ID: call.ID, Name: call.Name, Result: result},
				}},
			})
		}
	}

	a.opts.Logger.Warn("agent.iteration_cap", "agent", a.name, "max_iterations", a.opts.MaxIterations)
	return maxIterationsMessage, nil
}

// execute runs a single tool call and returns its result payload. Every
// failure path yields an error payload rather than an error, so the loop
// always continues in-band.
func (a *Agent) execute(ctx context.Context, call core.FunctionCall, state *core.State) (result string) {
	defer func() {
		if r := recover(); r != nil {
			a.opts.Logger.Error("agent.tool_panic", "agent", a.name, "tool", call.Name, "panic", fmt.Sprint(r))
			result = errPayload(fmt.Sprintf("tool %s panicked: %v", call.Name, r))
		}
	}()

	t, ok := a.registry.Lookup(call.Name)
	if !ok {
		a.opts.Logger.Warn("agent.unknown_tool", "agent", a.name, "tool", call.Name)
		return errPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errPayload(fmt.Sprintf("invalid tool arguments: %v", err))
		}
	}

	out, err := t.Call(ctx, args)
	if err != nil {
		a.opts.Logger.Warn("agent.tool_failed", "agent", a.name, "tool", call.Name, "error", err.Error())
		out = errPayload(err.Error())
	} else {
		a.opts.Logger.Debug("agent.tool_ok", "agent", a.name, "tool", call.Name)
	}

	if hook, ok := a.hooks[call.Name]; ok {
		hook(call, out, state)
	}
	return out
}

// taskMessage wraps the delegated task with the caller identity and the
// conversation context the specialist prompts expect.
func (a *Agent) taskMessage(task, userID string, state *core.State) string {
	var b strings.Builder
	b.WriteString(task)
	if userID != "" {
		fmt.Fprintf(&b, "\n\n[user_id: %s]", userID)
	}
	if state != nil {
		if ctxLine := stateContext(state); ctxLine != "" {
			b.WriteString("\n")
			b.WriteString(ctxLine)
		}
	}
	return b.String()
}

func stateContext(state *core.State) string {
	var parts []string
	if len(state.Slots) > 0 {
		b, err := json.Marshal(state.Slots)
		if err == nil {
			parts = append(parts, "[slots: "+string(b)+"]")
		}
	}
	if state.LastBookingID != "" {
		parts = append(parts, "[last_booking_id: "+state.LastBookingID+"]")
	}
	if len(state.LastOfferIDs) > 0 {
		parts = append(parts, fmt.Sprintf("[recent_offers: %d]", len(state.LastOfferIDs)))
	}
	return strings.Join(parts, "\n")
}

func errPayload(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(b)
}

func tail(history []core.Content, n int) []core.Content {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
