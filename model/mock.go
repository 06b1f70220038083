package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/travelmesh/core"
)

// MockStep scripts one Generate call of a Mock: either an error, or a final
// response optionally preceded by partial text chunks (streaming requests
// only).
type MockStep struct {
	Err      error
	Partials []string
	Response *Response
}

// Mock is a deterministic in-memory Model for tests. Behavior is either a
// FIFO script of steps or, when set, a handler computing the response from
// the request. All Generate calls are recorded for assertions.
type Mock struct {
	info    Info
	mu      sync.Mutex
	steps   []MockStep
	handler func(req Request) (Response, error)
	calls   []Request
}

// NewMock constructs a Mock with tool support enabled.
func NewMock(name string) *Mock {
	return &Mock{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Enqueue appends a scripted step.
func (m *Mock) Enqueue(step MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
}

// EnqueueText scripts a final plain-text assistant response.
func (m *Mock) EnqueueText(text string) {
	m.Enqueue(MockStep{Response: &Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}})
}

// EnqueueToolCall scripts a response requesting a single tool call.
func (m *Mock) EnqueueToolCall(name, args string) {
	m.Enqueue(MockStep{Response: &Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        core.NewID(),
				Name:      name,
				Arguments: args,
			}}},
		},
		FinishReason: "tool_calls",
	}})
}

// EnqueueError scripts a failing call.
func (m *Mock) EnqueueError(err error) { m.Enqueue(MockStep{Err: err}) }

// SetHandler switches the mock to computed responses; the script is ignored
// while a handler is set.
func (m *Mock) SetHandler(fn func(req Request) (Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Requests returns a copy of all requests seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns the number of Generate invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Generate implements Model.
func (m *Mock) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	var step MockStep
	scripted := false
	if handler == nil && len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
		scripted = true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		switch {
		case handler != nil:
			resp, err := handler(req)
			if err != nil {
				errCh <- err
				return
			}
			respCh <- resp
		case scripted:
			if step.Err != nil {
				errCh <- step.Err
				return
			}
			if req.Stream {
				for _, p := range step.Partials {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case respCh <- Response{Partial: true, Content: core.NewTextContent("assistant", p)}:
					}
				}
			}
			respCh <- *step.Response
		default:
			// Unscripted fallback keeps simple tests short.
			var input string
			if len(req.Contents) > 0 {
				input = req.Contents[len(req.Contents)-1].Text()
			}
			respCh <- Response{
				Content:      core.NewTextContent("assistant", fmt.Sprintf("Mock response to: %s", input)),
				FinishReason: "stop",
			}
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
