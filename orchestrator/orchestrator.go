// Package orchestrator ties the engine together: it loads the conversation,
// enforces rate limits, builds the per-turn model set, routes the message
// through the intent router and persists the outcome. Failures surface to
// the user as friendly Vietnamese messages, never as raw errors.
package orchestrator

import (
	"context"
	"time"

	"github.com/hupe1980/travelmesh/agent"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/metrics"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/ratelimit"
	"github.com/hupe1980/travelmesh/router"
	"github.com/hupe1980/travelmesh/session"
	"github.com/hupe1980/travelmesh/travel"
)

// User-facing fallback messages.
const (
	modelUnavailableMessage = "Xin lỗi, hệ thống AI hiện không khả dụng. Vui lòng thử lại sau. 🙏"
	turnFailedMessage       = "Xin lỗi, đã có lỗi xảy ra khi xử lý yêu cầu của bạn. Vui lòng thử lại sau ít phút. 🙏"
)

// Turn statuses reported to metrics.
const (
	StatusSuccess          = "success"
	StatusRateLimited      = "rate_limited"
	StatusModelUnavailable = "model_unavailable"
	StatusModelError       = "model_error"
)

// ModelProvider supplies the models for one turn. Building per turn lets
// implementations rotate credentials or pick providers dynamically.
type ModelProvider interface {
	RouterModel(ctx context.Context) (model.Model, error)
	FlightModel(ctx context.Context) (model.Model, error)
	AssistantModel(ctx context.Context) (model.Model, error)
}

// StaticProvider returns fixed models. A nil Flight or Assistant falls back
// to Router, so a single model can drive the whole engine.
type StaticProvider struct {
	Router    model.Model
	Flight    model.Model
	Assistant model.Model
}

func (p StaticProvider) RouterModel(context.Context) (model.Model, error) { return p.Router, nil }

func (p StaticProvider) FlightModel(context.Context) (model.Model, error) {
	if p.Flight != nil {
		return p.Flight, nil
	}
	return p.Router, nil
}

func (p StaticProvider) AssistantModel(context.Context) (model.Model, error) {
	if p.Assistant != nil {
		return p.Assistant, nil
	}
	return p.Router, nil
}

// Options configure an Orchestrator.
type Options struct {
	Limiter  *ratelimit.Limiter
	Sessions session.Store
	Metrics  metrics.Recorder
	Logger   logging.Logger

	// ChunkSize is the rune count per streamed token event.
	ChunkSize int

	// AgentOptions is applied to both specialist agents.
	AgentOptions func(o *agent.Options)
	// RouterOptions is applied to the intent router.
	RouterOptions func(o *router.Options)
	// InvokerOptions is applied to every model invoker.
	InvokerOptions func(o *model.InvokerOptions)
}

// Orchestrator executes conversation turns.
type Orchestrator struct {
	provider ModelProvider
	services travel.Services
	opts     Options
}

// New creates an orchestrator over a model provider and the travel services.
func New(provider ModelProvider, services travel.Services, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Metrics:   metrics.NoOpRecorder{},
		Logger:    logging.NoOpLogger{},
		ChunkSize: 8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	return &Orchestrator{provider: provider, services: services, opts: opts}
}

// Turn is the outcome of one conversation turn.
type Turn struct {
	Text             string
	Intent           core.Intent
	Status           string
	Attachments      []core.Attachment
	SuggestedActions []core.SuggestedAction
	State            *core.State
}

// RunTurn executes one turn to completion. The returned Turn always carries
// user-presentable text; an error is returned only when the session store
// itself failed.
func (o *Orchestrator) RunTurn(ctx context.Context, conversationID, userID, message string) (*Turn, error) {
	started := time.Now()

	conv, err := o.opts.Sessions.Load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if err := o.opts.Limiter.Check(userID); err != nil {
		rl, ok := err.(*ratelimit.Error)
		if !ok {
			return nil, err
		}
		o.opts.Logger.Warn("orchestrator.rate_limited", "tier", string(rl.Tier), "retry_after", rl.RetryAfter.String())
		o.opts.Metrics.ObserveRateLimited(string(rl.Tier))
		return &Turn{Text: rl.Message, Status: StatusRateLimited, State: conv.State}, nil
	}

	rt, err := o.buildRouter(ctx)
	if err != nil {
		o.opts.Logger.Error("orchestrator.model_unavailable", "error", err.Error())
		o.opts.Metrics.ObserveTurn("unknown", StatusModelUnavailable, time.Since(started))
		return &Turn{Text: modelUnavailableMessage, Status: StatusModelUnavailable, State: conv.State}, nil
	}

	res, err := rt.Route(ctx, message, userID, conv.History, conv.State)
	if err != nil {
		o.opts.Logger.Error("orchestrator.turn_failed", "error", err.Error())
		o.opts.Metrics.ObserveTurn("unknown", StatusModelError, time.Since(started))
		return &Turn{Text: turnFailedMessage, Status: StatusModelError, State: conv.State}, nil
	}

	// One successful turn consumes exactly one rate-limit credit, regardless
	// of how many model calls it took.
	o.opts.Limiter.Record(userID)

	turn := &Turn{
		Text:             res.Text,
		Intent:           res.Intent,
		Status:           StatusSuccess,
		Attachments:      conv.State.TakeAttachments(),
		SuggestedActions: conv.State.TakeSuggestedActions(),
		State:            conv.State,
	}

	conv.History = append(conv.History,
		core.NewTextContent(core.RoleUser, message),
		core.NewTextContent(core.RoleAssistant, res.Text),
	)
	if err := o.opts.Sessions.Save(ctx, conv); err != nil {
		return nil, err
	}

	o.opts.Metrics.ObserveTurn(res.Intent.String(), StatusSuccess, time.Since(started))
	o.opts.Logger.Info("orchestrator.turn_done",
		"conversation_id", conversationID,
		"intent", res.Intent.String(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return turn, nil
}

// RunTurnStream executes one turn and emits it as a TurnEvent stream. The
// final event is always done; failed turns emit an error event first.
func (o *Orchestrator) RunTurnStream(ctx context.Context, conversationID, userID, message string) <-chan core.TurnEvent {
	ch := make(chan core.TurnEvent)

	go func() {
		defer close(ch)

		emit := func(ev core.TurnEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		turn, err := o.RunTurn(ctx, conversationID, userID, message)
		if err != nil {
			ev := core.NewTurnEvent(core.TurnEventError)
			ev.Text = turnFailedMessage
			if !emit(ev) {
				return
			}
			done := core.NewTurnEvent(core.TurnEventDone)
			done.FullText = turnFailedMessage
			emit(done)
			return
		}

		if turn.Status == StatusSuccess {
			for _, chunk := range chunkRunes(turn.Text, o.opts.ChunkSize) {
				ev := core.NewTurnEvent(core.TurnEventToken)
				ev.Text = chunk
				if !emit(ev) {
					return
				}
			}
			if len(turn.Attachments) > 0 {
				ev := core.NewTurnEvent(core.TurnEventAttachments)
				ev.Attachments = turn.Attachments
				if !emit(ev) {
					return
				}
			}
			if len(turn.SuggestedActions) > 0 {
				ev := core.NewTurnEvent(core.TurnEventSuggestedActions)
				ev.SuggestedActions = turn.SuggestedActions
				if !emit(ev) {
					return
				}
			}
		} else {
			ev := core.NewTurnEvent(core.TurnEventError)
			ev.Text = turn.Text
			if !emit(ev) {
				return
			}
		}

		done := core.NewTurnEvent(core.TurnEventDone)
		done.FullText = turn.Text
		done.State = turn.State
		done.Intent = turn.Intent
		emit(done)
	}()

	return ch
}

// buildRouter assembles the per-turn router over freshly provided models.
func (o *Orchestrator) buildRouter(ctx context.Context) (*router.Router, error) {
	routerModel, err := o.provider.RouterModel(ctx)
	if err != nil {
		return nil, err
	}
	flightModel, err := o.provider.FlightModel(ctx)
	if err != nil {
		return nil, err
	}
	assistantModel, err := o.provider.AssistantModel(ctx)
	if err != nil {
		return nil, err
	}

	invoker := func(m model.Model) *model.RetryInvoker {
		if o.opts.InvokerOptions != nil {
			return model.NewRetryInvoker(m, o.opts.InvokerOptions)
		}
		return model.NewRetryInvoker(m)
	}

	var agentOpts []func(o *agent.Options)
	if o.opts.AgentOptions != nil {
		agentOpts = append(agentOpts, o.opts.AgentOptions)
	}
	flight := agent.NewFlight(invoker(flightModel), o.services, agentOpts...)
	assistant := agent.NewAssistant(invoker(assistantModel), o.services, agentOpts...)

	var routerOpts []func(o *router.Options)
	if o.opts.RouterOptions != nil {
		routerOpts = append(routerOpts, o.opts.RouterOptions)
	}
	return router.New(invoker(routerModel), flight, assistant, routerOpts...), nil
}

// chunkRunes splits s into n-rune chunks, preserving multi-byte characters.
func chunkRunes(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
