// Package travelmesh provides a high-level façade over the conversation
// orchestrator and its services (sessions, rate limiting, metrics & logging)
// for building a Vietnamese-language flight booking assistant. Most
// applications interact with this package by:
//  1. Creating a TravelMesh via New() with a model provider and travel services
//  2. Calling Chat for request/response turns or ChatStream for token streaming
//
// The façade delegates turn execution to orchestrator.Orchestrator while
// keeping setup concise. All defaults are safe for local development; a
// production deployment supplies a durable session store, a Prometheus
// recorder and a structured logger.
package travelmesh

import (
	"context"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/metrics"
	"github.com/hupe1980/travelmesh/orchestrator"
	"github.com/hupe1980/travelmesh/ratelimit"
	"github.com/hupe1980/travelmesh/session"
	"github.com/hupe1980/travelmesh/travel"
)

// Options configure the TravelMesh instance. Any unset service defaults to
// an in-memory or no-op implementation.
type Options struct {
	// Sessions persists conversation history and state between turns.
	Sessions session.Store
	// Limiter throttles turns per user across sliding windows.
	Limiter *ratelimit.Limiter
	// Metrics receives turn-level observations.
	Metrics metrics.Recorder
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// TravelMesh is the high-level façade aggregating the orchestrator and its
// services.
type TravelMesh struct {
	orch *orchestrator.Orchestrator
}

// New creates a TravelMesh over a model provider and travel services.
func New(provider orchestrator.ModelProvider, services travel.Services, optFns ...func(o *Options)) *TravelMesh {
	opts := Options{
		Metrics: metrics.NoOpRecorder{},
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	orch := orchestrator.New(provider, services, func(o *orchestrator.Options) {
		o.Sessions = opts.Sessions
		o.Limiter = opts.Limiter
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})
	return &TravelMesh{orch: orch}
}

// Chat executes one conversation turn and returns the complete outcome.
func (m *TravelMesh) Chat(ctx context.Context, conversationID, userID, message string) (*orchestrator.Turn, error) {
	return m.orch.RunTurn(ctx, conversationID, userID, message)
}

// ChatStream executes one conversation turn as a TurnEvent stream. The final
// event is always TurnEventDone.
func (m *TravelMesh) ChatStream(ctx context.Context, conversationID, userID, message string) <-chan core.TurnEvent {
	return m.orch.RunTurnStream(ctx, conversationID, userID, message)
}
