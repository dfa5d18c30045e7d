// Package observability instruments the trust core with structured logging
// and OpenTelemetry metrics and traces.
//
// Only the OTel API surface is used here: the host process decides which
// SDK, exporter and sampling configuration to install. With no SDK
// installed every call is a no-op.
package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/registrum/registrum"

// Instruments bundles the logger, tracer and counters used by the core.
type Instruments struct {
	logger *slog.Logger
	tracer trace.Tracer

	transitions   metric.Int64Counter
	denials       metric.Int64Counter
	verifications metric.Int64Counter
}

// New creates Instruments on the global OTel providers.
func New(logger *slog.Logger) (*Instruments, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	meter := otel.Meter(instrumentationName)

	transitions, err := meter.Int64Counter("registrum.transitions",
		metric.WithDescription("Record transitions applied"))
	if err != nil {
		return nil, err
	}
	denials, err := meter.Int64Counter("registrum.transition_denials",
		metric.WithDescription("Record transitions denied by the guard table"))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("registrum.chain_verifications",
		metric.WithDescription("Chain verifications by outcome"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		logger:        logger,
		tracer:        otel.Tracer(instrumentationName),
		transitions:   transitions,
		denials:       denials,
		verifications: verifications,
	}, nil
}

// Logger returns the structured logger. Safe on a nil receiver.
func (i *Instruments) Logger() *slog.Logger {
	if i == nil || i.logger == nil {
		return slog.Default()
	}
	return i.logger
}

// StartTransition opens a span around a state machine transition.
// Safe on a nil receiver, in which case the context is returned unchanged.
func (i *Instruments) StartTransition(ctx context.Context, recordID, transition string) (context.Context, trace.Span) {
	if i == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, "record.transition",
		trace.WithAttributes(
			attribute.String("record.id", recordID),
			attribute.String("record.transition", transition),
		))
}

// TransitionApplied counts a successful transition.
func (i *Instruments) TransitionApplied(ctx context.Context, transition string) {
	if i == nil {
		return
	}
	i.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", transition)))
}

// TransitionDenied counts a guard table denial.
func (i *Instruments) TransitionDenied(ctx context.Context, transition string) {
	if i == nil {
		return
	}
	i.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", transition)))
}

// ChainVerified counts a verification by outcome.
func (i *Instruments) ChainVerified(ctx context.Context, status string) {
	if i == nil {
		return
	}
	i.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
