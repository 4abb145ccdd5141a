// internal/circulation/options.go
package circulation

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"shelfkeeper/pkg/eventstore"
)

type options struct {
	legacy     bool
	loginLimit int
	logger     *slog.Logger
	tracers    trace.TracerProvider
	meters     metric.MeterProvider
	journal    *eventstore.Store
}

// Option configures a Manager.
type Option func(*options)

// WithLegacyBehavior restores the permissive rules: duplicate user names are
// accepted and a book on loan may be removed, leaving the member's list
// pointing at a book that no longer exists.
func WithLegacyBehavior() Option {
	return func(o *options) { o.legacy = true }
}

// WithLoginLimit caps authentication attempts per minute. Zero disables it.
func WithLoginLimit(perMinute int) Option {
	return func(o *options) { o.loginLimit = perMinute }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider used for the manager's and the
// journal's spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracers = tp }
}

// WithMeterProvider sets the provider used for the circulation counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meters = mp }
}

// WithJournal supplies the event store mutations are recorded in.
func WithJournal(s *eventstore.Store) Option {
	return func(o *options) { o.journal = s }
}

func defaultOptions() options {
	return options{
		logger:  slog.New(slog.DiscardHandler),
		tracers: otel.GetTracerProvider(),
		meters:  otel.GetMeterProvider(),
	}
}
