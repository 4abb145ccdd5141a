// Package eventstore is an in-memory, append-only journal of domain events
// with per-aggregate optimistic concurrency and a blake2b hash chain.
package eventstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAggregateNotFound   = errors.New("aggregate not found")
	ErrInvalidVersion      = errors.New("invalid version number")
	ErrChainBroken         = errors.New("journal hash chain broken")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event represents a domain event with full metadata
type Event struct {
	ID            uuid.UUID           `json:"id"`
	Sequence      int64               `json:"sequence"`
	AggregateID   string              `json:"aggregate_id"`
	AggregateType string              `json:"aggregate_type"`
	EventType     string              `json:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data"`
	Metadata      map[string]string   `json:"metadata,omitempty"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	Digest        string              `json:"digest"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.EventData, v); err != nil {
		return fmt.Errorf("decode %s event %d: %w", e.EventType, e.Sequence, err)
	}
	return nil
}

// clone returns a copy that shares no payload or metadata with e.
func (e Event) clone() Event {
	e.EventData = slices.Clone(e.EventData)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// NewEvent builds an event of the given type with payload marshalled as JSON.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: data}, nil
}

// Store holds the journal in memory. It is not safe for concurrent use.
type Store struct {
	events   []Event
	versions map[string]int
	head     []byte
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTracerProvider sets the provider the store takes its tracer from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) { s.tracer = tp.Tracer("shelfkeeper/eventstore") }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty journal.
func NewStore(opts ...Option) *Store {
	s := &Store{
		versions: make(map[string]int),
		tracer:   otel.Tracer("shelfkeeper/eventstore"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendEvents atomically appends events with optimistic concurrency control.
// Either every event is appended or none is.
func (s *Store) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := s.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	currentVersion := s.versions[aggregateID]
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	staged := make([]Event, 0, len(events))
	head := s.head
	for i, event := range events {
		event = event.clone()
		event.ID = uuid.New()
		event.Sequence = int64(len(s.events) + i + 1)
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = s.now()

		digest, err := chainDigest(head, event)
		if err != nil {
			return fmt.Errorf("digest event %d: %w", i, err)
		}
		event.Digest = hex.EncodeToString(digest)
		head = digest
		staged = append(staged, event)
	}

	for _, event := range staged {
		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.sequence", event.Sequence),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}

	s.events = append(s.events, staged...)
	s.versions[aggregateID] = expectedVersion + len(staged)
	s.head = head

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Append adds a single event to the end of aggregateID's stream, whatever its
// current version.
func (s *Store) Append(ctx context.Context, aggregateID, aggregateType, eventType string, payload any) (Event, error) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return Event{}, err
	}
	if err := s.AppendEvents(ctx, aggregateID, aggregateType, s.versions[aggregateID], []Event{event}); err != nil {
		return Event{}, err
	}
	return s.events[len(s.events)-1].clone(), nil
}

// LoadEvents retrieves the events of an aggregate with an optional version
// range. A toVersion of zero means no upper bound.
func (s *Store) LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	_, span := s.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	if _, ok := s.versions[aggregateID]; !ok {
		return nil, ErrAggregateNotFound
	}

	var events []Event
	for _, event := range s.events {
		if event.AggregateID != aggregateID || event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			continue
		}
		events = append(events, event.clone())
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an aggregate, zero if it
// has no events.
func (s *Store) GetCurrentVersion(_ context.Context, aggregateID string) int {
	return s.versions[aggregateID]
}

// StreamEvents returns up to batchSize events with a sequence greater than
// fromSequence, oldest first.
func (s *Store) StreamEvents(ctx context.Context, fromSequence int64, batchSize int) []Event {
	_, span := s.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	start := int(max(fromSequence, 0))
	if start >= len(s.events) {
		return []Event{}
	}
	end := len(s.events)
	if batchSize > 0 && start+batchSize < end {
		end = start + batchSize
	}

	out := make([]Event, 0, end-start)
	for _, event := range s.events[start:end] {
		out = append(out, event.clone())
	}

	span.SetAttributes(attribute.Int("events.streamed", len(out)))
	return out
}

// Len returns the number of events in the journal.
func (s *Store) Len() int {
	return len(s.events)
}

// Verify recomputes the hash chain and reports the first event whose digest
// does not match.
func (s *Store) Verify(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "eventstore.verify")
	defer span.End()

	var head []byte
	for _, event := range s.events {
		digest, err := chainDigest(head, event)
		if err != nil {
			return fmt.Errorf("digest event %d: %w", event.Sequence, err)
		}
		if hex.EncodeToString(digest) != event.Digest {
			span.SetAttributes(attribute.Int64("broken.sequence", event.Sequence))
			return fmt.Errorf("event %d: %w", event.Sequence, ErrChainBroken)
		}
		head = digest
	}
	return nil
}

// chainDigest hashes the previous digest together with the event's identity
// and payload.
func chainDigest(prev []byte, e Event) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write(prev)
	h.Write([]byte(strconv.FormatInt(e.Sequence, 10)))
	h.Write([]byte{0})
	h.Write([]byte(e.AggregateType))
	h.Write([]byte{0})
	h.Write([]byte(e.AggregateID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(e.Version)))
	h.Write([]byte{0})
	h.Write([]byte(e.EventType))
	h.Write([]byte{0})
	h.Write(e.EventData)
	return h.Sum(nil), nil
}
