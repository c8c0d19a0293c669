package zento

import (
	"context"
	"time"
)

// ActivityEventType enumerates guest lifecycle events.
type ActivityEventType string

const (
	ActivityEventGuestProvisioned ActivityEventType = "guest.provisioned"
	ActivityEventGuestMerged      ActivityEventType = "guest.merged"
	ActivityEventMergeSkipped     ActivityEventType = "guest.merge.skipped"
	ActivityEventMergeFailed      ActivityEventType = "guest.merge.failed"
	ActivityEventGuestDiscarded   ActivityEventType = "guest.discarded"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	GuestID    string
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity emits the event and logs sink failures
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		ensureLogger(logger).Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
