package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// eventChannelSize bounds the async event buffer. When the channel is
// full, events are dropped with a warning.
const eventChannelSize = 256

// Event is an audit event awaiting persistence.
type Event struct {
	Action     string         // e.g. "content.update", "admin.login.success"
	ActorID    string         // admin id, empty for anonymous actions
	Resource   string         // e.g. a content type slug, or "media"
	ResourceID string         // id of the affected record or file
	Payload    map[string]any // additional context
}

// Service queues audit events on a buffered channel and writes them from
// a background goroutine, so logging never blocks or fails a request.
type Service struct {
	repo         *Repository
	eventCh      chan Event
	done         chan struct{}
	droppedCount atomic.Uint64
}

// NewService creates an audit service. Call Start to begin processing and
// Shutdown to drain and stop.
func NewService(repo *Repository) *Service {
	return &Service{
		repo:    repo,
		eventCh: make(chan Event, eventChannelSize),
		done:    make(chan struct{}),
	}
}

// Log queues an event without blocking. A full channel drops the event.
func (s *Service) Log(ctx context.Context, event Event) {
	select {
	case s.eventCh <- event:
	default:
		dropped := s.droppedCount.Add(1)
		slog.Warn("audit event channel full, dropping event",
			"action", event.Action,
			"actor_id", event.ActorID,
			"resource", event.Resource,
			"resource_id", event.ResourceID,
			"total_dropped", dropped,
		)
	}
}

// Start launches the background writer. Must be called once.
func (s *Service) Start() {
	go s.processEvents()
}

// Shutdown closes the channel, drains buffered events, and waits for the
// writer to finish. The context bounds how long the wait is reported on;
// the writer is always waited for so in-flight inserts complete.
func (s *Service) Shutdown(ctx context.Context) {
	close(s.eventCh)

	select {
	case <-s.done:
		slog.Info("audit service shutdown complete")
	case <-ctx.Done():
		slog.Warn("audit service shutdown timeout, still waiting for drain")
		<-s.done
	}
}

func (s *Service) processEvents() {
	defer close(s.done)

	for event := range s.eventCh {
		s.writeEvent(event)
	}
}

// writeEvent inserts one event. Errors are logged, never propagated.
func (s *Service) writeEvent(event Event) {
	// The originating request context may already be cancelled.
	ctx := context.Background()

	if err := s.repo.Insert(ctx, event); err != nil {
		slog.Error("failed to write audit event",
			"action", event.Action,
			"actor_id", event.ActorID,
			"resource", event.Resource,
			"resource_id", event.ResourceID,
			"error", err,
		)
	}
}

// DroppedCount returns the number of events dropped since start.
func (s *Service) DroppedCount() uint64 {
	return s.droppedCount.Load()
}

// List returns one page of audit entries matching the filters.
func (s *Service) List(ctx context.Context, filters Filters, page, perPage int) ([]*Entry, int, error) {
	return s.repo.List(ctx, filters, page, perPage)
}
