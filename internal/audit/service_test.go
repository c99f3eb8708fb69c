package audit

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// saturatedService returns a Service whose channel is already full and
// whose worker is not running.
func saturatedService(t *testing.T) *Service {
	t.Helper()
	s := &Service{
		eventCh: make(chan Event, 2),
		done:    make(chan struct{}),
	}
	s.eventCh <- Event{Action: "content.create", Resource: "content"}
	s.eventCh <- Event{Action: "content.status", Resource: "content"}
	return s
}

func TestLogDropsWhenSaturated(t *testing.T) {
	s := saturatedService(t)

	returned := make(chan struct{})
	go func() {
		s.Log(context.Background(), Event{Action: "content.delete"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full channel")
	}

	if n := len(s.eventCh); n != 2 {
		t.Errorf("channel holds %d events, want the original 2", n)
	}
	if n := s.DroppedCount(); n != 1 {
		t.Errorf("DroppedCount = %d, want 1", n)
	}
}

func TestShutdownOutlivesContextDeadline(t *testing.T) {
	s := &Service{
		eventCh: make(chan Event),
		done:    make(chan struct{}),
	}

	const drainDelay = 200 * time.Millisecond
	go func() {
		time.Sleep(drainDelay)
		close(s.done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	start := time.Now()
	s.Shutdown(ctx)

	// The write queue must drain even when the shutdown context has
	// already expired; otherwise buffered events are silently lost.
	if elapsed := time.Since(start); elapsed < drainDelay {
		t.Errorf("Shutdown returned after %v, want at least %v", elapsed, drainDelay)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if got := nullIfEmpty(""); got != nil {
		t.Errorf("nullIfEmpty(\"\") = %v, want nil", got)
	}

	got := nullIfEmpty("9f2c1d70-55aa-4b1e-9c3d-0a8f6e412b77")
	if got == nil || *got != "9f2c1d70-55aa-4b1e-9c3d-0a8f6e412b77" {
		t.Errorf("nullIfEmpty(uuid) = %v, want the value back", got)
	}
}

func TestNullableJSON(t *testing.T) {
	if nullableJSON(nil) != nil {
		t.Error("nil payload should map to SQL NULL")
	}
	if nullableJSON([]byte{}) != nil {
		t.Error("empty payload should map to SQL NULL")
	}
	if nullableJSON([]byte(`{"status":"published"}`)) == nil {
		t.Error("non-empty payload should pass through")
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "page=2&per_page=10", 2, 10},
		{"garbage values", "page=x&per_page=y", 1, 20},
		{"negative and zero", "page=-1&per_page=0", 1, 20},
		{"per_page capped", "per_page=500", 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "/audit-log?"+tt.query, nil)
			page, perPage := parsePagination(r)
			if page != tt.wantPage || perPage != tt.wantPerPage {
				t.Errorf("parsePagination = %d/%d, want %d/%d",
					page, perPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}
