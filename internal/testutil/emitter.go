package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
)

// Delivery is one event written to one session
type Delivery struct {
	SessionID string
	Event     *domain.Event
}

// RecordingEmitter captures every emitted event. Sessions listed in Failing
// reject deliveries with common.ErrTransport.
type RecordingEmitter struct {
	mu         sync.Mutex
	deliveries []Delivery
	Failing    map[string]bool
}

// NewRecordingEmitter creates an empty RecordingEmitter
func NewRecordingEmitter() *RecordingEmitter {
	return &RecordingEmitter{Failing: make(map[string]bool)}
}

func (e *RecordingEmitter) EmitToSession(_ context.Context, sessionID string, event *domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Failing[sessionID] {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrTransport)
	}
	e.deliveries = append(e.deliveries, Delivery{SessionID: sessionID, Event: event})
	return nil
}

// Events returns the events delivered to sessionID, optionally filtered by type
func (e *RecordingEmitter) Events(sessionID string, eventType string) []*domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*domain.Event
	for _, d := range e.deliveries {
		if d.SessionID != sessionID {
			continue
		}
		if eventType != "" && d.Event.Type != eventType {
			continue
		}
		out = append(out, d.Event)
	}
	return out
}

// CountType returns how many events of eventType were delivered to anyone
func (e *RecordingEmitter) CountType(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, d := range e.deliveries {
		if d.Event.Type == eventType {
			n++
		}
	}
	return n
}

// Reset forgets recorded deliveries
func (e *RecordingEmitter) Reset() {
	e.mu.Lock()
	e.deliveries = nil
	e.mu.Unlock()
}
