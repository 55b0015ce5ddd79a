package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// ErrStaleTelemetry indicates the latest snapshot is older than the
// caller's freshness budget, or that nothing has been published yet.
var ErrStaleTelemetry = errors.New("telemetry is stale")

// State is the process-wide latest-telemetry cell: single writer (the
// listener), many readers (the workers). The stored value is replaced
// wholesale on every publish; readers always see a complete snapshot.
type State struct {
	mu        sync.RWMutex
	last      model.TelemetryData
	published bool

	// now is swappable for tests.
	now func() time.Time
}

// NewState creates an empty cell. Latest fails until the first Publish.
func NewState() *State {
	return &State{now: time.Now}
}

// Publish atomically replaces the stored snapshot. Last write wins.
func (s *State) Publish(data model.TelemetryData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	s.published = true
}

// Latest returns the most recent snapshot if its age is within maxAge,
// otherwise ErrStaleTelemetry.
func (s *State) Latest(maxAge time.Duration) (model.TelemetryData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.published {
		return model.TelemetryData{}, ErrStaleTelemetry
	}
	if age := s.now().Sub(s.last.Timestamp); age > maxAge {
		return model.TelemetryData{}, ErrStaleTelemetry
	}
	return s.last, nil
}

// Peek returns the most recent snapshot regardless of age. The listener
// uses it as the merge base for partial packets.
func (s *State) Peek() model.TelemetryData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
