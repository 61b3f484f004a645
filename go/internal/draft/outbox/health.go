package outbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// pendingAlert is the backlog size that marks the relay unhealthy.
const pendingAlert = 1000

type relayStats struct {
	mu        sync.Mutex
	published uint64
	failures  uint64
	pending   int
	lastEvent time.Time
}

func (s *relayStats) processed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
	s.lastEvent = at
	if s.pending > 0 {
		s.pending--
	}
}

func (s *relayStats) failed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

func (s *relayStats) setPending(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = n
}

// HealthStatus is a point-in-time view of the relay.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	EventsPublished uint64    `json:"events_published"`
	PublishFailures uint64    `json:"publish_failures"`
	PendingEvents   int       `json:"pending_events"`
	LastEventTime   time.Time `json:"last_event_time"`
	BusConnected    bool      `json:"bus_connected"`
	Errors          []string  `json:"errors"`
}

// connectionChecker is implemented by publishers that can report their bus connection.
type connectionChecker interface {
	Connected() bool
}

// Health reports backlog and bus state. The pending count is as of the last fallback scan.
func (r *Relay) Health() HealthStatus {
	r.stats.mu.Lock()
	status := HealthStatus{
		Healthy:         true,
		EventsPublished: r.stats.published,
		PublishFailures: r.stats.failures,
		PendingEvents:   r.stats.pending,
		LastEventTime:   r.stats.lastEvent,
		BusConnected:    true,
		Errors:          []string{},
	}
	r.stats.mu.Unlock()

	if cc, ok := r.publisher.(connectionChecker); ok {
		status.BusConnected = cc.Connected()
	}
	if !status.BusConnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "message bus disconnected")
	}
	if status.PendingEvents > pendingAlert {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", status.PendingEvents))
	}
	return status
}

// ServeHTTP writes the health status as JSON, 503 when unhealthy.
func (r *Relay) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := r.Health()

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write outbox health")
	}
}
