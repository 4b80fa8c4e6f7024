// Package jobs keeps the status of long-running work (lead generation runs,
// video exports) so that callbacks, pollers and the API agree on it.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Job kinds.
const (
	KindLeads      = "leads"
	KindExport     = "export"
	KindEnrichment = "enrichment"
)

// EnrichmentKey is the job id an enrichment run of a history entry is kept under.
func EnrichmentKey(historyID string) string {
	return KindEnrichment + ":" + historyID
}

// States mirror the upstream status vocabulary.
const (
	StateProcessing = "processing"
	StateComplete   = "complete"
	StateFailed     = "failed"
)

// DefaultTTL is how long a job status is kept after its last update.
const DefaultTTL = 24 * time.Hour

var ErrJobNotFound = errors.New("job not found")

// Status is the latest known state of one job.
type Status struct {
	RequestID  string    `json:"requestId"`
	UserID     string    `json:"userId,omitempty"`
	Kind       string    `json:"kind"`
	State      string    `json:"status"`
	SheetID    string    `json:"SheetID,omitempty"`
	SheetLink  string    `json:"SheetLink,omitempty"`
	LeadsCount int       `json:"leadsCount,omitempty"`
	Output     string    `json:"output,omitempty"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Terminal reports whether the job will not change state again.
func (s *Status) Terminal() bool {
	return s.State == StateComplete || s.State == StateFailed
}

// Store persists job statuses. Put overwrites; last writer wins.
type Store interface {
	Put(ctx context.Context, status Status) error
	Get(ctx context.Context, requestID string) (*Status, error)
}

type memoryEntry struct {
	status  Status
	expires time.Time
}

// MemoryStore is the single-process Store used when Redis is not configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{jobs: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Put(ctx context.Context, status Status) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = m.now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[status.RequestID] = memoryEntry{status: status, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, requestID string) (*Status, error) {
	m.mu.RLock()
	entry, ok := m.jobs[requestID]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expires) {
		return nil, ErrJobNotFound
	}
	status := entry.status
	return &status, nil
}

// Prune drops expired entries and returns how many were removed.
func (m *MemoryStore) Prune() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.jobs {
		if now.After(entry.expires) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
