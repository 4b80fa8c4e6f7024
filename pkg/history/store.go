// Package history mirrors a user's lead generation history in memory on top
// of the lead_history table.
//
// The mirror only changes after the repository acknowledges a write, so it
// never holds rows the database does not have.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEntryNotFound = errors.New("history entry not found")
	ErrInvalidStatus = errors.New("invalid enrichment status")
)

// Repository is the persistence the store needs; queries.LeadHistoryRepo implements it.
type Repository interface {
	Insert(ctx context.Context, entry *db.LeadHistory) (*db.LeadHistory, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]db.LeadHistory, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*db.LeadHistory, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	UpdateEnrichment(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*db.LeadHistory, error)
	UpdateOutcome(ctx context.Context, userID, id uuid.UUID, status string, leadsCount int) (*db.LeadHistory, error)
}

// Store is one user's history. Safe for concurrent use.
type Store struct {
	repo   Repository
	userID uuid.UUID
	now    func() time.Time

	mu      sync.RWMutex
	entries []db.LeadHistory // newest first
	loaded  bool
}

func NewStore(repo Repository, userID uuid.UUID) *Store {
	return &Store{repo: repo, userID: userID, now: time.Now}
}

// Add persists entry and then prepends the stored row to the mirror. On
// error nothing is mirrored.
func (s *Store) Add(ctx context.Context, entry db.LeadHistory) (*db.LeadHistory, error) {
	entry.UserID = s.userID
	created, err := s.repo.Insert(ctx, &entry)
	if err != nil {
		log.Errorf("Add: failed to store history entry for user %s: %v", s.userID, err)
		return nil, fmt.Errorf("failed to add history entry: %w", err)
	}

	s.mu.Lock()
	s.entries = append([]db.LeadHistory{*created}, s.entries...)
	s.mu.Unlock()
	return created, nil
}

// Delete removes the entry remotely, then locally. An entry already gone
// remotely is dropped locally as well and reported as ErrEntryNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, s.userID, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()

	if err != nil {
		return ErrEntryNotFound
	}
	return nil
}

// UpdateEnrichmentStatus writes status with the current time. Every
// in_progress write bumps enrichment_count in the repository; the mirror
// takes the returned row.
func (s *Store) UpdateEnrichmentStatus(ctx context.Context, id uuid.UUID, status string) (*db.LeadHistory, error) {
	if !validEnrichmentStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	updated, err := s.repo.UpdateEnrichment(ctx, s.userID, id, status, s.now().UTC())
	if err != nil {
		return nil, s.notFound(id, err, "failed to update enrichment status")
	}
	s.put(*updated)
	return updated, nil
}

// CheckEnrichmentStatus reads the entry's current enrichment status from the
// repository and refreshes the mirror with it.
func (s *Store) CheckEnrichmentStatus(ctx context.Context, id uuid.UUID) (*db.LeadHistory, error) {
	entry, err := s.repo.FindByID(ctx, s.userID, id)
	if err != nil {
		return nil, s.notFound(id, err, "failed to check enrichment status")
	}
	s.put(*entry)
	return entry, nil
}

// MarkImported records a finished lead import on the entry.
func (s *Store) MarkImported(ctx context.Context, id uuid.UUID, leadsCount int) (*db.LeadHistory, error) {
	updated, err := s.repo.UpdateOutcome(ctx, s.userID, id, db.HistoryStatusCompleted, leadsCount)
	if err != nil {
		return nil, s.notFound(id, err, "failed to record lead import")
	}
	s.put(*updated)
	return updated, nil
}

// EnsureHistoryEntries loads the mirror once. Later calls are no-ops until
// Refresh is used.
func (s *Store) EnsureHistoryEntries(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh replaces the mirror with the repository's rows.
func (s *Store) Refresh(ctx context.Context) error {
	entries, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		log.Errorf("Refresh: failed to load history for user %s: %v", s.userID, err)
		return fmt.Errorf("failed to load history: %w", err)
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
	log.Debugf("Refresh: loaded %d history entries for user %s", len(entries), s.userID)
	return nil
}

// Entries returns a snapshot of the mirror, newest first.
func (s *Store) Entries() []db.LeadHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]db.LeadHistory, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Get(id uuid.UUID) (db.LeadHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return db.LeadHistory{}, false
}

// Loaded reports whether the mirror has been filled at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// put replaces the mirrored row with the same id, or prepends it.
func (s *Store) put(entry db.LeadHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append([]db.LeadHistory{entry}, s.entries...)
}

func (s *Store) removeLocked(id uuid.UUID) {
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// notFound maps sql.ErrNoRows to ErrEntryNotFound and drops the stale mirror row.
func (s *Store) notFound(id uuid.UUID, err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		s.mu.Lock()
		s.removeLocked(id)
		s.mu.Unlock()
		return ErrEntryNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func validEnrichmentStatus(status string) bool {
	switch status {
	case db.EnrichmentNotStarted, db.EnrichmentInProgress, db.EnrichmentCompleted:
		return true
	}
	return false
}
