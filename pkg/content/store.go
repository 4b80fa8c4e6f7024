package content

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

// DefaultBackoff is the wait before each retry of a failed insert.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Repository is implemented by queries.ContentRepo.
type Repository interface {
	Insert(ctx context.Context, table string, item *db.ContentItem) (*db.ContentItem, error)
	ListByUser(ctx context.Context, table string, userID uuid.UUID) ([]db.ContentItem, error)
	Delete(ctx context.Context, table string, userID, id uuid.UUID) error
	Update(ctx context.Context, table string, userID, id uuid.UUID, patch db.ContentPatch) (*db.ContentItem, error)
}

// Store is one user's collection of one content kind, mirrored in memory.
type Store struct {
	repo   Repository
	kind   Kind
	userID uuid.UUID

	// Backoff holds one wait per retry; its length is the retry count.
	Backoff []time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	items []db.ContentItem // newest first
}

func NewStore(repo Repository, kind Kind, userID uuid.UUID) *Store {
	return &Store{
		repo:    repo,
		kind:    kind,
		userID:  userID,
		Backoff: DefaultBackoff,
		Sleep:   sleepContext,
	}
}

func (s *Store) Kind() Kind { return s.kind }

// Load fetches the whole collection. On error the mirror is emptied and the
// error returned, so callers can tell a failed load from an empty one.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.repo.ListByUser(ctx, s.kind.Table(), s.userID)
	if err != nil {
		s.mu.Lock()
		s.items = nil
		s.mu.Unlock()
		log.Errorf("Load: failed to load %s for user %s: %v", s.kind, s.userID, err)
		return fmt.Errorf("failed to load %s: %w", s.kind, err)
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Add inserts item, retrying after each Backoff wait on failure. The item id
// is fixed before the first attempt, so a retry after an attempt that
// committed but reported an error finds the stored row instead of adding a
// second one.
func (s *Store) Add(ctx context.Context, item db.ContentItem) (*db.ContentItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.UserID = s.userID

	var lastErr error
	for attempt := 0; attempt <= len(s.Backoff); attempt++ {
		if attempt > 0 {
			wait := s.Backoff[attempt-1]
			log.Warnf("Add: %s insert %s failed (attempt %d), retrying in %s: %v", s.kind, item.ID, attempt, wait, lastErr)
			if err := s.Sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		attemptItem := item
		created, err := s.repo.Insert(ctx, s.kind.Table(), &attemptItem)
		if err == nil {
			s.put(*created)
			return created, nil
		}
		lastErr = err
	}

	log.Errorf("Add: giving up on %s insert %s after %d attempts: %v", s.kind, item.ID, len(s.Backoff)+1, lastErr)
	return nil, fmt.Errorf("failed to add %s item: %w", s.kind, lastErr)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, s.kind.Table(), s.userID, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to delete %s item: %w", s.kind, err)
	}
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	if err != nil {
		return ErrItemNotFound
	}
	return nil
}

// Update overwrites the fields set in patch. Last writer wins.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch db.ContentPatch) (*db.ContentItem, error) {
	if !s.kind.Updatable() {
		return nil, fmt.Errorf("%w: %s", ErrNotUpdatable, s.kind)
	}
	updated, err := s.repo.Update(ctx, s.kind.Table(), s.userID, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update %s item: %w", s.kind, err)
	}
	s.put(*updated)
	return updated, nil
}

// Items returns a snapshot of the mirror, newest first.
func (s *Store) Items() []db.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]db.ContentItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) put(item db.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i] = item
			return
		}
	}
	s.items = append([]db.ContentItem{item}, s.items...)
}

func (s *Store) removeLocked(id uuid.UUID) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
