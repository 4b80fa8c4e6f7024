package appstate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
)

type stubHistoryRepo struct {
	lists   int
	listErr error
	rows    []db.LeadHistory
}

func (r *stubHistoryRepo) Insert(ctx context.Context, e *db.LeadHistory) (*db.LeadHistory, error) {
	return e, nil
}

func (r *stubHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]db.LeadHistory, error) {
	r.lists++
	return r.rows, r.listErr
}

func (r *stubHistoryRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*db.LeadHistory, error) {
	return nil, sql.ErrNoRows
}

func (r *stubHistoryRepo) Delete(ctx context.Context, userID, id uuid.UUID) error { return nil }

func (r *stubHistoryRepo) UpdateEnrichment(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*db.LeadHistory, error) {
	return nil, sql.ErrNoRows
}

func (r *stubHistoryRepo) UpdateOutcome(ctx context.Context, userID, id uuid.UUID, status string, n int) (*db.LeadHistory, error) {
	return nil, sql.ErrNoRows
}

type stubContentRepo struct {
	lists   map[string]int
	failFor string
}

func (r *stubContentRepo) Insert(ctx context.Context, table string, item *db.ContentItem) (*db.ContentItem, error) {
	return item, nil
}

func (r *stubContentRepo) ListByUser(ctx context.Context, table string, userID uuid.UUID) ([]db.ContentItem, error) {
	r.lists[table]++
	if table == r.failFor {
		return nil, errors.New("permission denied")
	}
	return []db.ContentItem{{ID: uuid.New(), UserID: userID, Title: table}}, nil
}

func (r *stubContentRepo) Delete(ctx context.Context, table string, userID, id uuid.UUID) error {
	return nil
}

func (r *stubContentRepo) Update(ctx context.Context, table string, userID, id uuid.UUID, p db.ContentPatch) (*db.ContentItem, error) {
	return nil, sql.ErrNoRows
}

func newTestRegistry() (*Registry, *stubHistoryRepo, *stubContentRepo) {
	h := &stubHistoryRepo{rows: []db.LeadHistory{{ID: uuid.New(), ProductName: "p"}}}
	c := &stubContentRepo{lists: make(map[string]int), failFor: "brochures"}
	return NewRegistry(Repos{History: h, Content: c}, time.Minute), h, c
}

func TestOpenLoadsOnce(t *testing.T) {
	ctx := context.Background()
	reg, h, c := newTestRegistry()
	user := uuid.New()

	sess, err := reg.Open(ctx, user)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	again, _ := reg.Open(ctx, user)
	if sess != again {
		t.Error("Open should return the same session")
	}
	if h.lists != 1 || c.lists["articles"] != 1 {
		t.Errorf("history loads = %d, article loads = %d; want 1 each", h.lists, c.lists["articles"])
	}
	if len(sess.History.Entries()) != 1 {
		t.Errorf("history not loaded: %+v", sess.History.Entries())
	}
	if items := sess.Content(content.KindSocialPosts).Items(); len(items) != 1 {
		t.Errorf("social posts = %+v", items)
	}
	if items := sess.Content(content.KindBrochures).Items(); len(items) != 0 {
		t.Errorf("failed kind should be empty, got %+v", items)
	}
}

func TestOpenRetriesAfterHistoryFailure(t *testing.T) {
	ctx := context.Background()
	reg, h, _ := newTestRegistry()
	user := uuid.New()

	h.listErr = errors.New("db down")
	if _, err := reg.Open(ctx, user); err == nil {
		t.Fatal("expected open to fail while history is unavailable")
	}
	h.listErr = nil
	if _, err := reg.Open(ctx, user); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if h.lists != 2 {
		t.Errorf("history loads = %d, want 2", h.lists)
	}
}

func TestCloseAndSweep(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	idle, active := uuid.New(), uuid.New()
	reg.Open(ctx, idle)
	now = now.Add(50 * time.Second)
	reg.Open(ctx, active)
	now = now.Add(30 * time.Second)

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("Sweep closed %d, want 1", n)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d", reg.Len())
	}
	if !reg.Close(active) || reg.Close(active) {
		t.Error("Close should report true once, then false")
	}
}

func TestJanitorLifecycle(t *testing.T) {
	reg, _, _ := newTestRegistry()
	if err := reg.StartJanitor("not a schedule"); err == nil {
		t.Error("expected invalid schedule error")
	}
	if err := reg.StartJanitor("@every 1h"); err != nil {
		t.Fatalf("StartJanitor: %v", err)
	}
	if err := reg.StartJanitor("@every 1h"); err == nil {
		t.Error("second start should fail")
	}
	reg.Stop()
	reg.Stop()
}
