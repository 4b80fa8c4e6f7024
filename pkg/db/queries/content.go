package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// contentTables lists the tables ContentRepo may touch. Table names are
// interpolated into SQL, so anything else is rejected.
var contentTables = map[string]bool{
	"articles":            true,
	"article_ideas":       true,
	"article_outlines":    true,
	"newsletter_outlines": true,
	"social_posts":        true,
	"brochures":           true,
}

const contentColumns = `id, user_id, title, content, metadata, created_at, updated_at`

// ContentRepo serves every content table; they share one column layout.
type ContentRepo struct {
	DB *sqlx.DB
}

func checkTable(table string) error {
	if !contentTables[table] {
		return fmt.Errorf("unknown content table %q", table)
	}
	return nil
}

// Insert is idempotent on item.ID: replaying the same insert returns the
// stored row instead of creating a second one.
func (r *ContentRepo) Insert(ctx context.Context, table string, item *db.ContentItem) (*db.ContentItem, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if len(item.Metadata) == 0 {
		item.Metadata = []byte("{}")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, content, metadata, created_at, updated_at)
		VALUES (:id, :user_id, :title, :content, :metadata, :created_at, :updated_at)
		ON CONFLICT (id) DO NOTHING
		RETURNING %s`, table, contentColumns)

	rows, err := sqlx.NamedQueryContext(ctx, r.DB, query, item)
	if err != nil {
		log.Errorf("Error inserting into %s: %v", table, err)
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	defer rows.Close()

	created := &db.ContentItem{}
	found, err := scanReturned(rows, created)
	if err != nil {
		log.Errorf("Error reading %s row after insert: %v", table, err)
		return nil, fmt.Errorf("error scanning %s row after insert: %w", table, err)
	}
	if found {
		log.Infof("Inserted %s row %s for user %s.", table, created.ID, created.UserID)
		return created, nil
	}

	// Conflict: an earlier attempt already stored this id.
	log.Debugf("Insert into %s hit existing id %s; returning stored row.", table, item.ID)
	return r.FindByID(ctx, table, item.UserID, item.ID)
}

// FindByID returns sql.ErrNoRows when the row is missing or not owned by userID.
func (r *ContentRepo) FindByID(ctx context.Context, table string, userID, id uuid.UUID) (*db.ContentItem, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	item := &db.ContentItem{}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`, contentColumns, table)
	if err := r.DB.GetContext(ctx, item, query, id, userID); err != nil {
		return nil, err
	}
	return item, nil
}

// ListByUser returns the whole table for the user, newest first. No pagination.
func (r *ContentRepo) ListByUser(ctx context.Context, table string, userID uuid.UUID) ([]db.ContentItem, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var items []db.ContentItem
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at DESC`, contentColumns, table)
	if err := r.DB.SelectContext(ctx, &items, query, userID); err != nil {
		log.Errorf("Error listing %s for user '%s': %v", table, userID, err)
		return nil, fmt.Errorf("error listing %s: %w", table, err)
	}
	return items, nil
}

// Delete returns sql.ErrNoRows when nothing was deleted.
func (r *ContentRepo) Delete(ctx context.Context, table string, userID, id uuid.UUID) error {
	if err := checkTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, table)
	result, err := r.DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		log.Errorf("Error deleting %s row '%s': %v", table, id, err)
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	log.Infof("Deleted %s row %s.", table, id)
	return nil
}

// Update overwrites only the fields set in patch. Last writer wins.
func (r *ContentRepo) Update(ctx context.Context, table string, userID, id uuid.UUID, patch db.ContentPatch) (*db.ContentItem, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = $3"}
	args := []interface{}{id, userID, time.Now().UTC()}
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Content != nil {
		args = append(args, *patch.Content)
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)))
	}
	if len(patch.Metadata) > 0 {
		args = append(args, patch.Metadata)
		sets = append(sets, fmt.Sprintf("metadata = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 AND user_id = $2 RETURNING %s`,
		table, strings.Join(sets, ", "), contentColumns)

	item := &db.ContentItem{}
	if err := r.DB.GetContext(ctx, item, query, args...); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("Error updating %s row '%s': %v", table, id, err)
		}
		return nil, err
	}
	log.Infof("Updated %s row %s.", table, id)
	return item, nil
}
