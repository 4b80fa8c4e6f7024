package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// VideoProjectRepo persists editor projects as JSON documents.
type VideoProjectRepo struct {
	DB *sqlx.DB
}

// Save inserts or overwrites the project. A row owned by another user is left
// untouched and reported as sql.ErrNoRows.
func (r *VideoProjectRepo) Save(ctx context.Context, row *db.VideoProjectRow) (*db.VideoProjectRow, error) {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	query := `
		INSERT INTO video_projects (id, user_id, title, document, created_at, updated_at)
		VALUES (:id, :user_id, :title, :document, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
		WHERE video_projects.user_id = EXCLUDED.user_id
		RETURNING id, user_id, title, document, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, r.DB, query, row)
	if err != nil {
		log.Errorf("Error saving video project '%s': %v", row.ID, err)
		return nil, fmt.Errorf("failed to save video project: %w", err)
	}
	defer rows.Close()

	saved := &db.VideoProjectRow{}
	found, err := scanReturned(rows, saved)
	if err != nil {
		return nil, fmt.Errorf("error scanning video project: %w", err)
	}
	if !found {
		log.Warnf("Video project '%s' belongs to another user; save skipped.", row.ID)
		return nil, sql.ErrNoRows
	}
	return saved, nil
}

// Find returns sql.ErrNoRows when the project is missing or not owned by userID.
func (r *VideoProjectRepo) Find(ctx context.Context, userID, id uuid.UUID) (*db.VideoProjectRow, error) {
	row := &db.VideoProjectRow{}
	query := `SELECT id, user_id, title, document, created_at, updated_at FROM video_projects WHERE id = $1 AND user_id = $2`
	if err := r.DB.GetContext(ctx, row, query, id, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("Error finding video project '%s': %v", id, err)
		}
		return nil, err
	}
	return row, nil
}
