package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// LeadRepo stores rows imported from generated lead sheets.
type LeadRepo struct {
	DB *sqlx.DB
}

// ReplaceForHistory swaps the leads of one history entry for the given rows
// in a single transaction, so re-importing a sheet never duplicates leads.
func (r *LeadRepo) ReplaceForHistory(ctx context.Context, userID, historyID uuid.UUID, leads []db.Lead) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lead import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE user_id = $1 AND history_id = $2`, userID, historyID); err != nil {
		log.Errorf("Error clearing leads for history entry '%s': %v", historyID, err)
		return fmt.Errorf("failed to clear previous leads: %w", err)
	}

	now := time.Now().UTC()
	for i := range leads {
		lead := &leads[i]
		if lead.ID == uuid.Nil {
			lead.ID = uuid.New()
		}
		lead.UserID = userID
		lead.HistoryID = historyID
		lead.CreatedAt = now
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO leads (id, user_id, history_id, sheet_id, data, created_at)
			VALUES (:id, :user_id, :history_id, :sheet_id, :data, :created_at)`, lead)
		if err != nil {
			log.Errorf("Error inserting lead %d for history entry '%s': %v", i, historyID, err)
			return fmt.Errorf("failed to insert lead: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lead import: %w", err)
	}
	log.Infof("Imported %d leads for history entry %s.", len(leads), historyID)
	return nil
}

// ListByHistory returns the imported leads of one history entry.
func (r *LeadRepo) ListByHistory(ctx context.Context, userID, historyID uuid.UUID) ([]db.Lead, error) {
	var leads []db.Lead
	query := `SELECT id, user_id, history_id, sheet_id, data, created_at FROM leads
		WHERE user_id = $1 AND history_id = $2 ORDER BY created_at ASC`
	if err := r.DB.SelectContext(ctx, &leads, query, userID, historyID); err != nil {
		return nil, fmt.Errorf("error listing leads: %w", err)
	}
	return leads, nil
}
