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

const leadHistoryColumns = `id, user_id, product_name, product_description, country, state, industries,
	company_size, additional_industries, status, sheet_id, sheet_link, error_message, leads_count,
	created_at, enrichment_status, enrichment_timestamp, enrichment_count`

// LeadHistoryRepo reads and writes lead_history. Every statement is scoped by user_id.
type LeadHistoryRepo struct {
	DB *sqlx.DB
}

// Insert stores a new history row. A zero ID is replaced by a fresh UUID.
func (r *LeadHistoryRepo) Insert(ctx context.Context, entry *db.LeadHistory) (*db.LeadHistory, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.EnrichmentStatus == "" {
		entry.EnrichmentStatus = db.EnrichmentNotStarted
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_history (id, user_id, product_name, product_description, country, state, industries,
			company_size, additional_industries, status, sheet_id, sheet_link, error_message, leads_count,
			created_at, enrichment_status, enrichment_count)
		VALUES (:id, :user_id, :product_name, :product_description, :country, :state, :industries,
			:company_size, :additional_industries, :status, :sheet_id, :sheet_link, :error_message, :leads_count,
			:created_at, :enrichment_status, :enrichment_count)
		RETURNING ` + leadHistoryColumns

	rows, err := sqlx.NamedQueryContext(ctx, r.DB, query, entry)
	if err != nil {
		log.Errorf("Error creating lead history entry: %v", err)
		return nil, fmt.Errorf("failed to create history entry: %w", err)
	}
	defer rows.Close()

	created := &db.LeadHistory{}
	found, err := scanReturned(rows, created)
	if err != nil {
		return nil, fmt.Errorf("error scanning history entry after creation: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no rows returned after history entry creation")
	}

	log.Infof("Lead history entry %s created for user %s (status %s).", created.ID, created.UserID, created.Status)
	return created, nil
}

// ListByUser returns the user's whole history, newest first.
func (r *LeadHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]db.LeadHistory, error) {
	var entries []db.LeadHistory
	query := `SELECT ` + leadHistoryColumns + ` FROM lead_history WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.DB.SelectContext(ctx, &entries, query, userID); err != nil {
		log.Errorf("Error listing lead history for user '%s': %v", userID, err)
		return nil, fmt.Errorf("error listing history: %w", err)
	}
	return entries, nil
}

// FindByID returns sql.ErrNoRows when the row is missing or owned by someone else.
func (r *LeadHistoryRepo) FindByID(ctx context.Context, userID, id uuid.UUID) (*db.LeadHistory, error) {
	entry := &db.LeadHistory{}
	query := `SELECT ` + leadHistoryColumns + ` FROM lead_history WHERE id = $1 AND user_id = $2`
	if err := r.DB.GetContext(ctx, entry, query, id, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("Error finding history entry '%s': %v", id, err)
		}
		return nil, err
	}
	return entry, nil
}

// Delete returns sql.ErrNoRows when nothing was deleted.
func (r *LeadHistoryRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM lead_history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		log.Errorf("Error deleting history entry '%s' for user '%s': %v", id, userID, err)
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		log.Warnf("No history entry '%s' for user '%s' to delete.", id, userID)
		return sql.ErrNoRows
	}
	log.Infof("History entry %s deleted.", id)
	return nil
}

// UpdateEnrichment writes the status and timestamp and bumps enrichment_count
// for every in_progress write. The count lives here, not in a trigger.
func (r *LeadHistoryRepo) UpdateEnrichment(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*db.LeadHistory, error) {
	query := `
		UPDATE lead_history
		SET enrichment_status = $3,
			enrichment_timestamp = $4,
			enrichment_count = enrichment_count + CASE WHEN $3::text = 'in_progress' THEN 1 ELSE 0 END
		WHERE id = $1 AND user_id = $2
		RETURNING ` + leadHistoryColumns

	entry := &db.LeadHistory{}
	if err := r.DB.GetContext(ctx, entry, query, id, userID, status, at); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("Error updating enrichment for history entry '%s': %v", id, err)
		}
		return nil, err
	}
	log.Infof("History entry %s enrichment status set to %s (count %d).", id, entry.EnrichmentStatus, entry.EnrichmentCount)
	return entry, nil
}

// UpdateOutcome overwrites status and leads_count, e.g. after a lead import.
func (r *LeadHistoryRepo) UpdateOutcome(ctx context.Context, userID, id uuid.UUID, status string, leadsCount int) (*db.LeadHistory, error) {
	query := `
		UPDATE lead_history SET status = $3, leads_count = $4
		WHERE id = $1 AND user_id = $2
		RETURNING ` + leadHistoryColumns

	entry := &db.LeadHistory{}
	if err := r.DB.GetContext(ctx, entry, query, id, userID, status, leadsCount); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("Error updating outcome for history entry '%s': %v", id, err)
		}
		return nil, err
	}
	return entry, nil
}
