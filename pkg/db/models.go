package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Lead generation outcome recorded on a history row.
const (
	HistoryStatusSuccess   = "success"
	HistoryStatusError     = "error"
	HistoryStatusCompleted = "completed"
)

// Enrichment progress of a history row.
const (
	EnrichmentNotStarted = "not_started"
	EnrichmentInProgress = "in_progress"
	EnrichmentCompleted  = "completed"
)

type User struct {
	ID           uuid.UUID `db:"id"`            // primary key, auto-generated UUID
	Username     string    `db:"username"`      // unique username
	Email        string    `db:"email"`         // unique email
	PasswordHash string    `db:"password_hash"` // bcrypt hash
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// LeadHistory is one past lead generation request and its outcome (table lead_history).
type LeadHistory struct {
	ID                   uuid.UUID      `db:"id"`
	UserID               uuid.UUID      `db:"user_id"`
	ProductName          string         `db:"product_name"`
	ProductDescription   string         `db:"product_description"`
	Country              string         `db:"country"`
	State                string         `db:"state"`
	Industries           pq.StringArray `db:"industries"`
	CompanySize          pq.StringArray `db:"company_size"`
	AdditionalIndustries string         `db:"additional_industries"`
	Status               string         `db:"status"`
	SheetID              string         `db:"sheet_id"`
	SheetLink            string         `db:"sheet_link"`
	ErrorMessage         string         `db:"error_message"`
	LeadsCount           int            `db:"leads_count"`
	CreatedAt            time.Time      `db:"created_at"`
	EnrichmentStatus     string         `db:"enrichment_status"`
	EnrichmentTimestamp  sql.NullTime   `db:"enrichment_timestamp"`
	EnrichmentCount      int            `db:"enrichment_count"`
}

// ContentItem is a row of any of the content tables (articles, article_ideas,
// article_outlines, newsletter_outlines, social_posts, brochures).
type ContentItem struct {
	ID        uuid.UUID      `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	Title     string         `db:"title"`
	Content   string         `db:"content"`
	Metadata  types.JSONText `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// ContentPatch carries the fields an in-place content update may overwrite.
type ContentPatch struct {
	Title    *string
	Content  *string
	Metadata types.JSONText
}

// Lead is one imported row of a generated lead sheet.
type Lead struct {
	ID        uuid.UUID      `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	HistoryID uuid.UUID      `db:"history_id"`
	SheetID   string         `db:"sheet_id"`
	Data      types.JSONText `db:"data"`
	CreatedAt time.Time      `db:"created_at"`
}

// VideoProjectRow stores a serialized editor project (table video_projects).
type VideoProjectRow struct {
	ID        uuid.UUID      `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	Title     string         `db:"title"`
	Document  types.JSONText `db:"document"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}
