package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// UserRepo reads and writes the users table.
type UserRepo struct {
	DB *sqlx.DB
}

// Create inserts a user and fills in the generated id and timestamps.
func (r *UserRepo) Create(ctx context.Context, user *db.User) (*db.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (:username, :email, :password_hash)
		RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, r.DB, query, user)
	if err != nil {
		log.Errorf("Error creating user: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	defer rows.Close()

	found, err := scanReturned(rows, user)
	if err != nil {
		log.Errorf("Error scanning user data after creation: %v", err)
		return nil, fmt.Errorf("error scanning user after creation: %w", err)
	}
	if !found {
		log.Error("No rows returned after user creation.")
		return nil, fmt.Errorf("no rows returned after user creation")
	}

	log.Infof("User %s created with ID: %s", user.Email, user.ID.String())
	return user, nil
}

// FindByEmail returns nil, nil when no user has that email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*db.User, error) {
	user := &db.User{}
	query := `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	if err := r.DB.GetContext(ctx, user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("User with email '%s' not found.", email)
			return nil, nil
		}
		log.Errorf("Error finding user by email '%s': %v", email, err)
		return nil, err
	}
	return user, nil
}

// FindByID returns nil, nil when the user does not exist.
func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	user := &db.User{}
	query := `SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	if err := r.DB.GetContext(ctx, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("User with ID '%s' not found.", id.String())
			return nil, nil
		}
		log.Errorf("Error finding user by ID '%s': %v", id.String(), err)
		return nil, err
	}
	return user, nil
}

// Delete removes the user. Rows owned by the user are removed by ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.Errorf("Error deleting user with ID '%s': %v", id.String(), err)
		return err
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		log.Warnf("No user found with ID '%s' for deletion.", id.String())
		return sql.ErrNoRows
	}

	log.Infof("User with ID '%s' deleted.", id.String())
	return nil
}
