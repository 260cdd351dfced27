package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/giaoly-api/internal/models"
)

const profileColumns = `p.id, p.email, p.password_hash, p.full_name, p.active, p.last_login, p.created_at, p.updated_at, r.role`

// UserRepository provides database access for login profiles and their roles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a profile joined with its role by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.ProfileWithRole, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p JOIN user_roles r ON r.user_id = p.id WHERE LOWER(p.email) = LOWER($1) LIMIT 1`
	var profile models.ProfileWithRole
	if err := r.db.GetContext(ctx, &profile, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return &profile, nil
}

// FindByID returns a profile joined with its role by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.ProfileWithRole, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p JOIN user_roles r ON r.user_id = p.id WHERE p.id = $1 LIMIT 1`
	var profile models.ProfileWithRole
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// UpdateLastLogin updates the last_login timestamp for a profile.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE profiles SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Create inserts a profile and its role in one transaction.
func (r *UserRepository) Create(ctx context.Context, profile *models.ProfileWithRole) (err error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create profile: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertProfile = `INSERT INTO profiles (id, email, password_hash, full_name, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertProfile, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	const insertRole = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err = tx.ExecContext(ctx, insertRole, profile.ID, profile.Role); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create profile: %w", err)
	}
	return nil
}
