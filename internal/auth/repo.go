package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-ims/procura/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindStaffByEmail(ctx context.Context, email string) (StaffUser, error)
	FindSupplierByEmail(ctx context.Context, email string) (SupplierAccount, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindStaffByEmail fetches a staff user by email.
func (r *PGRepository) FindStaffByEmail(ctx context.Context, email string) (StaffUser, error) {
	var u StaffUser
	err := r.pool.QueryRow(ctx, `SELECT user_id, username, email, role, password_hash, active, created_at
FROM users WHERE email = $1`, email).Scan(
		&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StaffUser{}, shared.ErrNotFound
		}
		return StaffUser{}, err
	}
	return u, nil
}

// FindSupplierByEmail fetches a supplier portal account by email.
func (r *PGRepository) FindSupplierByEmail(ctx context.Context, email string) (SupplierAccount, error) {
	var a SupplierAccount
	err := r.pool.QueryRow(ctx, `SELECT supplier_id, COALESCE(company_name, ''), email, password_hash, active
FROM suppliers WHERE email = $1`, email).Scan(
		&a.SupplierID, &a.CompanyName, &a.Email, &a.PasswordHash, &a.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierAccount{}, shared.ErrNotFound
		}
		return SupplierAccount{}, err
	}
	return a, nil
}

var _ Repository = (*PGRepository)(nil)
