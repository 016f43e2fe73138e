package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Admin roles.
const (
	RoleAdmin  = "ADMIN"
	RoleEditor = "EDITOR"
)

// AdminUser is a back-office account.
type AdminUser struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// CustomerUser is a customer-portal account scoped to a customer code.
type CustomerUser struct {
	ID           int64      `db:"id" json:"id"`
	CustomerCode string     `db:"customer_code" json:"customerCode"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

const sqlSelectAdminUser = `
	SELECT id, username, password_hash, name, role, is_active, last_login_at, created_at, updated_at
	FROM admin_users
`

const sqlSelectCustomerUser = `
	SELECT id, customer_code, username, password_hash, name, email, is_active, last_login_at, created_at, updated_at
	FROM customer_users
`

// CountAdminUsers returns the total number of admin accounts, active or not.
// The signup flow uses it to detect the bootstrap case.
func (s Store) CountAdminUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admin_users`)
	if err != nil {
		return 0, fmt.Errorf("failed to count admin users: %w", err)
	}
	return count, nil
}

// CreateAdminUserParams represents parameters for creating an admin user
type CreateAdminUserParams struct {
	Username     string
	PasswordHash string
	Name         string
	Role         string
}

// CreateAdminUser inserts an admin account. Duplicate usernames return
// ErrDuplicate.
func (s Store) CreateAdminUser(ctx context.Context, params CreateAdminUserParams) (AdminUser, error) {
	var user AdminUser
	query := `
		INSERT INTO admin_users (username, password_hash, name, role, is_active)
		VALUES (lower($1), $2, $3, $4, TRUE)
		RETURNING id, username, password_hash, name, role, is_active, last_login_at, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &user, query,
		params.Username, params.PasswordHash, params.Name, params.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return AdminUser{}, ErrDuplicate
		}
		return AdminUser{}, fmt.Errorf("failed to create admin user: %w", err)
	}
	return user, nil
}

// GetActiveAdminByUsername fetches an active admin account by username,
// case-insensitively.
func (s Store) GetActiveAdminByUsername(ctx context.Context, username string) (AdminUser, error) {
	var user AdminUser
	query := sqlSelectAdminUser + ` WHERE lower(username) = lower($1) AND is_active`
	err := s.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUser{}, ErrNotFound
		}
		return AdminUser{}, fmt.Errorf("failed to get admin user: %w", err)
	}
	return user, nil
}

// GetAdminByID fetches an admin account by id.
func (s Store) GetAdminByID(ctx context.Context, id int64) (AdminUser, error) {
	var user AdminUser
	query := sqlSelectAdminUser + ` WHERE id = $1`
	err := s.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUser{}, ErrNotFound
		}
		return AdminUser{}, fmt.Errorf("failed to get admin user: %w", err)
	}
	return user, nil
}

// TouchAdminLastLogin records a successful admin login.
func (s Store) TouchAdminLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE admin_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update admin last login: %w", err)
	}
	return nil
}

// CreateCustomerUserParams represents parameters for creating a customer user
type CreateCustomerUserParams struct {
	CustomerCode string
	Username     string
	PasswordHash string
	Name         string
	Email        *string
}

// CreateCustomerUser inserts a customer-portal account. Usernames are
// unique per customer; duplicates return ErrDuplicate.
func (s Store) CreateCustomerUser(ctx context.Context, params CreateCustomerUserParams) (CustomerUser, error) {
	var user CustomerUser
	query := `
		INSERT INTO customer_users (customer_code, username, password_hash, name, email, is_active)
		VALUES ($1, lower($2), $3, $4, $5, TRUE)
		RETURNING id, customer_code, username, password_hash, name, email, is_active, last_login_at, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &user, query,
		params.CustomerCode, params.Username, params.PasswordHash, params.Name, params.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return CustomerUser{}, ErrDuplicate
		}
		return CustomerUser{}, fmt.Errorf("failed to create customer user: %w", err)
	}
	return user, nil
}

// GetActiveCustomerUser fetches an active customer account by customer code
// and username.
func (s Store) GetActiveCustomerUser(ctx context.Context, customerCode, username string) (CustomerUser, error) {
	var user CustomerUser
	query := sqlSelectCustomerUser + ` WHERE customer_code = $1 AND lower(username) = lower($2) AND is_active`
	err := s.db.GetContext(ctx, &user, query, customerCode, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CustomerUser{}, ErrNotFound
		}
		return CustomerUser{}, fmt.Errorf("failed to get customer user: %w", err)
	}
	return user, nil
}

// GetCustomerUserByID fetches a customer account by id.
func (s Store) GetCustomerUserByID(ctx context.Context, id int64) (CustomerUser, error) {
	var user CustomerUser
	query := sqlSelectCustomerUser + ` WHERE id = $1`
	err := s.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CustomerUser{}, ErrNotFound
		}
		return CustomerUser{}, fmt.Errorf("failed to get customer user: %w", err)
	}
	return user, nil
}

// CustomerUserExists reports whether any account exists for the customer
// code and username pair.
func (s Store) CustomerUserExists(ctx context.Context, customerCode, username string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM customer_users
			WHERE customer_code = $1 AND lower(username) = lower($2)
		)
	`
	if err := s.db.GetContext(ctx, &exists, query, customerCode, username); err != nil {
		return false, fmt.Errorf("failed to check customer user existence: %w", err)
	}
	return exists, nil
}

// TouchCustomerUserLastLogin records a successful customer login.
func (s Store) TouchCustomerUserLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE customer_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update customer user last login: %w", err)
	}
	return nil
}

// UpdateCustomerUserPassword replaces a customer account's password hash.
func (s Store) UpdateCustomerUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE customer_users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update customer user password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update customer user password: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
