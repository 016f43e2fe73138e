package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Binding types for tenant resolution.
const (
	BindingTypeApp = "APP"
	BindingTypeWeb = "WEB"
)

// CustomerBinding maps inbound traffic (an app package name or a web host
// pattern) to a customer code. (type, key) pairs are unique; on overlapping
// matches the highest priority wins.
type CustomerBinding struct {
	ID           int64     `db:"id" json:"id"`
	CustomerCode string    `db:"customer_code" json:"customerCode"`
	Type         string    `db:"type" json:"type"`
	Key          string    `db:"key" json:"key"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	Priority     int       `db:"priority" json:"priority"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// BindingMatch is a resolved binding joined with its customer.
type BindingMatch struct {
	CustomerCode string `db:"customer_code"`
	CustomerName string `db:"customer_name"`
	Key          string `db:"key"`
}

// FindAppBinding returns the highest-priority active APP binding whose key
// equals the package name, case-insensitively.
func (s Store) FindAppBinding(ctx context.Context, pkg string) (BindingMatch, error) {
	var match BindingMatch
	query := `
		SELECT b.customer_code, c.name AS customer_name, b.key
		FROM customer_bindings b
		JOIN customers c ON c.code = b.customer_code
		WHERE b.type = $1 AND lower(b.key) = lower($2) AND b.is_active
		ORDER BY b.priority DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &match, query, BindingTypeApp, pkg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BindingMatch{}, ErrNotFound
		}
		return BindingMatch{}, fmt.Errorf("failed to find app binding: %w", err)
	}
	return match, nil
}

// FindWebBinding returns the highest-priority active WEB binding whose key
// equals the host or whose wildcard pattern (e.g. "%.example.com") matches it.
func (s Store) FindWebBinding(ctx context.Context, host string) (BindingMatch, error) {
	var match BindingMatch
	query := `
		SELECT b.customer_code, c.name AS customer_name, b.key
		FROM customer_bindings b
		JOIN customers c ON c.code = b.customer_code
		WHERE b.type = $1 AND b.is_active
		  AND (lower(b.key) = lower($2) OR lower($2) LIKE lower(b.key))
		ORDER BY b.priority DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &match, query, BindingTypeWeb, host)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BindingMatch{}, ErrNotFound
		}
		return BindingMatch{}, fmt.Errorf("failed to find web binding: %w", err)
	}
	return match, nil
}

// CreateBindingParams represents parameters for creating a binding
type CreateBindingParams struct {
	CustomerCode string
	Type         string
	Key          string
	Priority     int
	IsActive     bool
}

// CreateBinding inserts a binding. Keys are stored lowercased; a duplicate
// (type, key) pair returns ErrDuplicate.
func (s Store) CreateBinding(ctx context.Context, params CreateBindingParams) (CustomerBinding, error) {
	var binding CustomerBinding
	query := `
		INSERT INTO customer_bindings (customer_code, type, key, priority, is_active)
		VALUES ($1, $2, lower($3), $4, $5)
		RETURNING id, customer_code, type, key, is_active, priority, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &binding, query,
		params.CustomerCode, params.Type, params.Key, params.Priority, params.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return CustomerBinding{}, ErrDuplicate
		}
		return CustomerBinding{}, fmt.Errorf("failed to create binding: %w", err)
	}
	return binding, nil
}

// ListBindingsByCustomer returns a customer's bindings, highest priority first.
func (s Store) ListBindingsByCustomer(ctx context.Context, customerCode string) ([]CustomerBinding, error) {
	bindings := []CustomerBinding{}
	query := `
		SELECT id, customer_code, type, key, is_active, priority, created_at, updated_at
		FROM customer_bindings
		WHERE customer_code = $1
		ORDER BY priority DESC, id ASC
	`
	if err := s.db.SelectContext(ctx, &bindings, query, customerCode); err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	return bindings, nil
}

// DeleteBinding removes a binding by id.
func (s Store) DeleteBinding(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customer_bindings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
