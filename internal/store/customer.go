package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a tenant organization. Code is the tenant partition
// key across all relational tables and document-store fields.
type Customer struct {
	Code            string          `db:"code" json:"code"`
	Name            string          `db:"name" json:"name"`
	Domain          *string         `db:"domain" json:"domain,omitempty"`
	IntegrationType *string         `db:"integration_type" json:"integrationType,omitempty"`
	RsPercent       decimal.Decimal `db:"rs_percent" json:"rsPercent"`
	CpiValue        decimal.Decimal `db:"cpi_value" json:"cpiValue"`
	Note            *string         `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

const sqlSelectCustomer = `
SELECT code, name, domain, integration_type, rs_percent, cpi_value, note, created_at, updated_at
FROM customers`

// CreateCustomerParams represents parameters for creating a customer
type CreateCustomerParams struct {
	Code            string
	Name            string
	Domain          *string
	IntegrationType *string
	RsPercent       decimal.Decimal
	CpiValue        decimal.Decimal
	Note            *string
}

// CreateCustomer inserts a new customer row. A conflicting code returns
// ErrDuplicate and leaves the existing row untouched.
func (s Store) CreateCustomer(ctx context.Context, params CreateCustomerParams) (Customer, error) {
	var customer Customer
	query := `
		INSERT INTO customers (code, name, domain, integration_type, rs_percent, cpi_value, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING code, name, domain, integration_type, rs_percent, cpi_value, note, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &customer, query,
		params.Code,
		params.Name,
		params.Domain,
		params.IntegrationType,
		params.RsPercent,
		params.CpiValue,
		params.Note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Customer{}, ErrDuplicate
		}
		return Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

// GetCustomerByCode retrieves a customer by its code
func (s Store) GetCustomerByCode(ctx context.Context, code string) (Customer, error) {
	var customer Customer
	query := sqlSelectCustomer + ` WHERE code = $1`
	err := s.db.GetContext(ctx, &customer, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

// GetCustomerByDomain retrieves a customer by its registered domain,
// case-insensitively.
func (s Store) GetCustomerByDomain(ctx context.Context, domain string) (Customer, error) {
	var customer Customer
	query := sqlSelectCustomer + ` WHERE lower(domain) = lower($1)`
	err := s.db.GetContext(ctx, &customer, query, domain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("failed to get customer by domain: %w", err)
	}
	return customer, nil
}

// CustomerCodeExists reports whether a customer code is taken,
// case-insensitively.
func (s Store) CustomerCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM customers WHERE lower(code) = lower($1))`
	if err := s.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("failed to check customer code: %w", err)
	}
	return exists, nil
}

// ListCustomers returns customers ordered by code. A non-empty q filters
// by code or name substring, case-insensitively.
func (s Store) ListCustomers(ctx context.Context, q string) ([]Customer, error) {
	customers := []Customer{}
	if q == "" {
		query := sqlSelectCustomer + ` ORDER BY code ASC`
		if err := s.db.SelectContext(ctx, &customers, query); err != nil {
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		return customers, nil
	}
	query := sqlSelectCustomer + `
	WHERE code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
	ORDER BY code ASC`
	if err := s.db.SelectContext(ctx, &customers, query, q); err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	return customers, nil
}

// UpdateCustomerParams represents a partial customer update; nil fields
// are left unchanged.
type UpdateCustomerParams struct {
	Name            *string
	Domain          *string
	IntegrationType *string
	RsPercent       *decimal.Decimal
	CpiValue        *decimal.Decimal
	Note            *string
}

// UpdateCustomer applies a partial update and returns the updated row.
func (s Store) UpdateCustomer(ctx context.Context, code string, params UpdateCustomerParams) (Customer, error) {
	updates := []string{}
	args := []interface{}{}
	argPos := 1

	appendSet := func(column string, value interface{}) {
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.Domain != nil {
		appendSet("domain", *params.Domain)
	}
	if params.IntegrationType != nil {
		appendSet("integration_type", *params.IntegrationType)
	}
	if params.RsPercent != nil {
		appendSet("rs_percent", *params.RsPercent)
	}
	if params.CpiValue != nil {
		appendSet("cpi_value", *params.CpiValue)
	}
	if params.Note != nil {
		appendSet("note", *params.Note)
	}

	if len(updates) == 0 {
		return s.GetCustomerByCode(ctx, code)
	}

	appendSet("updated_at", time.Now())

	query := fmt.Sprintf(`
		UPDATE customers SET %s
		WHERE code = $%d
		RETURNING code, name, domain, integration_type, rs_percent, cpi_value, note, created_at, updated_at`,
		joinUpdates(updates), argPos)
	args = append(args, code)

	var customer Customer
	err := s.db.GetContext(ctx, &customer, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("failed to update customer: %w", err)
	}
	return customer, nil
}

// DeleteCustomer removes a customer row. Missing codes return ErrNotFound.
func (s Store) DeleteCustomer(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func joinUpdates(updates []string) string {
	out := ""
	for i, u := range updates {
		if i > 0 {
			out += ", "
		}
		out += u
	}
	return out
}
