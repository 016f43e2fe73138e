package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Contact is a customer-side person record. (customer_code, email) is the
// natural key; upserts update in place.
type Contact struct {
	ID           int64     `db:"id" json:"id"`
	CustomerCode string    `db:"customer_code" json:"customerCode"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Position     *string   `db:"position" json:"position,omitempty"`
	IsPrimary    bool      `db:"is_primary" json:"isPrimary"`
	Note         *string   `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

const sqlSelectContact = `
	SELECT id, customer_code, name, email, phone, position, is_primary, note, created_at, updated_at
	FROM contacts
`

// UpsertContactParams represents parameters for upserting a contact
type UpsertContactParams struct {
	CustomerCode string
	Name         string
	Email        string
	Phone        *string
	Position     *string
	IsPrimary    bool
	Note         *string
}

// UpsertContact creates a contact or, if one already exists for the
// (customer_code, email) pair, updates it in place.
func (s Store) UpsertContact(ctx context.Context, params UpsertContactParams) (Contact, error) {
	var contact Contact
	query := `
		INSERT INTO contacts (customer_code, name, email, phone, position, is_primary, note)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7)
		ON CONFLICT (customer_code, email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			position = EXCLUDED.position,
			is_primary = EXCLUDED.is_primary,
			note = EXCLUDED.note,
			updated_at = NOW()
		RETURNING id, customer_code, name, email, phone, position, is_primary, note, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &contact, query,
		params.CustomerCode, params.Name, params.Email,
		params.Phone, params.Position, params.IsPrimary, params.Note)
	if err != nil {
		return Contact{}, fmt.Errorf("failed to upsert contact: %w", err)
	}
	return contact, nil
}

// GetContactByID fetches a contact by id.
func (s Store) GetContactByID(ctx context.Context, id int64) (Contact, error) {
	var contact Contact
	err := s.db.GetContext(ctx, &contact, sqlSelectContact+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

// ListContacts returns contacts, optionally filtered by customer code and a
// case-insensitive search over name and email. Primary contacts sort first.
func (s Store) ListContacts(ctx context.Context, customerCode, search string) ([]Contact, error) {
	contacts := []Contact{}
	query := sqlSelectContact + ` WHERE 1=1`
	args := []any{}
	if customerCode != "" {
		args = append(args, customerCode)
		query += fmt.Sprintf(" AND customer_code = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
	}
	query += ` ORDER BY is_primary DESC, name ASC`
	if err := s.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// FindContactByEmail fetches the contact matching the customer code and
// email, case-insensitively.
func (s Store) FindContactByEmail(ctx context.Context, customerCode, email string) (Contact, error) {
	var contact Contact
	query := sqlSelectContact + ` WHERE customer_code = $1 AND lower(email) = lower($2)`
	err := s.db.GetContext(ctx, &contact, query, customerCode, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return contact, nil
}

// FindPrimaryContact fetches the customer's primary contact. When none is
// flagged primary the oldest contact stands in.
func (s Store) FindPrimaryContact(ctx context.Context, customerCode string) (Contact, error) {
	var contact Contact
	query := sqlSelectContact + `
		WHERE customer_code = $1
		ORDER BY is_primary DESC, created_at ASC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &contact, query, customerCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("failed to find primary contact: %w", err)
	}
	return contact, nil
}

// UpdateContactParams represents parameters for updating a contact
type UpdateContactParams struct {
	Name      *string
	Phone     *string
	Position  *string
	IsPrimary *bool
	Note      *string
}

// UpdateContact applies a partial update and returns the updated row.
func (s Store) UpdateContact(ctx context.Context, id int64, params UpdateContactParams) (Contact, error) {
	updates := []string{}
	args := []any{id}
	appendSet := func(column string, value any) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.Phone != nil {
		appendSet("phone", *params.Phone)
	}
	if params.Position != nil {
		appendSet("position", *params.Position)
	}
	if params.IsPrimary != nil {
		appendSet("is_primary", *params.IsPrimary)
	}
	if params.Note != nil {
		appendSet("note", *params.Note)
	}
	if len(updates) == 0 {
		return s.GetContactByID(ctx, id)
	}
	updates = append(updates, "updated_at = NOW()")

	var contact Contact
	query := fmt.Sprintf(`
		UPDATE contacts SET %s WHERE id = $1
		RETURNING id, customer_code, name, email, phone, position, is_primary, note, created_at, updated_at
	`, joinUpdates(updates))
	err := s.db.GetContext(ctx, &contact, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

// DeleteContact removes a contact by id.
func (s Store) DeleteContact(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContactsByCustomer removes all of a customer's contacts and returns
// how many were deleted.
func (s Store) DeleteContactsByCustomer(ctx context.Context, customerCode string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE customer_code = $1`, customerCode)
	if err != nil {
		return 0, fmt.Errorf("failed to delete contacts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete contacts: %w", err)
	}
	return affected, nil
}
