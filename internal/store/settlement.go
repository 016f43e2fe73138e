package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is one customer's monthly billing row. Month is "YYYY-MM";
// range filters compare months lexicographically, which is correct for that
// format. Nullable numbers are treated as zero when summing.
type Settlement struct {
	ID           int64            `db:"id" json:"id"`
	CustomerCode string           `db:"customer_code" json:"customerCode"`
	Month        string           `db:"month" json:"month"`
	Downloads    *int64           `db:"downloads" json:"downloads,omitempty"`
	Deletes      *int64           `db:"deletes" json:"deletes,omitempty"`
	TotalAmount  *decimal.Decimal `db:"total_amount" json:"totalAmount,omitempty"`
	Currency     *string          `db:"currency" json:"currency,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}

const sqlSelectSettlement = `
	SELECT id, customer_code, month, downloads, deletes, total_amount, currency, created_at, updated_at
	FROM settlements
`

// ListSettlements returns a customer's settlement rows in ascending month
// order, bounded by the optional inclusive month range.
func (s Store) ListSettlements(ctx context.Context, customerCode, fromMonth, toMonth string) ([]Settlement, error) {
	settlements := []Settlement{}
	query := sqlSelectSettlement + ` WHERE customer_code = $1`
	args := []any{customerCode}
	if fromMonth != "" {
		args = append(args, fromMonth)
		query += fmt.Sprintf(" AND month >= $%d", len(args))
	}
	if toMonth != "" {
		args = append(args, toMonth)
		query += fmt.Sprintf(" AND month <= $%d", len(args))
	}
	query += ` ORDER BY month ASC`
	if err := s.db.SelectContext(ctx, &settlements, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

// UpsertSettlementParams represents parameters for writing a settlement row
type UpsertSettlementParams struct {
	CustomerCode string
	Month        string
	Downloads    *int64
	Deletes      *int64
	TotalAmount  *decimal.Decimal
	Currency     *string
}

// UpsertSettlement writes a customer's settlement for a month, replacing an
// existing row for the same (customer_code, month).
func (s Store) UpsertSettlement(ctx context.Context, params UpsertSettlementParams) (Settlement, error) {
	var settlement Settlement
	query := `
		INSERT INTO settlements (customer_code, month, downloads, deletes, total_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_code, month) DO UPDATE SET
			downloads = EXCLUDED.downloads,
			deletes = EXCLUDED.deletes,
			total_amount = EXCLUDED.total_amount,
			currency = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING id, customer_code, month, downloads, deletes, total_amount, currency, created_at, updated_at
	`
	err := s.db.GetContext(ctx, &settlement, query,
		params.CustomerCode, params.Month, params.Downloads,
		params.Deletes, params.TotalAmount, params.Currency)
	if err != nil {
		return Settlement{}, fmt.Errorf("failed to upsert settlement: %w", err)
	}
	return settlement, nil
}
