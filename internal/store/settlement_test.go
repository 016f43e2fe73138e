package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"portal-server/internal/observability"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewWithDB(sqlx.NewDb(mockDB, "sqlmock"), observability.NewLogger()), mock
}

func settlementColumns() []string {
	return []string{"id", "customer_code", "month", "downloads", "deletes", "total_amount", "currency", "created_at", "updated_at"}
}

func TestListSettlements_MonthRange(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM settlements\s+WHERE customer_code = \$1 AND month >= \$2 AND month <= \$3 ORDER BY month ASC`).
		WithArgs("acme", "2026-01", "2026-03").
		WillReturnRows(sqlmock.NewRows(settlementColumns()).
			AddRow(1, "acme", "2026-01", 100, 5, "1250.50", "USD", now, now).
			AddRow(2, "acme", "2026-02", nil, nil, nil, nil, now, now))

	settlements, err := s.ListSettlements(context.Background(), "acme", "2026-01", "2026-03")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(settlements) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(settlements))
	}
	if settlements[0].Downloads == nil || *settlements[0].Downloads != 100 {
		t.Errorf("expected downloads 100, got %v", settlements[0].Downloads)
	}
	if !settlements[0].TotalAmount.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("expected amount 1250.50, got %v", settlements[0].TotalAmount)
	}
	if settlements[1].Downloads != nil || settlements[1].TotalAmount != nil {
		t.Errorf("expected null columns to stay nil, got %+v", settlements[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListSettlements_NoRangeOmitsBounds(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM settlements\s+WHERE customer_code = \$1 ORDER BY month ASC`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(settlementColumns()))

	settlements, err := s.ListSettlements(context.Background(), "acme", "", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(settlements) != 0 {
		t.Errorf("expected empty result, got %d rows", len(settlements))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertSettlement(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	downloads := int64(42)
	amount := decimal.RequireFromString("9.99")
	currency := "USD"

	mock.ExpectQuery(`INSERT INTO settlements (.+) ON CONFLICT \(customer_code, month\) DO UPDATE`).
		WithArgs("acme", "2026-02", downloads, nil, "9.99", currency).
		WillReturnRows(sqlmock.NewRows(settlementColumns()).
			AddRow(7, "acme", "2026-02", 42, nil, "9.99", "USD", now, now))

	settlement, err := s.UpsertSettlement(context.Background(), UpsertSettlementParams{
		CustomerCode: "acme",
		Month:        "2026-02",
		Downloads:    &downloads,
		TotalAmount:  &amount,
		Currency:     &currency,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settlement.ID != 7 || settlement.Month != "2026-02" {
		t.Errorf("expected returned row, got %+v", settlement)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
