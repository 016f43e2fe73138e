package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// CustomerStore defines the database operations required by CustomerProcessor
type CustomerStore interface {
	CreateCustomer(ctx context.Context, params store.CreateCustomerParams) (store.Customer, error)
	GetCustomerByCode(ctx context.Context, code string) (store.Customer, error)
	CustomerCodeExists(ctx context.Context, code string) (bool, error)
	ListCustomers(ctx context.Context, search string) ([]store.Customer, error)
	UpdateCustomer(ctx context.Context, code string, params store.UpdateCustomerParams) (store.Customer, error)
	DeleteCustomer(ctx context.Context, code string) error
	ListSettlements(ctx context.Context, customerCode, fromMonth, toMonth string) ([]store.Settlement, error)
	UpsertSettlement(ctx context.Context, params store.UpsertSettlementParams) (store.Settlement, error)
	CreateEventLog(ctx context.Context, params store.CreateEventLogParams) (store.EventLog, error)
}

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrCustomerCodeExists = errors.New("customer code already exists")
	ErrBlankCustomerCode  = errors.New("customer code must not be blank")
)

type CustomerProcessor struct {
	store  CustomerStore
	logger *observability.Logger
}

func New(store CustomerStore, logger *observability.Logger) CustomerProcessor {
	return CustomerProcessor{store: store, logger: logger}
}

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Code            string
	Name            string
	Domain          *string
	IntegrationType *string
	RsPercent       decimal.Decimal
	CpiValue        decimal.Decimal
	Note            *string
}

// CreateCustomer creates a customer. Codes are trimmed and lowercased; a
// conflicting code fails without touching the existing row.
func (p *CustomerProcessor) CreateCustomer(ctx context.Context, req CreateCustomerRequest, actor string) (store.Customer, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		return store.Customer{}, ErrBlankCustomerCode
	}
	ctx = observability.WithFields(ctx, observability.Field{Key: "customer_code", Value: code})

	customer, err := p.store.CreateCustomer(ctx, store.CreateCustomerParams{
		Code:            code,
		Name:            req.Name,
		Domain:          req.Domain,
		IntegrationType: req.IntegrationType,
		RsPercent:       req.RsPercent,
		CpiValue:        req.CpiValue,
		Note:            req.Note,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.Customer{}, ErrCustomerCodeExists
		}
		p.logger.Error(ctx, "failed to create customer", err)
		return store.Customer{}, err
	}

	p.audit(ctx, code, "CUSTOMER_CREATED", actor, customer)
	p.logger.Info(ctx, "customer created")
	return customer, nil
}

// GetCustomer fetches a customer by code.
func (p *CustomerProcessor) GetCustomer(ctx context.Context, code string) (store.Customer, error) {
	customer, err := p.store.GetCustomerByCode(ctx, strings.ToLower(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Customer{}, ErrCustomerNotFound
		}
		p.logger.Error(ctx, "failed to get customer", err)
		return store.Customer{}, err
	}
	return customer, nil
}

// CustomerExists reports whether a code is taken, case-insensitively.
func (p *CustomerProcessor) CustomerExists(ctx context.Context, code string) (bool, error) {
	exists, err := p.store.CustomerCodeExists(ctx, strings.TrimSpace(code))
	if err != nil {
		p.logger.Error(ctx, "failed to check customer code", err)
		return false, err
	}
	return exists, nil
}

// ListCustomers returns customers ordered by code, optionally filtered by
// a search term over code and name.
func (p *CustomerProcessor) ListCustomers(ctx context.Context, search string) ([]store.Customer, error) {
	customers, err := p.store.ListCustomers(ctx, strings.TrimSpace(search))
	if err != nil {
		p.logger.Error(ctx, "failed to list customers", err)
		return nil, err
	}
	return customers, nil
}

// UpdateCustomer applies a partial update.
func (p *CustomerProcessor) UpdateCustomer(ctx context.Context, code string, params store.UpdateCustomerParams, actor string) (store.Customer, error) {
	code = strings.ToLower(code)
	ctx = observability.WithFields(ctx, observability.Field{Key: "customer_code", Value: code})

	customer, err := p.store.UpdateCustomer(ctx, code, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Customer{}, ErrCustomerNotFound
		}
		p.logger.Error(ctx, "failed to update customer", err)
		return store.Customer{}, err
	}

	p.audit(ctx, code, "CUSTOMER_UPDATED", actor, params)
	return customer, nil
}

// DeleteCustomer removes a customer row. Documents referencing the code in
// other stores are left behind; see the admin runbook for cleanup.
func (p *CustomerProcessor) DeleteCustomer(ctx context.Context, code string, actor string) error {
	code = strings.ToLower(code)
	ctx = observability.WithFields(ctx, observability.Field{Key: "customer_code", Value: code})

	if err := p.store.DeleteCustomer(ctx, code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCustomerNotFound
		}
		p.logger.Error(ctx, "failed to delete customer", err)
		return err
	}

	p.audit(ctx, code, "CUSTOMER_DELETED", actor, nil)
	p.logger.Info(ctx, "customer deleted")
	return nil
}

// MonthlySettlement is one month of a customer's settlement report.
type MonthlySettlement struct {
	Month     string          `json:"month"`
	Downloads int64           `json:"downloads"`
	Deletes   int64           `json:"deletes"`
	AmountDue decimal.Decimal `json:"amountDue"`
	Currency  string          `json:"currency,omitempty"`
}

// SettlementStats is a customer's aggregated settlement report over an
// inclusive month range.
type SettlementStats struct {
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	TotalDownloads int64               `json:"totalDownloads"`
	TotalDeletes   int64               `json:"totalDeletes"`
	TotalAmountDue decimal.Decimal     `json:"totalAmountDue"`
	Monthly        []MonthlySettlement `json:"monthly"`
}

// GetSettlementStats aggregates a customer's settlement rows. Null counts
// and amounts contribute zero; months are "YYYY-MM" strings so the range
// comparison is plain string ordering.
func (p *CustomerProcessor) GetSettlementStats(ctx context.Context, code, fromMonth, toMonth string) (SettlementStats, error) {
	customer, err := p.GetCustomer(ctx, code)
	if err != nil {
		return SettlementStats{}, err
	}

	rows, err := p.store.ListSettlements(ctx, customer.Code, fromMonth, toMonth)
	if err != nil {
		p.logger.Error(ctx, "failed to list settlements", err)
		return SettlementStats{}, err
	}

	stats := SettlementStats{
		Code:           customer.Code,
		Name:           customer.Name,
		TotalAmountDue: decimal.Zero,
		Monthly:        make([]MonthlySettlement, 0, len(rows)),
	}
	for _, row := range rows {
		monthly := MonthlySettlement{Month: row.Month, AmountDue: decimal.Zero}
		if row.Downloads != nil {
			monthly.Downloads = *row.Downloads
		}
		if row.Deletes != nil {
			monthly.Deletes = *row.Deletes
		}
		if row.TotalAmount != nil {
			monthly.AmountDue = *row.TotalAmount
		}
		if row.Currency != nil {
			monthly.Currency = *row.Currency
		}
		stats.TotalDownloads += monthly.Downloads
		stats.TotalDeletes += monthly.Deletes
		stats.TotalAmountDue = stats.TotalAmountDue.Add(monthly.AmountDue)
		stats.Monthly = append(stats.Monthly, monthly)
	}
	return stats, nil
}

// UpsertSettlement writes a customer's settlement row for a month.
func (p *CustomerProcessor) UpsertSettlement(ctx context.Context, params store.UpsertSettlementParams) (store.Settlement, error) {
	if _, err := p.GetCustomer(ctx, params.CustomerCode); err != nil {
		return store.Settlement{}, err
	}
	params.CustomerCode = strings.ToLower(params.CustomerCode)
	settlement, err := p.store.UpsertSettlement(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to upsert settlement", err)
		return store.Settlement{}, err
	}
	return settlement, nil
}

// audit appends an event-log row. Audit failures are logged and swallowed;
// they never fail the mutation they describe.
func (p *CustomerProcessor) audit(ctx context.Context, code, action, actor string, detail any) {
	var memo *string
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			s := string(raw)
			memo = &s
		}
	}
	objectType := "CUSTOMER"
	_, err := p.store.CreateEventLog(ctx, store.CreateEventLogParams{
		CustomerCode: &code,
		Action:       action,
		ObjectType:   &objectType,
		ObjectID:     &code,
		Actor:        &actor,
		Memo:         memo,
	})
	if err != nil {
		p.logger.WarnWithError(ctx, "failed to write audit log", err)
	}
}
