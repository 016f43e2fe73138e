package processor

import (
	"context"
	"errors"
	"strings"

	"portal-server/internal/store"
)

var (
	ErrBindingNotFound   = errors.New("binding not found")
	ErrBindingExists     = errors.New("binding already exists for that type and key")
	ErrUnknownBindingType = errors.New("binding type must be APP or WEB")
	ErrCustomerMissing   = errors.New("customer not found")
)

// CreateBinding registers an APP or WEB binding for a customer. The key is
// stored lowercased; WEB keys may carry a "%." prefix for suffix matches.
func (p *TenantProcessor) CreateBinding(ctx context.Context, params store.CreateBindingParams) (store.CustomerBinding, error) {
	params.Type = strings.ToUpper(strings.TrimSpace(params.Type))
	if params.Type != store.BindingTypeApp && params.Type != store.BindingTypeWeb {
		return store.CustomerBinding{}, ErrUnknownBindingType
	}
	params.CustomerCode = strings.ToLower(strings.TrimSpace(params.CustomerCode))

	if _, err := p.store.GetCustomerByCode(ctx, params.CustomerCode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CustomerBinding{}, ErrCustomerMissing
		}
		p.logger.Error(ctx, "failed to verify customer for binding", err)
		return store.CustomerBinding{}, err
	}

	binding, err := p.store.CreateBinding(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.CustomerBinding{}, ErrBindingExists
		}
		p.logger.Error(ctx, "failed to create binding", err)
		return store.CustomerBinding{}, err
	}
	return binding, nil
}

// ListBindings returns a customer's bindings, highest priority first.
func (p *TenantProcessor) ListBindings(ctx context.Context, customerCode string) ([]store.CustomerBinding, error) {
	bindings, err := p.store.ListBindingsByCustomer(ctx, strings.ToLower(customerCode))
	if err != nil {
		p.logger.Error(ctx, "failed to list bindings", err)
		return nil, err
	}
	return bindings, nil
}

// DeleteBinding removes a binding by id.
func (p *TenantProcessor) DeleteBinding(ctx context.Context, id int64) error {
	if err := p.store.DeleteBinding(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBindingNotFound
		}
		p.logger.Error(ctx, "failed to delete binding", err)
		return err
	}
	return nil
}
