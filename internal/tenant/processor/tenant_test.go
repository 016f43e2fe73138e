package processor

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	authprocessor "portal-server/internal/auth/processor"
	"portal-server/internal/config"
	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// fakeTenantStore serves bindings and customers from maps and counts lookups.
type fakeTenantStore struct {
	appBindings map[string]store.BindingMatch
	webBindings map[string]store.BindingMatch
	byDomain    map[string]store.Customer
	byCode      map[string]store.Customer

	appLookups int
	webLookups int
}

func (f *fakeTenantStore) FindAppBinding(ctx context.Context, pkg string) (store.BindingMatch, error) {
	f.appLookups++
	if match, ok := f.appBindings[pkg]; ok {
		return match, nil
	}
	return store.BindingMatch{}, store.ErrNotFound
}

func (f *fakeTenantStore) FindWebBinding(ctx context.Context, host string) (store.BindingMatch, error) {
	f.webLookups++
	if match, ok := f.webBindings[host]; ok {
		return match, nil
	}
	return store.BindingMatch{}, store.ErrNotFound
}

func (f *fakeTenantStore) GetCustomerByDomain(ctx context.Context, domain string) (store.Customer, error) {
	if customer, ok := f.byDomain[domain]; ok {
		return customer, nil
	}
	return store.Customer{}, store.ErrNotFound
}

func (f *fakeTenantStore) GetCustomerByCode(ctx context.Context, code string) (store.Customer, error) {
	if customer, ok := f.byCode[code]; ok {
		return customer, nil
	}
	return store.Customer{}, store.ErrNotFound
}

func (f *fakeTenantStore) CreateBinding(ctx context.Context, params store.CreateBindingParams) (store.CustomerBinding, error) {
	return store.CustomerBinding{}, nil
}

func (f *fakeTenantStore) ListBindingsByCustomer(ctx context.Context, customerCode string) ([]store.CustomerBinding, error) {
	return nil, nil
}

func (f *fakeTenantStore) DeleteBinding(ctx context.Context, id int64) error {
	return nil
}

func newTestTenantProcessor(s *fakeTenantStore, cfg config.TenantConfig) *TenantProcessor {
	return New(s, nil, cfg, observability.NewLogger())
}

func TestResolve_PackageBeforeDomain(t *testing.T) {
	fakeStore := &fakeTenantStore{
		appBindings: map[string]store.BindingMatch{
			"com.acme.app": {CustomerCode: "acme", CustomerName: "Acme Corp", Key: "com.acme.app"},
		},
		webBindings: map[string]store.BindingMatch{
			"portal.other.com": {CustomerCode: "other", Key: "portal.other.com"},
		},
	}
	proc := newTestTenantProcessor(fakeStore, config.TenantConfig{})

	tenant, err := proc.Resolve(context.Background(), "COM.ACME.APP", "portal.other.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.Code != "acme" || tenant.MatchedBy != "package" {
		t.Errorf("expected package match for acme, got %+v", tenant)
	}
	if fakeStore.webLookups != 0 {
		t.Errorf("expected no domain lookup after package match, got %d", fakeStore.webLookups)
	}
}

func TestResolve_DomainFallbackStripsPort(t *testing.T) {
	fakeStore := &fakeTenantStore{
		webBindings: map[string]store.BindingMatch{
			"portal.acme.com": {CustomerCode: "acme", Key: "portal.acme.com"},
		},
	}
	proc := newTestTenantProcessor(fakeStore, config.TenantConfig{})

	tenant, err := proc.Resolve(context.Background(), "", "Portal.Acme.com:8443")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.Code != "acme" || tenant.MatchedBy != "domain" {
		t.Errorf("expected domain match for acme, got %+v", tenant)
	}
}

func TestResolve_CachesHitsAndMisses(t *testing.T) {
	fakeStore := &fakeTenantStore{
		appBindings: map[string]store.BindingMatch{
			"com.acme.app": {CustomerCode: "acme", Key: "com.acme.app"},
		},
	}
	proc := newTestTenantProcessor(fakeStore, config.TenantConfig{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := proc.Resolve(ctx, "com.acme.app", ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if fakeStore.appLookups != 1 {
		t.Errorf("expected 1 store lookup for repeated resolves, got %d", fakeStore.appLookups)
	}

	for i := 0; i < 3; i++ {
		if _, err := proc.Resolve(ctx, "com.nobody.app", ""); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("expected ErrNoMatch, got %v", err)
		}
	}
	if fakeStore.appLookups != 2 {
		t.Errorf("expected misses to be cached, got %d lookups", fakeStore.appLookups)
	}
}

func TestResolveRequestCode_FallbackChain(t *testing.T) {
	fakeStore := &fakeTenantStore{
		byDomain: map[string]store.Customer{
			"portal.acme.com": {Code: "acme"},
		},
	}
	proc := newTestTenantProcessor(fakeStore, config.TenantConfig{})
	ctx := context.Background()

	tests := []struct {
		name     string
		ctx      context.Context
		query    url.Values
		header   http.Header
		host     string
		wantCode string
		wantErr  error
	}{
		{
			name:     "query parameter wins",
			ctx:      ctx,
			query:    url.Values{"customerCode": {"Acme"}},
			header:   http.Header{"X-Customer-Code": {"other"}},
			wantCode: "acme",
		},
		{
			name:     "short query alias",
			ctx:      ctx,
			query:    url.Values{"cc": {"acme"}},
			header:   http.Header{},
			wantCode: "acme",
		},
		{
			name:     "code header",
			ctx:      ctx,
			query:    url.Values{},
			header:   http.Header{"X-Customer-Code": {"acme"}},
			wantCode: "acme",
		},
		{
			name: "token claims",
			ctx: authprocessor.WithClaims(ctx, authprocessor.Claims{
				UserType:     authprocessor.UserTypeCustomer,
				CustomerCode: "acme",
			}),
			query:    url.Values{},
			header:   http.Header{},
			wantCode: "acme",
		},
		{
			name:     "domain header",
			ctx:      ctx,
			query:    url.Values{},
			header:   http.Header{"X-Customer-Domain": {"portal.acme.com"}},
			wantCode: "acme",
		},
		{
			name:     "request host",
			ctx:      ctx,
			query:    url.Values{},
			header:   http.Header{},
			host:     "portal.acme.com:443",
			wantCode: "acme",
		},
		{
			name:    "nothing matches",
			ctx:     ctx,
			query:   url.Values{},
			header:  http.Header{},
			host:    "unknown.example.com",
			wantErr: ErrCodeUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := proc.ResolveRequestCode(tt.ctx, tt.query, tt.header, tt.host)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestResolveRequestCode_SubdomainAndDefault(t *testing.T) {
	fakeStore := &fakeTenantStore{
		byCode: map[string]store.Customer{
			"acme": {Code: "acme"},
		},
	}
	proc := newTestTenantProcessor(fakeStore, config.TenantConfig{RootDomain: "portal.example.com"})

	code, err := proc.ResolveRequestCode(context.Background(), url.Values{}, http.Header{}, "acme.portal.example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if code != "acme" {
		t.Errorf("expected subdomain code acme, got %q", code)
	}

	withDefault := newTestTenantProcessor(&fakeTenantStore{}, config.TenantConfig{DefaultCode: "Fallback"})
	code, err = withDefault.ResolveRequestCode(context.Background(), url.Values{}, http.Header{}, "unknown.example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if code != "fallback" {
		t.Errorf("expected default code fallback, got %q", code)
	}
}
