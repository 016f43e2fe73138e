package processor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	authprocessor "portal-server/internal/auth/processor"
	"portal-server/internal/clients/redis"
	"portal-server/internal/config"
	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// TenantStore defines the database operations required by TenantProcessor
type TenantStore interface {
	FindAppBinding(ctx context.Context, pkg string) (store.BindingMatch, error)
	FindWebBinding(ctx context.Context, host string) (store.BindingMatch, error)
	GetCustomerByDomain(ctx context.Context, domain string) (store.Customer, error)
	GetCustomerByCode(ctx context.Context, code string) (store.Customer, error)
	CreateBinding(ctx context.Context, params store.CreateBindingParams) (store.CustomerBinding, error)
	ListBindingsByCustomer(ctx context.Context, customerCode string) ([]store.CustomerBinding, error)
	DeleteBinding(ctx context.Context, id int64) error
}

var (
	ErrNoMatch        = errors.New("no tenant matched")
	ErrCodeUnresolved = errors.New("customer code could not be resolved")
)

// ResolvedTenant identifies which customer an inbound request belongs to
// and how the match was made.
type ResolvedTenant struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	MatchedBy  string `json:"matchedBy"`
	MatchedKey string `json:"matchedKey"`
}

const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	tenant ResolvedTenant
	miss   bool
	expiry time.Time
}

// TenantProcessor resolves inbound traffic to customers. Lookups are
// memoized: through Redis when available, else an in-process map. Entries
// only expire by TTL; binding changes take up to cacheTTL to be seen.
type TenantProcessor struct {
	store       TenantStore
	redisClient *redis.Client
	cfg         config.TenantConfig
	logger      *observability.Logger

	mu    sync.RWMutex
	local map[string]cacheEntry
}

func New(store TenantStore, redisClient *redis.Client, cfg config.TenantConfig, logger *observability.Logger) *TenantProcessor {
	return &TenantProcessor{
		store:       store,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
		local:       make(map[string]cacheEntry),
	}
}

// Resolve maps an app package name or a web domain to a customer. Package
// matching runs first; a blank package falls through to domain matching
// against exact keys and "%.suffix" wildcard keys, highest priority first.
func (p *TenantProcessor) Resolve(ctx context.Context, pkg, domain string) (ResolvedTenant, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))
	host := normalizeHost(domain)

	cacheKey := "tenant:" + pkg + "|" + host
	if tenant, miss, ok := p.cacheGet(ctx, cacheKey); ok {
		if miss {
			return ResolvedTenant{}, ErrNoMatch
		}
		return tenant, nil
	}

	tenant, err := p.resolveUncached(ctx, pkg, host)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			p.cacheSet(ctx, cacheKey, ResolvedTenant{}, true)
		}
		return ResolvedTenant{}, err
	}
	p.cacheSet(ctx, cacheKey, tenant, false)
	return tenant, nil
}

func (p *TenantProcessor) resolveUncached(ctx context.Context, pkg, host string) (ResolvedTenant, error) {
	if pkg != "" {
		match, err := p.store.FindAppBinding(ctx, pkg)
		if err == nil {
			return ResolvedTenant{
				Code:       match.CustomerCode,
				Name:       match.CustomerName,
				MatchedBy:  "package",
				MatchedKey: pkg,
			}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "failed to look up app binding", err)
			return ResolvedTenant{}, err
		}
	}
	if host != "" {
		match, err := p.store.FindWebBinding(ctx, host)
		if err == nil {
			return ResolvedTenant{
				Code:       match.CustomerCode,
				Name:       match.CustomerName,
				MatchedBy:  "domain",
				MatchedKey: match.Key,
			}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "failed to look up web binding", err)
			return ResolvedTenant{}, err
		}
	}
	return ResolvedTenant{}, ErrNoMatch
}

// ResolveRequestCode determines the customer code for an inbound request by
// an explicit fallback chain: query parameter, code header, authenticated
// token claims, then domain headers matched against the customer table.
func (p *TenantProcessor) ResolveRequestCode(ctx context.Context, query url.Values, header http.Header, requestHost string) (string, error) {
	for _, param := range []string{"customerCode", "cc"} {
		if code := strings.TrimSpace(query.Get(param)); code != "" {
			return strings.ToLower(code), nil
		}
	}
	if code := strings.TrimSpace(header.Get("X-Customer-Code")); code != "" {
		return strings.ToLower(code), nil
	}
	if claims, ok := authprocessor.ClaimsFromContext(ctx); ok && claims.CustomerCode != "" {
		return claims.CustomerCode, nil
	}

	candidates := []string{
		header.Get("X-Customer-Domain"),
		header.Get("X-Forwarded-Host"),
		requestHost,
	}
	for _, candidate := range candidates {
		host := normalizeHost(candidate)
		if host == "" {
			continue
		}
		customer, err := p.store.GetCustomerByDomain(ctx, host)
		if err == nil {
			return customer.Code, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "failed to look up customer by domain", err)
			return "", err
		}
		if code := p.subdomainCode(ctx, host); code != "" {
			return code, nil
		}
	}
	if p.cfg.DefaultCode != "" {
		return strings.ToLower(p.cfg.DefaultCode), nil
	}
	return "", ErrCodeUnresolved
}

// subdomainCode maps <code>.<root-domain> hosts to an existing customer
// code when a root domain is configured.
func (p *TenantProcessor) subdomainCode(ctx context.Context, host string) string {
	root := strings.ToLower(strings.TrimSpace(p.cfg.RootDomain))
	if root == "" || !strings.HasSuffix(host, "."+root) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+root)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	customer, err := p.store.GetCustomerByCode(ctx, sub)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.WarnWithError(ctx, "failed to look up customer by subdomain", err)
		}
		return ""
	}
	return customer.Code
}

// normalizeHost lowercases and strips any port from a host value.
func normalizeHost(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func (p *TenantProcessor) cacheGet(ctx context.Context, key string) (ResolvedTenant, bool, bool) {
	if p.redisClient.IsEnabled() {
		raw, found, err := p.redisClient.Get(ctx, key)
		if err != nil {
			p.logger.WarnWithError(ctx, "tenant cache read failed", err)
		} else if found {
			var entry struct {
				Tenant ResolvedTenant `json:"tenant"`
				Miss   bool           `json:"miss"`
			}
			if err := json.Unmarshal([]byte(raw), &entry); err == nil {
				return entry.Tenant, entry.Miss, true
			}
		}
		return ResolvedTenant{}, false, false
	}

	p.mu.RLock()
	entry, ok := p.local[key]
	p.mu.RUnlock()
	if !ok || time.Now().After(entry.expiry) {
		return ResolvedTenant{}, false, false
	}
	return entry.tenant, entry.miss, true
}

func (p *TenantProcessor) cacheSet(ctx context.Context, key string, tenant ResolvedTenant, miss bool) {
	if p.redisClient.IsEnabled() {
		raw, err := json.Marshal(struct {
			Tenant ResolvedTenant `json:"tenant"`
			Miss   bool           `json:"miss"`
		}{Tenant: tenant, Miss: miss})
		if err == nil {
			if err := p.redisClient.Set(ctx, key, string(raw), cacheTTL); err != nil {
				p.logger.WarnWithError(ctx, "tenant cache write failed", err)
			}
		}
		return
	}

	p.mu.Lock()
	p.local[key] = cacheEntry{tenant: tenant, miss: miss, expiry: time.Now().Add(cacheTTL)}
	p.mu.Unlock()
}
