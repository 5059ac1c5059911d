package financials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
	"AlphaCrew/pkg/cache"
	xhttp "AlphaCrew/pkg/http"
	applogger "AlphaCrew/pkg/logger"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Attempts int
	CacheTTL time.Duration
}

// HTTPProvider fetches reported fundamentals from the financial data service
// (GET {base}/financials/{security_id}) and caches them.
type HTTPProvider struct {
	baseURL  string
	apiKey   string
	attempts int
	ttl      time.Duration
	client   *xhttp.Client
	cache    cache.Service
	l        *applogger.Logger
}

func NewHTTPProvider(cfg Config, c cache.Service, opts ...xhttp.ClientOption) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	return &HTTPProvider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		attempts: cfg.Attempts,
		ttl:      cfg.CacheTTL,
		client:   xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)...),
		cache:    c,
	}
}

func (p *HTTPProvider) SetLogger(l *applogger.Logger) { p.l = l }

func (p *HTTPProvider) FetchFinancials(ctx context.Context, securityID string) (models.FinancialFacts, error) {
	if p.cache == nil {
		return p.fetchWithRetry(ctx, securityID)
	}
	key := cache.GenerateKey("financials", securityID)
	facts, hit, err := cache.GetOrLoad(ctx, p.cache, key, p.ttl, func(ctx context.Context) (models.FinancialFacts, error) {
		return p.fetchWithRetry(ctx, securityID)
	})
	if err != nil && cache.IsStoreError(err) {
		if p.l != nil {
			p.l.Warn("financials cache store failed", applogger.String("security_id", securityID), applogger.Error(err))
		}
		return facts, nil
	}
	if err == nil && hit && p.l != nil {
		p.l.Debug("financials cache hit", applogger.String("security_id", securityID))
	}
	return facts, err
}

// fetchWithRetry retries transient failures with linear backoff; a 404 is final.
func (p *HTTPProvider) fetchWithRetry(ctx context.Context, securityID string) (models.FinancialFacts, error) {
	var err error
	for i := 1; i <= p.attempts; i++ {
		var facts models.FinancialFacts
		facts, err = p.fetch(ctx, securityID)
		if err == nil || errors.Is(err, models.ErrFinancialsNotFound) {
			return facts, err
		}
		if i == p.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return models.FinancialFacts{}, ctx.Err()
		}
	}
	return models.FinancialFacts{}, err
}

func (p *HTTPProvider) fetch(ctx context.Context, securityID string) (models.FinancialFacts, error) {
	var facts models.FinancialFacts
	if p.baseURL == "" {
		return facts, fmt.Errorf("financials service url not configured")
	}
	headers := map[string]string{"Accept": "application/json"}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/financials/" + url.PathEscape(securityID),
		Headers: headers,
	}, &facts)
	if err != nil {
		if xhttp.StatusCode(err) == http.StatusNotFound {
			return facts, fmt.Errorf("%w: %s", models.ErrFinancialsNotFound, securityID)
		}
		return facts, fmt.Errorf("get financials %s: %w", securityID, err)
	}
	if facts.SecurityID == "" {
		facts.SecurityID = securityID
	}
	return facts, nil
}

var _ domsvc.FinancialsProvider = (*HTTPProvider)(nil)
