package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/civicqa/govrag/common/httpx"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

// Fetcher retrieves one page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, schema.ContentType, error)
}

// maxBodyBytes caps a single fetched page.
const maxBodyBytes = 4 << 20

// HTTPFetcher fetches pages politely: one shared rate limiter across all
// workers and an explicit crawler user agent.
type HTTPFetcher struct {
	hc        *httpx.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewHTTPFetcher(cfg config.IngestConfig, hc *httpx.Client) *HTTPFetcher {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 0.5
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "GovRAG-Bot/1.0"
	}
	if hc == nil {
		hc = httpx.NewFromConfig(nil)
	}
	return &HTTPFetcher{
		hc:        hc,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		userAgent: ua,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, schema.ContentType, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return body, contentTypeOf(resp.Header.Get("Content-Type"), url), nil
}

func contentTypeOf(header, url string) schema.ContentType {
	switch {
	case strings.Contains(header, "application/pdf"), strings.HasSuffix(url, ".pdf"):
		return schema.ContentTypePDF
	case strings.Contains(strings.ToLower(url), "faq"):
		return schema.ContentTypeFAQ
	case strings.Contains(strings.ToLower(url), "/forms"):
		return schema.ContentTypeForm
	default:
		return schema.ContentTypeHTML
	}
}

// clock lets tests pin crawl timestamps.
var clock = time.Now
