// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package far

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mesh-intelligence/faculty-sync/internal/httputil"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// DefaultBaseURL is the hosted FAR API root.
const DefaultBaseURL = "https://faculty180.interfolio.com/api.php"

// Endpoints for the three synced sections. Publications and grants are
// activity sections addressed by negative section ids.
const (
	EndpointUsers        = "/users"
	EndpointPublications = "/activities/-21"
	EndpointGrants       = "/activities/-11"
)

// DefaultPageSize is the records-per-page request when none is configured.
const DefaultPageSize = 100

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "faculty-sync/0.1"
)

// Client fetches pages of records from the FAR API.
type Client struct {
	// HTTPClient is the underlying transport.
	HTTPClient *http.Client

	// Signer signs every outgoing request.
	Signer *Signer

	// BaseURL is the API root, overridable for testing.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxRetries bounds retries of transient failures per page.
	MaxRetries int
}

// NewClient builds a Client from credentials and sync settings,
// filling unset settings with defaults.
func NewClient(creds types.Credentials, cfg types.SyncConfig) (*Client, error) {
	signer, err := NewSigner(creds)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		Signer:     signer,
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		MaxRetries: cfg.MaxRetries,
	}, nil
}

// FetchPage retrieves one page of records from endpoint. Transient
// failures are retried; a 401 or 403 is reported as ErrAuthRejected
// and any other non-200 as ErrFetch.
func (c *Client) FetchPage(ctx context.Context, endpoint string, limit, offset int) (*Page, error) {
	query := url.Values{}
	query.Set("data", "detailed")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	requestString := endpoint + "?" + query.Encode()

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+requestString, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.UserAgent)
		req.Header.Set("Accept", "application/json")
		c.Signer.Apply(req, requestString, time.Now())
		return req, nil
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTPClient, build, c.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s offset %d: %w", types.ErrFetch, endpoint, offset, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d from %s", types.ErrAuthRejected, resp.StatusCode, endpoint)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d from %s offset %d", types.ErrFetch, resp.StatusCode, endpoint, offset)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decoding %s page at offset %d: %v", types.ErrFetch, endpoint, offset, err)
	}
	return &page, nil
}

// Page is one page of the FAR list envelope. Records are kept raw;
// normalization happens downstream per section.
type Page struct {
	Meta    PageMeta          `json:"meta"`
	Records []json.RawMessage `json:"records"`
}

// PageMeta carries the pagination cursor state reported with a page.
type PageMeta struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset int  `json:"next_offset"`
	HasMore    bool `json:"has_more"`
}
