// Package news pulls articles from the newsdata.io API and stores them.
package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client defaults.
const (
	DefaultBaseURL  = "https://newsdata.io/api/1/news"
	DefaultCountry  = "us"
	DefaultLanguage = "en"
	DefaultTimeout  = 30 * time.Second

	// MaxBodySize caps how much of a response body is read.
	MaxBodySize = 10 << 20
)

// ClientConfig configures a Client. Zero values take the defaults above.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Country  string
	Language string
	Timeout  time.Duration
}

// Client fetches one page of latest articles per call.
type Client struct {
	baseURL  string
	apiKey   string
	country  string
	language string
	http     *http.Client
}

// NewClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		country:  cfg.Country,
		language: cfg.Language,
		http:     httpClient,
	}
}

// FetchResult is the outcome of one request. Err is nil only when the
// server answered; a non-200 answer still carries a *TransportError.
type FetchResult struct {
	StatusCode int
	Body       []byte
	Err        error
}

// OK reports whether the request produced a 200 response with a body to parse.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.StatusCode == http.StatusOK
}

// Fetch performs exactly one GET against the news endpoint. It never
// returns an error outside the result.
func (c *Client) Fetch(ctx context.Context) FetchResult {
	if c.apiKey == "" {
		return FetchResult{Err: ErrMissingAPIKey}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return FetchResult{Err: &TransportError{Err: fmt.Errorf("parse base url: %w", err)}}
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("country", c.country)
	q.Set("language", c.language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FetchResult{Err: &TransportError{Err: c.redact(err)}}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bulletin/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return FetchResult{Err: &TransportError{Err: c.redact(err)}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return FetchResult{StatusCode: resp.StatusCode, Err: &TransportError{StatusCode: resp.StatusCode, Err: c.redact(err)}}
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        &TransportError{StatusCode: resp.StatusCode, Body: body},
		}
	}
	return FetchResult{StatusCode: resp.StatusCode, Body: body}
}

// redact strips the API key from request URLs embedded in err.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, url.QueryEscape(c.apiKey), "REDACTED")
	}
	return err
}
