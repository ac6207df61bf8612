// Package markets fetches per-token trading rules from the CLOB API: tick
// size and minimum order size. Both change rarely, so callers should go
// through the cached client.
package markets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Fallbacks when the venue does not report a value.
var (
	DefaultTickSize     = fixedpoint.MustParse("0.01")
	DefaultMinOrderSize = fixedpoint.FromInt(5)
)

// MetadataClient fetches trading rules from the CLOB API.
type MetadataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMetadataClient creates a metadata client.
func NewMetadataClient(baseURL string) *MetadataClient {
	if baseURL == "" {
		baseURL = "https://clob.polymarket.com"
	}
	return &MetadataClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchTickSize fetches the minimum price increment for a token.
func (c *MetadataClient) FetchTickSize(ctx context.Context, tokenID string) (fixedpoint.Amount, error) {
	url := fmt.Sprintf("%s/tick-size?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var data struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, err
	}
	if data.MinimumTickSize <= 0 {
		return DefaultTickSize, nil
	}
	return fixedpoint.FromFloat(data.MinimumTickSize), nil
}

// FetchMinOrderSize fetches the minimum order size for a token. The venue
// reports it on the book endpoint; missing or unparseable values fall back
// to the default.
func (c *MetadataClient) FetchMinOrderSize(ctx context.Context, tokenID string) (fixedpoint.Amount, error) {
	url := fmt.Sprintf("%s/book?token_id=%s", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DefaultMinOrderSize, nil
	}

	var data struct {
		MinSize float64 `json:"min_size"`
		Market  struct {
			MinSize float64 `json:"minimum_order_size"`
		} `json:"market"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return DefaultMinOrderSize, nil
	}

	if data.MinSize > 0 {
		return fixedpoint.FromFloat(data.MinSize), nil
	}
	if data.Market.MinSize > 0 {
		return fixedpoint.FromFloat(data.Market.MinSize), nil
	}
	return DefaultMinOrderSize, nil
}

// FetchRules fetches both rules for a token, substituting defaults for
// anything the venue cannot answer.
func (c *MetadataClient) FetchRules(ctx context.Context, tokenID string) (tickSize, minOrderSize fixedpoint.Amount, err error) {
	tickSize, err = c.FetchTickSize(ctx, tokenID)
	if err != nil {
		tickSize = DefaultTickSize
	}

	minOrderSize, err = c.FetchMinOrderSize(ctx, tokenID)
	if err != nil {
		minOrderSize = DefaultMinOrderSize
	}

	return tickSize, minOrderSize, nil
}
