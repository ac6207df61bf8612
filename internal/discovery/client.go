package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/types"
)

// MaxBatchSize is the metadata API's per-request cap.
const MaxBatchSize = 100

// Client fetches market metadata from the Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a metadata API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchActiveMarkets fetches open markets ordered by 24h volume, paginating
// when limit exceeds the batch cap. A zero limit fetches everything.
func (c *Client) FetchActiveMarkets(ctx context.Context, limit int) ([]types.GammaMarket, error) {
	var all []types.GammaMarket
	fetchAll := limit == 0
	offset := 0

	for {
		batch := MaxBatchSize
		if !fetchAll {
			remaining := limit - len(all)
			if remaining <= 0 {
				break
			}
			if remaining < batch {
				batch = remaining
			}
		}

		page, err := c.fetchPage(ctx, batch, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		all = append(all, page...)

		if len(page) < batch {
			break
		}
		offset += len(page)
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, limit, offset int) ([]types.GammaMarket, error) {
	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", "volume24hr")
	params.Add("ascending", "false")

	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	// The API returns a bare array.
	var markets []types.GammaMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	c.logger.Debug("fetched-markets",
		zap.Int("count", len(markets)),
		zap.Int("offset", offset))

	return markets, nil
}

// FetchMarketBySlug scans the active market list for a slug. The metadata
// API has no slug lookup endpoint.
func (c *Client) FetchMarketBySlug(ctx context.Context, slug string) (*types.GammaMarket, error) {
	offset := 0
	for page := 0; page < 10; page++ {
		markets, err := c.fetchPage(ctx, MaxBatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch markets: %w", err)
		}
		for i := range markets {
			if markets[i].Slug == slug {
				return &markets[i], nil
			}
		}
		if len(markets) < MaxBatchSize {
			break
		}
		offset += MaxBatchSize
	}
	return nil, fmt.Errorf("market not found: %s", slug)
}
