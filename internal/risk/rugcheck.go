// internal/risk/rugcheck.go
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultURL = "https://api.rugcheck.xyz"

// Report is the part of a rugcheck.xyz token report the bot uses.
type Report struct {
	Mint  string  `json:"mint"`
	Score float64 `json:"score"`
}

// Client fetches risk scores from rugcheck.xyz.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("rugcheck url parse %q: %w", baseURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("rugcheck url must be http(s), got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("rugcheck"),
	}, nil
}

// Fetch returns the risk report for mint.
func (c *Client) Fetch(ctx context.Context, mint string) (*Report, error) {
	endpoint := fmt.Sprintf("%s/v1/tokens/%s/report", c.baseURL, url.PathEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rugcheck request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rugcheck status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode rugcheck report: %w", err)
	}
	if report.Mint == "" {
		report.Mint = mint
	}

	c.logger.Debug("Risk report", zap.String("mint", mint), zap.Float64("score", report.Score))
	return &report, nil
}
