// Package fueleconomy downloads the vehicle specification feed.
package fueleconomy

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/retry"
)

// Client fetches the one-row-per-trim vehicle CSV.
type Client struct {
	url        string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a feed client for url.
func NewClient(url string, timeout time.Duration, retries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
	c.policy = retry.New(retries)
	c.policy.OnRetry = c.onRetry
	return c
}

func (c *Client) onRetry(attempt int, err error) {
	c.metrics.FetchRetries.WithLabelValues("vehicles").Inc()
	c.logger.Warn("vehicle feed fetch failed, retrying", "attempt", attempt, "error", err)
}

// Vehicles downloads and parses the feed. There is no fallback source, so a
// feed that stays unreachable fails the batch.
func (c *Client) Vehicles(ctx context.Context) ([]domain.RawRow, error) {
	var rows []domain.RawRow
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = c.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch vehicle feed: %w", err)
	}
	c.metrics.RowsExtracted.WithLabelValues("vehicles", "feed").Add(float64(len(rows)))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vehicle feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vehicle feed error: status %d: %s", resp.StatusCode, body)
	}
	return parseFeed(resp.Body)
}

func parseFeed(r io.Reader) ([]domain.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	header = append([]string(nil), header...)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []domain.RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read feed row: %w", err)
		}
		row := make(domain.RawRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
}
