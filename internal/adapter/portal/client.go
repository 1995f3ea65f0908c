// Package portal reads the county crash-report datasets, either from the
// Socrata open-data portal or from local CSV exports.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/spf13/cast"
)

const (
	rowLimit        = 1000000
	whereTimeLayout = "2006-01-02T15:04:05"
)

// Credentials authenticate against the portal. All fields are optional.
type Credentials struct {
	AppToken string
	User     string
	Password string
}

// Client queries the Socrata resource API of the open-data portal.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a portal client rooted at baseURL.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// DatasetID returns the portal resource identifier of a dataset.
func DatasetID(d domain.Dataset) (string, error) {
	switch d {
	case domain.DatasetIncidents:
		return "bhju-22kf", nil
	case domain.DatasetDrivers:
		return "mmzv-x632", nil
	case domain.DatasetNonMotorists:
		return "n7fk-dce5", nil
	default:
		return "", fmt.Errorf("unknown dataset %q", d)
	}
}

// Fetch downloads every row of a dataset whose crash_date_time falls in w.
func (c *Client) Fetch(ctx context.Context, d domain.Dataset, w domain.Window) ([]domain.RawRow, error) {
	id, err := DatasetID(d)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"$where": {fmt.Sprintf("crash_date_time >= '%s' AND crash_date_time <= '%s'",
			w.Start.Format(whereTimeLayout), w.End.Format(whereTimeLayout))},
		"$limit": {strconv.Itoa(rowLimit)},
	}
	u := fmt.Sprintf("%s/resource/%s.json?%s", c.baseURL, id, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.creds.AppToken != "" {
		req.Header.Set("X-App-Token", c.creds.AppToken)
	}
	if c.creds.User != "" {
		req.SetBasicAuth(c.creds.User, c.creds.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", d, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("portal API error: status %d: %s", resp.StatusCode, body)
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", d, err)
	}

	rows := make([]domain.RawRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRawRow(rec))
	}
	c.logger.Debug("portal fetch complete", "dataset", d, "rows", len(rows))
	return rows, nil
}

// toRawRow flattens a JSON record into text cells. Nested values such as the
// point-typed location column are dropped; latitude and longitude are also
// published as scalar columns.
func toRawRow(rec map[string]any) domain.RawRow {
	row := make(domain.RawRow, len(rec))
	for k, v := range rec {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		row[k] = s
	}
	return row
}
