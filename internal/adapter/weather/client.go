// Package weather fetches hourly observations from the Open-Meteo historical
// archive for each location-area centroid.
package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/retry"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Hourly variables requested from the archive, in WeatherHour field order.
var hourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"precipitation",
	"rain",
	"snowfall",
	"windspeed_10m",
	"winddirection_10m",
}

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15:04"
)

// Fetcher returns the hourly weather of one location over a window.
type Fetcher interface {
	Fetch(ctx context.Context, loc domain.WeatherLocation, w domain.Window) (domain.WeatherSeries, error)
}

// Client queries the archive API. Requests are throttled by a token bucket and
// retried with backoff.
type Client struct {
	baseURL    string
	timezone   string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an archive client. Hour timestamps are requested in
// timezone and kept as naive wall-clock hours, matching crash timestamps.
func NewClient(baseURL, timezone string, perSecond float64, timeout time.Duration, retries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		baseURL:    baseURL,
		timezone:   timezone,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     logger,
		metrics:    metrics,
	}
	c.policy = retry.New(retries)
	c.policy.OnRetry = func(attempt int, err error) {
		c.metrics.FetchRetries.WithLabelValues("weather").Inc()
		c.logger.Warn("weather fetch failed, retrying", "attempt", attempt, "error", err)
	}
	return c
}

// Fetch returns the hours of w observed at loc.
func (c *Client) Fetch(ctx context.Context, loc domain.WeatherLocation, w domain.Window) (domain.WeatherSeries, error) {
	var hours []domain.WeatherHour
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		hours, err = c.fetch(ctx, loc, w)
		return err
	})
	if err != nil {
		return domain.WeatherSeries{}, fmt.Errorf("weather for area %d: %w", loc.LocationAreaKey, err)
	}
	return domain.WeatherSeries{Location: loc, Hours: hours}, nil
}

func (c *Client) fetch(ctx context.Context, loc domain.WeatherLocation, w domain.Window) ([]domain.WeatherHour, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"start_date": {w.Start.Format(dateLayout)},
		"end_date":   {w.End.Format(dateLayout)},
		"hourly":     {strings.Join(hourlyVariables, ",")},
		"timezone":   {c.timezone},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		reason := gjson.GetBytes(body, "reason").String()
		return nil, fmt.Errorf("archive API error: status %d: %s", resp.StatusCode, reason)
	}
	return parseHourly(body, w)
}

// parseHourly reads the parallel hourly arrays of an archive response, keeping
// the hours inside w. Null measurements become 0.
func parseHourly(body []byte, w domain.Window) ([]domain.WeatherHour, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode response: invalid JSON")
	}
	hourly := gjson.GetBytes(body, "hourly")
	times := hourly.Get("time").Array()
	if !hourly.Exists() || len(times) == 0 {
		return nil, fmt.Errorf("decode response: no hourly data")
	}

	values := make([][]gjson.Result, len(hourlyVariables))
	for i, v := range hourlyVariables {
		values[i] = hourly.Get(v).Array()
	}
	at := func(v, i int) float64 {
		if i < len(values[v]) {
			return values[v][i].Float()
		}
		return 0
	}

	from := w.Start.Truncate(time.Hour)
	hours := make([]domain.WeatherHour, 0, len(times))
	for i, ts := range times {
		t, err := time.Parse(hourLayout, ts.String())
		if err != nil {
			return nil, fmt.Errorf("decode response: time %q: %w", ts.String(), err)
		}
		if t.Before(from) || t.After(w.End) {
			continue
		}
		hours = append(hours, domain.WeatherHour{
			Time:          t,
			Temperature:   at(0, i),
			Humidity:      at(1, i),
			Precipitation: at(2, i),
			Rain:          at(3, i),
			Snow:          at(4, i),
			WindSpeed:     at(5, i),
			WindDirection: at(6, i),
		})
	}
	return hours, nil
}
