package portal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/retry"
)

// Source fetches crash datasets from the portal with bounded retries and falls
// back to the local exports when the portal stays unreachable. With
// localOnly set the portal is never contacted.
type Source struct {
	client    *Client
	local     *LocalStore
	policy    retry.Policy
	localOnly bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewSource combines a portal client with a local fallback store.
func NewSource(client *Client, local *LocalStore, retries int, localOnly bool, logger *slog.Logger, metrics *observability.Metrics) *Source {
	s := &Source{
		client:    client,
		local:     local,
		localOnly: localOnly,
		logger:    logger,
		metrics:   metrics,
	}
	s.policy = retry.New(retries)
	s.policy.OnRetry = func(attempt int, err error) {
		s.metrics.FetchRetries.WithLabelValues("portal").Inc()
		s.logger.Warn("portal fetch failed, retrying", "attempt", attempt, "error", err)
	}
	return s
}

// Extract reads one dataset for the window. The returned Extract records
// whether the rows came from the API or a local file.
func (s *Source) Extract(ctx context.Context, d domain.Dataset, w domain.Window) (domain.Extract, error) {
	if !s.localOnly && s.client != nil {
		var rows []domain.RawRow
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			rows, err = s.client.Fetch(ctx, d, w)
			return err
		})
		if err == nil {
			s.metrics.RowsExtracted.WithLabelValues(string(d), domain.SourceAPI.String()).Add(float64(len(rows)))
			return domain.Extract{Dataset: d, Source: domain.SourceAPI, Rows: rows}, nil
		}
		if ctx.Err() != nil {
			return domain.Extract{}, ctx.Err()
		}
		s.logger.Warn("portal unreachable, loading local data", "dataset", d, "error", err)
		s.metrics.Fallbacks.WithLabelValues(string(d)).Inc()
	}

	rows, err := s.local.Fetch(d, w)
	if err != nil {
		return domain.Extract{}, fmt.Errorf("extract %s: %w", d, err)
	}
	s.metrics.RowsExtracted.WithLabelValues(string(d), domain.SourceFile.String()).Add(float64(len(rows)))
	return domain.Extract{Dataset: d, Source: domain.SourceFile, Rows: rows}, nil
}
