package weather

import (
	"context"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/hashicorp/go-multierror"
)

// Collect fetches every location in order. Failed locations do not stop the
// others: the successful series are returned together with a
// *multierror.Error naming each failure. The caller decides whether a partial
// result is usable.
func Collect(ctx context.Context, f Fetcher, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
	var (
		series []domain.WeatherSeries
		errs   *multierror.Error
	)
	for _, loc := range locations {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		s, err := f.Fetch(ctx, loc, w)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		series = append(series, s)
	}
	return series, errs.ErrorOrNil()
}
