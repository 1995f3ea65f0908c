package fueleconomy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `id,make,baseModel,year,VClass,cylinders,displ,trany,drive,fuelType1,city08,highway08
1,Toyota,Yaris,2015,Compact Cars,4,1.5,Automatic 4-spd,Front-Wheel Drive,Regular Gasoline,30,36
2,Toyota,Yaris,2015,Compact Cars,4,1.5,Manual 5-spd,Front-Wheel Drive,Regular Gasoline,31,37
3,Honda,Civic,2016,Compact Cars,4,2.0,Automatic (AV),Front-Wheel Drive,Regular Gasoline,31,41
`

func testClient(url string) *Client {
	c := NewClient(url, 5*time.Second, 3, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	c.policy.Initial = time.Millisecond
	c.policy.Max = time.Millisecond
	return c
}

func TestClient_Vehicles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rows, err := c.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Yaris", rows[0]["baseModel"])
	assert.Equal(t, "Manual 5-spd", rows[1]["trany"])
	assert.Equal(t, "Honda", rows[2]["make"])
	assert.InDelta(t, 3.0, testutil.ToFloat64(c.metrics.RowsExtracted.WithLabelValues("vehicles", "feed")), 1e-9)

	entries := domain.NormalizeVehicles(rows, nil)
	assert.NotEmpty(t, entries)
}

func TestClient_Vehicles_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rows, err := c.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.FetchRetries.WithLabelValues("vehicles")), 1e-9)
}

func TestClient_Vehicles_Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Vehicles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestParseFeed_ShortRows(t *testing.T) {
	rows, err := parseFeed(strings.NewReader("id,make,baseModel\n7,Ford\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ford", rows[0]["make"])
	assert.NotContains(t, rows[0], "baseModel")
}
