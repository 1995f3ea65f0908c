package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/config"
	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	event := LoadEvent{RunID: "run-1", Table: domain.TableVehicleCrashFact, Rows: 812, Start: start, End: end}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("VehicleCrashFact"), msg.Key)
	assert.JSONEq(t, `{
		"run_id": "run-1",
		"table": "VehicleCrashFact",
		"rows": 812,
		"start": "2023-12-01T00:00:00Z",
		"end": "2023-12-31T23:00:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "window_end", msg.Headers[1].Key)
	assert.Equal(t, []byte(end.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded LoadEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.True(t, decoded.Start.Equal(start))
}

func TestPublisher_NoLoads(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "loads"}
	p := NewPublisher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = p.Close() })

	// Nothing is written, so the unreachable broker is never dialed.
	require.NoError(t, p.Publish(context.Background(), "run-1", domain.Window{}, nil))
}
