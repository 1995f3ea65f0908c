// Package warehouse loads finished batch tables into the relational star
// schema through gorm.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNoUpdates is returned by LastUpdate when the Metadata table is empty.
var ErrNoUpdates = errors.New("no previous update recorded")

// Open connects to the warehouse with the named driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if driver == "sqlite" {
		// An in-memory database lives on a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Warehouse writes batch tables, skipping rows whose key already exists.
type Warehouse struct {
	db        *gorm.DB
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a loader over an open connection.
func New(db *gorm.DB, batchSize int, logger *slog.Logger, metrics *observability.Metrics) *Warehouse {
	return &Warehouse{db: db, batchSize: batchSize, logger: logger, metrics: metrics}
}

// Migrate creates or updates every warehouse table.
func (w *Warehouse) Migrate(ctx context.Context) error {
	if err := w.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate warehouse: %w", err)
	}
	return nil
}

// Load writes the tables present in t in dependency order: RoadDim,
// VehicleDim, LocationAreaDim, DateHourDim, WeatherFact, VehicleCrashFact.
// Each table is written in its own transaction; rows with an existing key are
// skipped. Rows reports the rows actually inserted.
func (w *Warehouse) Load(ctx context.Context, t domain.Tables) ([]domain.TableLoad, error) {
	steps := []struct {
		table string
		rows  any
		n     int
	}{
		{domain.TableRoad, ptr(mapSlice(t.Roads, toRoadRow)), len(t.Roads)},
		{domain.TableVehicle, ptr(mapSlice(t.Vehicles, toVehicleRow)), len(t.Vehicles)},
		{domain.TableLocationArea, ptr(mapSlice(t.LocationAreas, toLocationAreaRow)), len(t.LocationAreas)},
		{domain.TableDateHour, ptr(mapSlice(t.DateHours, toDateHourRow)), len(t.DateHours)},
		{domain.TableWeather, ptr(mapSlice(t.Weather, toWeatherRow)), len(t.Weather)},
		{domain.TableVehicleCrashFact, ptr(mapSlice(t.Facts, toVehicleCrashRow)), len(t.Facts)},
	}

	var loads []domain.TableLoad
	for _, s := range steps {
		if s.n == 0 {
			continue
		}
		inserted, err := w.insert(ctx, s.rows)
		if err != nil {
			return loads, fmt.Errorf("load %s: %w", s.table, err)
		}
		w.metrics.RowsLoaded.WithLabelValues(s.table).Add(float64(inserted))
		w.logger.Info("table loaded", "table", s.table, "rows", s.n, "inserted", inserted)
		loads = append(loads, domain.TableLoad{Table: s.table, Rows: int(inserted)})
	}
	return loads, nil
}

func ptr[T any](v T) *T { return &v }

func (w *Warehouse) insert(ctx context.Context, rows any) (int64, error) {
	var inserted int64
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, w.batchSize)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, err
}

// LastUpdate returns the end of the most recently recorded update window.
func (w *Warehouse) LastUpdate(ctx context.Context) (domain.UpdateRecord, error) {
	var row metadataRow
	err := w.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "LastUpdate"}, Desc: true}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UpdateRecord{}, ErrNoUpdates
	}
	if err != nil {
		return domain.UpdateRecord{}, fmt.Errorf("read last update: %w", err)
	}
	return domain.UpdateRecord{
		RunID:      row.RunID,
		LastUpdate: row.LastUpdate.UTC(),
		Start:      row.StartDate.UTC(),
		End:        row.EndDate.UTC(),
		Message:    row.UpdateMessage,
	}, nil
}

// RecordUpdate appends a Metadata row. Duplicates are not skipped.
func (w *Warehouse) RecordUpdate(ctx context.Context, u domain.UpdateRecord) error {
	row := metadataRow{
		LastUpdate:    u.LastUpdate,
		StartDate:     u.Start,
		EndDate:       u.End,
		UpdateMessage: u.Message,
		RunID:         u.RunID,
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record update: %w", err)
	}
	return nil
}

// Ping verifies the connection is usable.
func (w *Warehouse) Ping(ctx context.Context) error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (w *Warehouse) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
