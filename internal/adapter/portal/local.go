package portal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// LocalStore reads dataset exports saved as <dir>/<dataset>.csv.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store over dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

var columnReplacer = strings.NewReplacer(" ", "_", "-", "_", "/", "_")

// NormalizeColumn converts an export header such as "Crash Date/Time" to the
// API column name "crash_date_time".
func NormalizeColumn(name string) string {
	return columnReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Fetch returns the rows of a dataset whose crash_date_time falls within w.
// Rows with an unparseable timestamp are left out.
func (s *LocalStore) Fetch(d domain.Dataset, w domain.Window) ([]domain.RawRow, error) {
	path := filepath.Join(s.dir, string(d)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open local %s: %w", d, err)
	}
	defer f.Close()

	return readWindow(f, w)
}

func readWindow(r io.Reader, w domain.Window) ([]domain.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = NormalizeColumn(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []domain.RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(domain.RawRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		ts := domain.ParseCrashTime(row["crash_date_time"], domain.SourceFile)
		if ts.IsZero() || ts.Before(w.Start) || ts.After(w.End) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
