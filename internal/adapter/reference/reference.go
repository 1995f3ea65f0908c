// Package reference loads the static lookup files shipped with the service:
// brand aliases, the persisted model catalog, and the zip-code polygons.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/spf13/cast"
)

// File names inside the static directory.
const (
	BrandsFile   = "car_makes.txt"
	ModelsFile   = "car_models.csv"
	ZipCodesFile = "ZIPCODES.csv"
)

// Store reads and writes the files of one static directory.
type Store struct {
	dir string
}

// NewStore creates a store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// BrandAliases loads the raw-to-canonical make aliases.
func (s *Store) BrandAliases() (*domain.BrandAliases, error) {
	rows, err := readTable(s.path(BrandsFile))
	if err != nil {
		return nil, fmt.Errorf("load brand aliases: %w", err)
	}
	pairs := make([]domain.AliasPair, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, domain.AliasPair{Raw: r["unique_makes_to_map"], Canonical: r["unique_makes"]})
	}
	return domain.NewBrandAliases(pairs), nil
}

// ModelCatalog loads the persisted model catalog. A missing file yields an
// empty catalog.
func (s *Store) ModelCatalog() (*domain.ModelCatalog, error) {
	rows, err := readTable(s.path(ModelsFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewModelCatalog(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model catalog: %w", err)
	}
	triples := make([]domain.ModelTriple, 0, len(rows))
	for _, r := range rows {
		year, err := cast.ToFloat64E(r["Year"])
		if err != nil {
			return nil, fmt.Errorf("load model catalog: year %q: %w", r["Year"], err)
		}
		triples = append(triples, domain.ModelTriple{Make: r["Make"], Year: int(year), BaseModel: r["BaseModel"]})
	}
	return domain.NewModelCatalog(triples), nil
}

// SaveModelCatalog overwrites the persisted catalog. The file is replaced
// atomically so a failed write keeps the previous catalog.
func (s *Store) SaveModelCatalog(c *domain.ModelCatalog) error {
	tmp, err := os.CreateTemp(s.dir, ModelsFile+".*")
	if err != nil {
		return fmt.Errorf("save model catalog: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	w := csv.NewWriter(tmp)
	_ = w.Write([]string{"Make", "Year", "BaseModel"})
	for _, t := range c.Triples() {
		_ = w.Write([]string{t.Make, strconv.Itoa(t.Year), t.BaseModel})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("save model catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save model catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(ModelsFile)); err != nil {
		return fmt.Errorf("save model catalog: %w", err)
	}
	return nil
}

// Zones loads the zip-code polygons. Rows whose geometry does not parse keep a
// nil Geometry and are ignored by the area index.
func (s *Store) Zones() ([]domain.Zone, error) {
	rows, err := readTable(s.path(ZipCodesFile))
	if err != nil {
		return nil, fmt.Errorf("load zip codes: %w", err)
	}
	zones := make([]domain.Zone, 0, len(rows))
	for _, r := range rows {
		z := domain.Zone{
			ZipCode:     cast.ToInt(strings.TrimSuffix(r["ZIPCODE"], ".0")),
			MailCity:    r["MAIL_CITY"],
			ShapeLength: cast.ToFloat64(r["Shape_Leng"]),
			ShapeArea:   cast.ToFloat64(r["Shape_Area"]),
		}
		if g, err := wkt.Unmarshal(r["the_geom"]); err == nil {
			z.Geometry = g
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// readTable reads a headed CSV file into rows keyed by column name.
func readTable(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
}
