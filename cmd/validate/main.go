// Command validate checks the CSV tables written by a DEBUG run before they
// are trusted for a warehouse load. It verifies that required cells are
// filled and that every key in the fact tables resolves against the
// dimension dumps in the same directory.
//
// Usage:
//
//	go run ./cmd/validate -dir out
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// tableSpec names the columns of a dump that must never be blank. A nil list
// requires every column.
type tableSpec struct {
	table    string
	required []string
}

var specs = []tableSpec{
	{table: domain.TableRoad},
	// Specifications are optional for brand placeholders and older models.
	{table: domain.TableVehicle, required: []string{"VehicleKey", "Make", "Year", "BaseModel"}},
	{table: domain.TableLocationArea},
	{table: domain.TableDateHour},
	{table: domain.TableWeather},
	{table: domain.TableVehicleCrashFact},
}

// keyRef is a foreign key column that must resolve in a dimension dump.
type keyRef struct {
	table, column string
	dim, dimKey   string
}

var refs = []keyRef{
	{domain.TableVehicleCrashFact, "VehicleKey", domain.TableVehicle, "VehicleKey"},
	{domain.TableVehicleCrashFact, "RoadKey", domain.TableRoad, "RoadKey"},
	{domain.TableVehicleCrashFact, "CrossStreetKey", domain.TableRoad, "RoadKey"},
	{domain.TableVehicleCrashFact, "DateHourKey", domain.TableDateHour, "DateHourKey"},
	{domain.TableVehicleCrashFact, "LocationAreaKey", domain.TableLocationArea, "LocationAreaKey"},
	{domain.TableWeather, "DateHourKey", domain.TableDateHour, "DateHourKey"},
	{domain.TableWeather, "LocationAreaKey", domain.TableLocationArea, "LocationAreaKey"},
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "out", "directory containing the DEBUG table dumps")
	flag.Parse()

	if code := run(*dir, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, out io.Writer) int {
	fmt.Fprintln(out, "=== Crash Warehouse Dump Validation ===")
	fmt.Fprintln(out)

	tables, err := loadTables(dir)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	if len(tables) == 0 {
		fmt.Fprintf(out, "FATAL: no table dumps found in %s\n", dir)
		return 1
	}

	phases := []*phase{
		validateBlanks(tables),
		validateKeys(tables),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	for _, s := range specs {
		if t, ok := tables[s.table]; ok {
			fmt.Fprintf(out, "  %-20s %d rows\n", s.table, len(t.rows))
		}
	}

	for _, p := range phases {
		for _, n := range p.notes {
			fmt.Fprintf(out, "  Note: %s\n", n)
		}
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// dump is one table CSV with its header and rows keyed by column name.
type dump struct {
	header []string
	rows   []csvRow
}

type csvRow struct {
	lineNum int
	fields  map[string]string
}

// loadTables reads every known table present in dir. Missing tables are not
// an error: non-initialization runs produce no location-area dump.
func loadTables(dir string) (map[string]dump, error) {
	tables := make(map[string]dump)
	for _, s := range specs {
		d, err := loadCSV(filepath.Join(dir, s.table+".csv"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.table, err)
		}
		tables[s.table] = d
	}
	return tables, nil
}

func loadCSV(path string) (dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return dump{}, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return dump{}, err
	}
	if len(all) == 0 {
		return dump{}, fmt.Errorf("no header in %s", path)
	}

	d := dump{header: all[0]}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(d.header))
		for j, h := range d.header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		d.rows = append(d.rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return d, nil
}

// ── Phase 1: Blank Cells ──

func validateBlanks(tables map[string]dump) *phase {
	p := &phase{name: "Phase 1: Blank Cells"}
	for _, s := range specs {
		d, ok := tables[s.table]
		if !ok {
			continue
		}
		cols := s.required
		if cols == nil {
			cols = d.header
		}
		for _, row := range d.rows {
			for _, c := range cols {
				if row.fields[c] == "" {
					p.errorf("%s line %d: %s is blank", s.table, row.lineNum, c)
				}
			}
		}
	}
	return p
}

// ── Phase 2: Key Resolution ──

func validateKeys(tables map[string]dump) *phase {
	p := &phase{name: "Phase 2: Key Resolution"}

	indexes := map[string]map[string]bool{}
	index := func(table, column string) map[string]bool {
		id := table + "." + column
		if idx, ok := indexes[id]; ok {
			return idx
		}
		idx := map[string]bool{}
		for _, row := range tables[table].rows {
			idx[row.fields[column]] = true
		}
		indexes[id] = idx
		return idx
	}

	skipped := map[string]bool{}
	for _, r := range refs {
		src, ok := tables[r.table]
		if !ok {
			continue
		}
		if _, ok := tables[r.dim]; !ok {
			if !skipped[r.dim] {
				p.notef("%s not dumped; keys into it were not checked", r.dim)
				skipped[r.dim] = true
			}
			continue
		}
		idx := index(r.dim, r.dimKey)
		for _, row := range src.rows {
			if v := row.fields[r.column]; v != "" && !idx[v] {
				p.errorf("%s line %d: %s %s not found in %s", r.table, row.lineNum, r.column, v, r.dim)
			}
		}
	}
	return p
}
