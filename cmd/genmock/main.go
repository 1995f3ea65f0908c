// Command genmock writes synthetic crash-report exports in the layout of the
// county portal's CSV downloads. The files can stand in for LOCAL_DATA_DIR
// when running the pipeline offline with LOCAL_FILES=true.
//
// Usage:
//
//	go run ./cmd/genmock -out emergency -month 2023-12 -crashes 200
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
)

// fileTimeLayout matches the timestamps of portal CSV exports.
const fileTimeLayout = "01/02/2006 03:04:05 PM"

var (
	incidentHeader = []string{
		"Report Number", "Local Case Number", "Agency Name", "ACRS Report Type", "Crash Date/Time",
		"Hit/Run", "Route Type", "Lane Direction", "Lane Number", "Number of Lanes", "Road Grade",
		"Nontraffic", "Road Name", "Cross-Street Type", "Cross-Street Name", "Off-Road Description",
		"At Fault", "Collision Type", "Surface Condition", "Light", "Traffic Control", "Junction",
		"Intersection Type", "Road Alignment", "Road Condition", "Road Division", "Latitude", "Longitude",
	}
	driverHeader = []string{
		"Report Number", "Crash Date/Time", "Vehicle ID", "Driver At Fault", "Injury Severity",
		"Driver Substance Abuse", "Driver Distracted By", "Vehicle Body Type", "Vehicle Movement",
		"Vehicle Going Dir", "Vehicle Damage Extent", "Speed Limit", "Parked Vehicle", "Vehicle Year",
		"Vehicle Make", "Vehicle Model",
	}
	nonMotoristHeader = []string{"Report Number", "Crash Date/Time", "Injury Severity"}
)

var (
	agencies   = []string{"Montgomery County Police", "Rockville Police Departme", "Gaithersburg Police Depar", "Takoma Park Police Depart"}
	reportType = []string{"Property Damage Crash", "Injury Crash", "Fatal Crash"}
	routes     = []string{"Maryland (State)", "County", "Municipality", "US (State)", ""}
	roads      = []string{"GEORGIA AVE", "ROCKVILLE PIKE", "NEW HAMPSHIRE AVE", "COLESVILLE RD", "RANDOLPH RD", "UNIVERSITY BLVD"}
	directions = []string{"North", "South", "East", "West", "Unknown"}
	collisions = []string{"SAME DIR REAR END", "STRAIGHT MOVEMENT ANGLE", "SINGLE VEHICLE", "HEAD ON", "SIDESWIPE"}
	surfaces   = []string{"DRY", "WET", "ICE", "N/A"}
	lights     = []string{"DAYLIGHT", "DARK LIGHTS ON", "DUSK", "DAWN"}
	controls   = []string{"NO CONTROLS", "TRAFFIC SIGNAL", "STOP SIGN"}
	severities = []string{"NO APPARENT INJURY", "POSSIBLE INJURY", "SUSPECTED MINOR INJURY", "SUSPECTED SERIOUS INJURY", "FATAL INJURY"}
	substances = []string{"NONE DETECTED", "ALCOHOL PRESENT", "ALCOHOL CONTRIBUTED", "COMBINED SUBSTANCE PRESENT", "UNKNOWN"}
	distracted = []string{"NOT DISTRACTED", "LOOKED BUT DID NOT SEE", "INATTENTIVE OR LOST IN THOUGHT", "UNKNOWN"}
	bodyTypes  = []string{"PASSENGER CAR", "(SPORT) UTILITY VEHICLE", "PICKUP TRUCK", "TRANSIT BUS", "MOTORCYCLE", "POLICE VEHICLE/EMERGENCY"}
	movements  = []string{"MOVING CONSTANT SPEED", "SLOWING OR STOPPING", "MAKING LEFT TURN", "PARKED"}
	damage     = []string{"NO DAMAGE", "SUPERFICIAL", "FUNCTIONAL", "DISABLING", "DESTROYED"}
)

// vehicleModels pairs raw makes, misspellings included, with raw model names.
var vehicleModels = []struct{ make, model string }{
	{"TOYOTA", "CAMRY"}, {"TOYT", "COROLLA"}, {"HONDA", "CIVIC"}, {"HOND", "ACCORD"},
	{"FORD", "F150"}, {"NISSAN", "ALTIMA"}, {"CHEVROLET", "MALIBU"}, {"SUBARU", "OUTBACK"},
}

type options struct {
	month   time.Time
	crashes int
	seed    uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "emergency", "output directory for the dataset exports")
	month := flag.String("month", "2023-12", "month the generated crashes fall in (YYYY-MM)")
	crashes := flag.Int("crashes", 200, "number of crash reports to generate")
	seed := flag.Uint64("seed", 42, "random seed for reproducible output")
	flag.Parse()

	m, err := time.Parse("2006-01", *month)
	if err != nil {
		return fmt.Errorf("invalid -month %q: %w", *month, err)
	}
	if *crashes < 1 {
		return fmt.Errorf("-crashes must be positive")
	}

	counts, err := generate(*out, options{month: m, crashes: *crashes, seed: *seed})
	if err != nil {
		return err
	}
	for _, d := range []domain.Dataset{domain.DatasetIncidents, domain.DatasetDrivers, domain.DatasetNonMotorists} {
		log.Printf("%s: %d rows", d, counts[d])
	}
	return nil
}

// generate writes one CSV per dataset into dir and returns the row counts.
// Output depends only on opts.
func generate(dir string, opts options) (map[domain.Dataset]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	pick := func(vals []string) string { return vals[rng.IntN(len(vals))] }
	yesNo := func(p float64) string {
		if rng.Float64() < p {
			return "Yes"
		}
		return "No"
	}

	// Crashes fall between the first and the last hour of the month, inclusive.
	hours := int(opts.month.AddDate(0, 1, 0).Sub(opts.month).Hours())

	var incidents, drivers, nonMotorists [][]string
	for i := range opts.crashes {
		report := fmt.Sprintf("MCP%04d%04d", opts.month.Year()%10000, i+1)
		ts := opts.month.Add(time.Duration(rng.IntN((hours-1)*60+1)) * time.Minute).Format(fileTimeLayout)

		road := pick(roads)
		cross := pick(roads)
		offRoad := ""
		if rng.Float64() < 0.05 {
			offRoad = "PARKING LOT"
		}
		lanes := 1 + rng.IntN(4)
		incidents = append(incidents, []string{
			report, strconv.Itoa(230000000 + i), pick(agencies), pick(reportType), ts,
			yesNo(0.1), pick(routes), pick(directions), strconv.Itoa(1 + rng.IntN(lanes)), strconv.Itoa(lanes), "LEVEL",
			yesNo(0.02), road, pick(routes), cross, offRoad,
			"DRIVER", pick(collisions), pick(surfaces), pick(lights), pick(controls), "NON INTERSECTION",
			"N/A", "STRAIGHT", "NO DEFECTS", "TWO-WAY, NOT DIVIDED",
			ftoa(38.95 + rng.Float64()*0.4), ftoa(-77.45 + rng.Float64()*0.5),
		})

		for v := range 1 + rng.IntN(3) {
			vm := vehicleModels[rng.IntN(len(vehicleModels))]
			drivers = append(drivers, []string{
				report, ts, fmt.Sprintf("%08x-%04x", rng.Uint32(), v), yesNo(0.5), pick(severities),
				pick(substances), pick(distracted), pick(bodyTypes), pick(movements),
				pick(directions), pick(damage), strconv.Itoa(25 + 5*rng.IntN(6)), yesNo(0.05), strconv.Itoa(2005 + rng.IntN(18)),
				vm.make, vm.model,
			})
		}

		if rng.Float64() < 0.1 {
			nonMotorists = append(nonMotorists, []string{report, ts, pick(severities)})
		}
	}

	files := []struct {
		dataset domain.Dataset
		header  []string
		rows    [][]string
	}{
		{domain.DatasetIncidents, incidentHeader, incidents},
		{domain.DatasetDrivers, driverHeader, drivers},
		{domain.DatasetNonMotorists, nonMotoristHeader, nonMotorists},
	}

	counts := make(map[domain.Dataset]int, len(files))
	for _, f := range files {
		if err := writeCSV(filepath.Join(dir, string(f.dataset)+".csv"), f.header, f.rows); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.dataset, err)
		}
		counts[f.dataset] = len(f.rows)
	}
	return counts, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
