package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flightyield/seatcast/internal/metrics"
	"github.com/flightyield/seatcast/internal/models"
)

// WeekendSet defines which departure weekdays count as weekend. One set is
// configured at startup and used everywhere a weekend distinction is made.
type WeekendSet map[time.Weekday]bool

func DefaultWeekendSet() WeekendSet {
	return WeekendSet{time.Saturday: true, time.Sunday: true}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekendSet builds a WeekendSet from day names, e.g. ["fri", "sat"].
// An empty list yields the Saturday+Sunday default.
func ParseWeekendSet(days []string) (WeekendSet, error) {
	if len(days) == 0 {
		return DefaultWeekendSet(), nil
	}
	set := WeekendSet{}
	for _, d := range days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", d)
		}
		set[wd] = true
	}
	return set, nil
}

func (w WeekendSet) Contains(d time.Weekday) bool {
	return w[d]
}

func (w WeekendSet) String() string {
	var names []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w[d] {
			names = append(names, d.String()[:3])
		}
	}
	return strings.Join(names, ",")
}

// offsetPattern matches snapshot column names that carry a days-before-
// departure reading, e.g. "X45", "offset_45" or plain "45". The trailing
// integer is the offset.
var offsetPattern = regexp.MustCompile(`^\D*(\d+)$`)

type offsetColumn struct {
	index  int
	offset int
}

type snapshotSchema struct {
	route    int
	date     int
	capacity int
	offsets  []offsetColumn
}

// resolveSchema maps header names to column roles. Columns are identified
// by name only; positions carry no meaning.
func resolveSchema(header []string) (*snapshotSchema, error) {
	s := &snapshotSchema{route: -1, date: -1, capacity: -1}
	seen := map[int]string{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "route", "flight_route", "flight":
			if s.route >= 0 {
				return nil, fmt.Errorf("duplicate route column %q", name)
			}
			s.route = i
		case "departure_date", "departure", "date_of_departure":
			if s.date >= 0 {
				return nil, fmt.Errorf("duplicate departure date column %q", name)
			}
			s.date = i
		case "capacity", "target_seats", "total_seats":
			if s.capacity >= 0 {
				return nil, fmt.Errorf("duplicate capacity column %q", name)
			}
			s.capacity = i
		default:
			m := offsetPattern.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			off, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if prev, ok := seen[off]; ok {
				return nil, fmt.Errorf("columns %q and %q both map to offset %d", prev, name, off)
			}
			seen[off] = name
			s.offsets = append(s.offsets, offsetColumn{index: i, offset: off})
		}
	}
	if s.route < 0 {
		return nil, fmt.Errorf("no route column in header")
	}
	if s.date < 0 {
		return nil, fmt.Errorf("no departure date column in header")
	}
	if len(s.offsets) == 0 {
		return nil, fmt.Errorf("no offset columns in header")
	}
	return s, nil
}

func missingCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "na", "n/a", "nan", "null":
		return true
	}
	return false
}

// ParseSnapshots melts a wide snapshot CSV into one flight plus one curve
// point per offset column. Empty cells become null seats, never zero.
// Malformed departure dates abort the load with the offending line number.
func ParseSnapshots(r io.Reader, dataset string, weekend WeekendSet) ([]models.Flight, []models.CurvePoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	schema, err := resolveSchema(header)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve schema: %w", err)
	}

	var flights []models.Flight
	var points []models.CurvePoint
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		route := strings.TrimSpace(record[schema.route])
		if route == "" {
			return nil, nil, fmt.Errorf("line %d: empty route", line)
		}
		dateStr := strings.TrimSpace(record[schema.date])
		departure, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: departure date %q: %w", line, dateStr, err)
		}

		flight := models.Flight{
			Route:         route,
			DepartureDate: departure,
			Dataset:       dataset,
			Weekend:       weekend.Contains(departure.Weekday()),
		}
		if schema.capacity >= 0 {
			if cell := strings.TrimSpace(record[schema.capacity]); !missingCell(cell) {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, nil, fmt.Errorf("line %d: capacity %q: %w", line, cell, err)
				}
				flight.Capacity = sql.NullInt64{Int64: int64(math.Round(v)), Valid: true}
			}
		}

		for _, oc := range schema.offsets {
			p := models.CurvePoint{
				Route:         route,
				DepartureDate: departure,
				Offset:        oc.offset,
				Weekend:       flight.Weekend,
			}
			if cell := strings.TrimSpace(record[oc.index]); !missingCell(cell) {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, nil, fmt.Errorf("line %d: seats %q at offset %d: %w", line, cell, oc.offset, err)
				}
				p.Seats = sql.NullInt64{Int64: int64(math.Round(v)), Valid: true}
			}
			points = append(points, p)
		}
		flights = append(flights, flight)
	}

	sort.Slice(flights, func(i, j int) bool {
		if !flights[i].DepartureDate.Equal(flights[j].DepartureDate) {
			return flights[i].DepartureDate.Before(flights[j].DepartureDate)
		}
		return flights[i].Route < flights[j].Route
	})
	sort.Slice(points, func(i, j int) bool {
		if !points[i].DepartureDate.Equal(points[j].DepartureDate) {
			return points[i].DepartureDate.Before(points[j].DepartureDate)
		}
		if points[i].Route != points[j].Route {
			return points[i].Route < points[j].Route
		}
		return points[i].Offset < points[j].Offset
	})

	metrics.SnapshotRowsTotal.WithLabelValues(dataset).Add(float64(len(points)))
	return flights, points, nil
}
