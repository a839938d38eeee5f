// Package flow buckets one day of normalized transactions into fixed-width
// intervals and answers origin-destination queries.
package flow

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/metroflow/internal/domain/model"
)

const (
	timeLayout    = "15:04:05"
	minutesPerDay = 24 * 60
)

// SupportedWidth reports whether width is an accepted bucket width in minutes.
func SupportedWidth(width int) bool {
	return width == 10 || width == 30
}

// Slot returns the bucket index of a "HH:MM:SS" time for the given width.
func Slot(clock string, width int) (int, error) {
	if width <= 0 || minutesPerDay%width != 0 {
		return 0, fmt.Errorf("unsupported bucket width %d", width)
	}
	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		return 0, err
	}
	return (t.Hour()*60 + t.Minute()) / width, nil
}

// Buckets returns the number of buckets in a day for width.
func Buckets(width int) int {
	return minutesPerDay / width
}

type counts struct {
	entries int
	exits   int
}

// Table holds per-interval, per-station entry and exit counts for one day.
type Table struct {
	width     int
	intervals map[int]map[string]*counts
	skipped   int
}

// Aggregate counts transactions on date into buckets of width minutes.
// Rows from other dates or with unparseable times are left out; Skipped
// reports the latter.
func Aggregate(txs []model.NormalizedTransaction, date string, width int) (*Table, error) {
	if !SupportedWidth(width) {
		return nil, fmt.Errorf("unsupported bucket width %d", width)
	}
	t := &Table{width: width, intervals: make(map[int]map[string]*counts)}
	for _, tx := range txs {
		if tx.Date != date {
			continue
		}
		slot, err := Slot(tx.Time, width)
		if err != nil {
			t.skipped++
			continue
		}
		byStation, ok := t.intervals[slot]
		if !ok {
			byStation = make(map[string]*counts)
			t.intervals[slot] = byStation
		}
		c, ok := byStation[tx.Station]
		if !ok {
			c = &counts{}
			byStation[tx.Station] = c
		}
		if tx.Direction == model.Entry {
			c.entries++
		} else {
			c.exits++
		}
	}
	return t, nil
}

// Width returns the bucket width in minutes.
func (t *Table) Width() int { return t.width }

// Skipped returns the number of rows with unparseable times.
func (t *Table) Skipped() int { return t.skipped }

// Counts returns the entry and exit counts of a station in an interval,
// zero when there were no rows.
func (t *Table) Counts(interval int, station string) (entries, exits int) {
	if c, ok := t.intervals[interval][station]; ok {
		return c.entries, c.exits
	}
	return 0, 0
}

// Rows lists every station seen in each interval, ordered by interval then
// station name. A station with only entries reports zero exits and vice versa.
func (t *Table) Rows() []model.FlowRow {
	slots := make([]int, 0, len(t.intervals))
	for s := range t.intervals {
		slots = append(slots, s)
	}
	sort.Ints(slots)

	var rows []model.FlowRow
	for _, s := range slots {
		names := make([]string, 0, len(t.intervals[s]))
		for name := range t.intervals[s] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := t.intervals[s][name]
			rows = append(rows, model.FlowRow{Interval: s, Station: name, Entries: c.entries, Exits: c.exits})
		}
	}
	return rows
}
