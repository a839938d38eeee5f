// Package model contains the entities shared across metroflow layers.
package model

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Direction is the binary transaction direction.
type Direction int

const (
	// Entry is a tap-in.
	Entry Direction = 0
	// Exit is a tap-out, and the fallback for any non-entry text.
	Exit Direction = 1
)

// Station is a subway station. Location is nil when no coordinate is known.
type Station struct {
	Name     string
	Location *orb.Point
}

// HasLocation reports whether the station carries a coordinate.
func (s Station) HasLocation() bool { return s.Location != nil }

// POIRecord is a weighted point of interest attached to a station.
type POIRecord struct {
	Name         string
	Location     orb.Point // WGS-84
	Category     int
	OriginalType string
}

// StationScore is the persisted score row of one station.
type StationScore struct {
	Station  string
	Dominant int
	Scores   [7]float64
}

// StationPOIs is the persisted POI row of one station.
type StationPOIs struct {
	Station string
	POIs    []POIRecord
}

// Transaction is one subway row of the Transaction table.
type Transaction struct {
	Date     string
	Time     string
	Line     string
	TypeText string
	Station  string
	CardNo   string
}

// LineID is a parsed line identifier. Number is valid only when Numeric is true;
// otherwise Text carries the unparsed value.
type LineID struct {
	Number  int
	Text    string
	Numeric bool
}

// String renders the identifier the way it is persisted.
func (l LineID) String() string {
	if l.Numeric {
		return strconv.Itoa(l.Number)
	}
	return l.Text
}

// ParseLineID reads a persisted identifier back.
func ParseLineID(s string) LineID {
	if n, err := strconv.Atoi(s); err == nil {
		return LineID{Number: n, Numeric: true}
	}
	return LineID{Text: s}
}

// NormalizedTransaction adds the parsed line and direction to a Transaction.
type NormalizedTransaction struct {
	Transaction
	LineNumber LineID
	Direction  Direction
}

// FlowRow is one (interval, station) entry of the flow table.
type FlowRow struct {
	Interval int    `json:"interval"`
	Station  string `json:"station"`
	Entries  int    `json:"entries"`
	Exits    int    `json:"exits"`
}
