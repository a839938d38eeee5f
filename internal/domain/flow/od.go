package flow

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/okian/metroflow/internal/domain/model"
)

const (
	topN = 5
	// Half-hour buckets used by station analysis windows.
	analysisWidth = 30
	// WholeDaySlot selects the whole day.
	WholeDaySlot = 24
	// The dashboard's time slot 0 starts at 03:30, i.e. half-hour bucket 7.
	slotOffset = 7
	noSlot     = -1
)

// Window is a half-open range of half-hour buckets, or the whole day when All
// is set.
type Window struct {
	From, To int
	All      bool
}

// WholeDay returns a window covering every record of the day.
func WholeDay() Window { return Window{All: true} }

// WindowForSlot maps a dashboard time slot to a window. ok is false for
// values outside 0..WholeDaySlot.
func WindowForSlot(slot int) (Window, bool) {
	switch {
	case slot == WholeDaySlot:
		return WholeDay(), true
	case slot >= 0 && slot < WholeDaySlot:
		return Window{From: slot + slotOffset, To: slot + slotOffset + 1}, true
	default:
		return Window{}, false
	}
}

func (w Window) contains(slot int) bool {
	if w.All {
		return true
	}
	return slot != noSlot && slot >= w.From && slot < w.To
}

// StationCount is a counterpart station and how many records it has.
type StationCount struct {
	Station string
	Count   int
}

// Ranking is an ordered list of station counts that encodes as a JSON object
// keeping its order.
type Ranking []StationCount

// MarshalJSON implements json.Marshaler.
func (r Ranking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.Station)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(sc.Count)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Counterparts is the top-5 split of counterpart stations.
type Counterparts struct {
	Top5   Ranking `json:"top5"`
	Others int     `json:"others"`
}

// Analysis is the origin-destination summary of a station.
type Analysis struct {
	Station       string       `json:"station_name"`
	TotalEntries  int          `json:"total_entries"`
	TotalExits    int          `json:"total_exits"`
	EntryStations Counterparts `json:"entry_stations"`
	ExitStations  Counterparts `json:"exit_stations"`
}

type dayRecord struct {
	station string
	card    string
	dir     model.Direction
	slot    int
}

// Day indexes one calendar day of transactions for OD queries.
type Day struct {
	records  []dayRecord
	byCard   map[string][]int
	stations map[string]struct{}
}

// NewDay indexes the transactions on date. Rows with unparseable times are
// kept for whole-day queries only.
func NewDay(txs []model.NormalizedTransaction, date string) *Day {
	d := &Day{byCard: make(map[string][]int), stations: make(map[string]struct{})}
	for _, tx := range txs {
		if tx.Date != date {
			continue
		}
		slot, err := Slot(tx.Time, analysisWidth)
		if err != nil {
			slot = noSlot
		}
		d.byCard[tx.CardNo] = append(d.byCard[tx.CardNo], len(d.records))
		d.records = append(d.records, dayRecord{station: tx.Station, card: tx.CardNo, dir: tx.Direction, slot: slot})
		d.stations[tx.Station] = struct{}{}
	}
	return d
}

// Has reports whether the day has any record at station.
func (d *Day) Has(station string) bool {
	_, ok := d.stations[station]
	return ok
}

// Len returns the number of indexed records.
func (d *Day) Len() int { return len(d.records) }

// Analyze finds the cards that exited station within w and ranks the stations
// those cards entered at over the whole day, and symmetrically for entries.
// Totals are distinct seed cards; counterpart counts are record counts.
func (d *Day) Analyze(station string, w Window) Analysis {
	exitCards := d.seeds(station, model.Exit, w)
	entryCards := d.seeds(station, model.Entry, w)
	return Analysis{
		Station:       station,
		TotalEntries:  len(entryCards),
		TotalExits:    len(exitCards),
		EntryStations: d.counterparts(exitCards, model.Entry),
		ExitStations:  d.counterparts(entryCards, model.Exit),
	}
}

func (d *Day) seeds(station string, dir model.Direction, w Window) []string {
	seen := make(map[string]struct{})
	var cards []string
	for _, r := range d.records {
		if r.station != station || r.dir != dir || !w.contains(r.slot) {
			continue
		}
		if _, ok := seen[r.card]; ok {
			continue
		}
		seen[r.card] = struct{}{}
		cards = append(cards, r.card)
	}
	return cards
}

func (d *Day) counterparts(cards []string, dir model.Direction) Counterparts {
	freq := make(map[string]int)
	for _, card := range cards {
		for _, i := range d.byCard[card] {
			if r := d.records[i]; r.dir == dir {
				freq[r.station]++
			}
		}
	}
	ranked := make(Ranking, 0, len(freq))
	for name, n := range freq {
		ranked = append(ranked, StationCount{Station: name, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Station < ranked[j].Station
	})

	out := Counterparts{Top5: ranked}
	if len(ranked) > topN {
		out.Top5 = ranked[:topN]
		for _, sc := range ranked[topN:] {
			out.Others += sc.Count
		}
	}
	return out
}
