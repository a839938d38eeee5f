package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/metroflow/internal/domain/model"
	"github.com/paulmach/orb"
)

const (
	colDominant = "dominant_category"
	colPOIs     = "pois_json"
	numScores   = len(model.StationScore{}.Scores)
)

func scoreColumn(i int) string { return "score_" + strconv.Itoa(i) }

// ScoreHeader is the header row of the Station-Score table.
var ScoreHeader = func() []string {
	h := []string{colStation, colDominant}
	for i := 1; i <= numScores; i++ {
		h = append(h, scoreColumn(i))
	}
	return h
}()

// POIHeader is the header row of the Station-POI table.
var POIHeader = []string{colStation, colPOIs}

var scoreColumns = func() []column {
	cols := []column{col(colStation, "站名"), col(colDominant, "主导类型")}
	for i := 1; i <= numScores; i++ {
		cols = append(cols, col(scoreColumn(i), "类型"+strconv.Itoa(i)+"得分"))
	}
	return cols
}()

var poiColumns = []column{col(colStation, "站名"), col(colPOIs, "POIs")}

// ReadScores loads a Station-Score table in file order.
func ReadScores(path string) ([]model.StationScore, error) {
	var out []model.StationScore
	err := scanTable(path, scoreColumns, []string{colStation, colDominant}, func(h header, rec []string) error {
		name := strings.TrimSpace(h.get(rec, colStation))
		if name == "" {
			return nil
		}
		s := model.StationScore{Station: name}
		if d, ok := parseFloat(h.get(rec, colDominant)); ok {
			s.Dominant = int(d)
		}
		for i := range s.Scores {
			if v, ok := parseFloat(h.get(rec, scoreColumn(i+1))); ok {
				s.Scores[i] = v
			}
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScoreRow renders a Station-Score table row.
func ScoreRow(s model.StationScore) []string {
	row := []string{s.Station, strconv.Itoa(s.Dominant)}
	for _, v := range s.Scores {
		row = append(row, formatFloat(v))
	}
	return row
}

type poiLocationJSON struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Type         int     `json:"type"`
	OriginalType string  `json:"original_type"`
}

type poiJSON struct {
	Name     string          `json:"name"`
	Location poiLocationJSON `json:"location"`
}

// EncodePOIs serializes POIs for the pois_json column. Non-ASCII text is
// kept as is.
func EncodePOIs(pois []model.POIRecord) (string, error) {
	items := make([]poiJSON, 0, len(pois))
	for _, p := range pois {
		items = append(items, poiJSON{
			Name: p.Name,
			Location: poiLocationJSON{
				X:            p.Location.Lon(),
				Y:            p.Location.Lat(),
				Type:         p.Category,
				OriginalType: p.OriginalType,
			},
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DecodePOIs parses a pois_json value. An empty value is an empty list.
func DecodePOIs(s string) ([]model.POIRecord, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var items []poiJSON
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("%w: pois_json: %w", ErrMalformedTable, err)
	}
	out := make([]model.POIRecord, 0, len(items))
	for _, it := range items {
		out = append(out, model.POIRecord{
			Name:         it.Name,
			Location:     orb.Point{it.Location.X, it.Location.Y},
			Category:     it.Location.Type,
			OriginalType: it.Location.OriginalType,
		})
	}
	return out, nil
}

// ReadPOIs loads a Station-POI table in file order.
func ReadPOIs(path string) ([]model.StationPOIs, error) {
	var out []model.StationPOIs
	err := scanTable(path, poiColumns, []string{colStation, colPOIs}, func(h header, rec []string) error {
		name := strings.TrimSpace(h.get(rec, colStation))
		if name == "" {
			return nil
		}
		pois, err := DecodePOIs(h.get(rec, colPOIs))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, model.StationPOIs{Station: name, POIs: pois})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// POIRow renders a Station-POI table row.
func POIRow(p model.StationPOIs) ([]string, error) {
	enc, err := EncodePOIs(p.POIs)
	if err != nil {
		return nil, err
	}
	return []string{p.Station, enc}, nil
}
