// Package transit turns raw smart-card records into normalized subway
// transactions.
package transit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/metroflow/internal/domain/model"
)

// ErrMalformed marks a record that cannot be parsed.
var ErrMalformed = errors.New("malformed record")

const (
	subwayMarker = "地铁"
	entryMarker  = "入站"
	exitMarker   = "出站"
)

var (
	chineseLinePattern = regexp.MustCompile(`地铁([一二三四五六七八九十]+)号线`)
	arabicLinePattern  = regexp.MustCompile(`地铁(\d+)号线`)

	chineseNumerals = map[string]int{
		"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
		"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
		"十一": 11, "十二": 12, "十三": 13, "十四": 14, "十五": 15,
		"十六": 16, "十七": 17, "十八": 18, "十九": 19, "二十": 20,
	}
)

// text accepts JSON strings and numbers alike.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(b)
	return nil
}

type rawEntry struct {
	DealDate    text `json:"deal_date"`
	DealType    text `json:"deal_type"`
	CompanyName text `json:"company_name"`
	Station     text `json:"station"`
	CardNo      text `json:"card_no"`
}

type rawRecord struct {
	Data []rawEntry `json:"data"`
}

// DecodeLine parses one line of the raw export and returns its subway rows.
// Bus rows are dropped; skipped reports how many.
func DecodeLine(line []byte) (rows []model.Transaction, skipped int, err error) {
	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, e := range rec.Data {
		if !strings.Contains(string(e.DealType), subwayMarker) {
			skipped++
			continue
		}
		date, tm := SplitDateTime(string(e.DealDate))
		rows = append(rows, model.Transaction{
			Date:     date,
			Time:     tm,
			Line:     string(e.CompanyName),
			TypeText: string(e.DealType),
			Station:  string(e.Station),
			CardNo:   string(e.CardNo),
		})
	}
	return rows, skipped, nil
}

// SplitDateTime splits on the first space. Without a space the whole value is
// the date and the time is empty.
func SplitDateTime(s string) (date, tm string) {
	date, tm, _ = strings.Cut(s, " ")
	return date, tm
}

// ParseLine extracts the line number from a line name such as "地铁十三号线"
// or "地铁3号线". Chinese numerals beyond the 1-20 table come back as their
// numeral text; names matching neither pattern come back unchanged.
func ParseLine(name string) model.LineID {
	if m := chineseLinePattern.FindStringSubmatch(name); m != nil {
		if n, ok := chineseNumerals[m[1]]; ok {
			return model.LineID{Number: n, Numeric: true}
		}
		return model.LineID{Text: m[1]}
	}
	if m := arabicLinePattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return model.LineID{Number: n, Numeric: true}
		}
	}
	return model.LineID{Text: name}
}

// ParseDirection maps type text to a direction. Anything without the entry
// marker is an exit; known is false when the text has neither marker.
func ParseDirection(typeText string) (dir model.Direction, known bool) {
	if strings.Contains(typeText, entryMarker) {
		return model.Entry, true
	}
	return model.Exit, strings.Contains(typeText, exitMarker)
}

// Normalize derives the line number and direction of a transaction. The
// second result mirrors ParseDirection's known flag.
func Normalize(tx model.Transaction) (model.NormalizedTransaction, bool) {
	dir, known := ParseDirection(tx.TypeText)
	return model.NormalizedTransaction{
		Transaction: tx,
		LineNumber:  ParseLine(tx.Line),
		Direction:   dir,
	}, known
}
