package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/metroflow/internal/domain/model"
)

const (
	colDate       = "date"
	colTime       = "time"
	colLine       = "line"
	colTypeText   = "transaction_type_text"
	colCardNo     = "card_no"
	colLineNumber = "line_number"
	colDirection  = "direction"
)

// TransactionHeader is the header row of the Transaction table.
var TransactionHeader = []string{colDate, colTime, colLine, colTypeText, colStation, colCardNo}

// NormalizedHeader is the header row of the Normalized table.
var NormalizedHeader = append(append([]string(nil), TransactionHeader...), colLineNumber, colDirection)

var transactionColumns = []column{
	col(colDate, "日期"),
	col(colTime, "时间"),
	col(colLine, "地铁线路"),
	col(colTypeText, "交易类型"),
	col(colStation, "站名"),
	col(colCardNo),
}

// The older normalized layout rewrote the line and type columns in place.
var normalizedColumns = append(append([]column(nil), transactionColumns...),
	col(colLineNumber, "地铁线路"),
	col(colDirection, "交易类型"),
)

// ScanTransactions streams a Transaction table.
func ScanTransactions(path string, fn func(model.Transaction) error) error {
	return scanTable(path, transactionColumns, []string{colDate, colTime, colTypeText, colStation, colCardNo},
		func(h header, rec []string) error {
			return fn(transactionFrom(h, rec))
		})
}

// ReadNormalized loads a Normalized table. Rows whose direction is not 0 or 1
// are skipped and counted.
func ReadNormalized(path string) ([]model.NormalizedTransaction, int, error) {
	var out []model.NormalizedTransaction
	skipped := 0
	err := scanTable(path, normalizedColumns, []string{colDate, colTime, colStation, colCardNo, colDirection},
		func(h header, rec []string) error {
			dir, err := strconv.Atoi(strings.TrimSpace(h.get(rec, colDirection)))
			if err != nil || (dir != int(model.Entry) && dir != int(model.Exit)) {
				skipped++
				return nil
			}
			out = append(out, model.NormalizedTransaction{
				Transaction: transactionFrom(h, rec),
				LineNumber:  model.ParseLineID(h.get(rec, colLineNumber)),
				Direction:   model.Direction(dir),
			})
			return nil
		})
	if err != nil {
		return nil, 0, err
	}
	return out, skipped, nil
}

func transactionFrom(h header, rec []string) model.Transaction {
	return model.Transaction{
		Date:     strings.TrimSpace(h.get(rec, colDate)),
		Time:     strings.TrimSpace(h.get(rec, colTime)),
		Line:     h.get(rec, colLine),
		TypeText: h.get(rec, colTypeText),
		Station:  strings.TrimSpace(h.get(rec, colStation)),
		CardNo:   strings.TrimSpace(h.get(rec, colCardNo)),
	}
}

// TransactionRow renders a Transaction table row.
func TransactionRow(tx model.Transaction) []string {
	return []string{tx.Date, tx.Time, tx.Line, tx.TypeText, tx.Station, tx.CardNo}
}

// NormalizedRow renders a Normalized table row.
func NormalizedRow(tx model.NormalizedTransaction) []string {
	return append(TransactionRow(tx.Transaction), tx.LineNumber.String(), strconv.Itoa(int(tx.Direction)))
}

// NewTransactionWriter starts an atomic Transaction table.
func NewTransactionWriter(path string) (*TableWriter, error) {
	w, err := NewTableWriter(path, TransactionHeader)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	return w, nil
}

// NewNormalizedWriter starts an atomic Normalized table.
func NewNormalizedWriter(path string) (*TableWriter, error) {
	w, err := NewTableWriter(path, NormalizedHeader)
	if err != nil {
		return nil, fmt.Errorf("normalized: %w", err)
	}
	return w, nil
}
