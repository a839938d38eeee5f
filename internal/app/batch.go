package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/okian/metroflow/internal/adapters/repository"
	"github.com/okian/metroflow/internal/domain/coord"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/transit"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/okian/metroflow/pkg/metrics"
)

// Transaction outcomes reported in metrics.
const (
	outcomeKept             = "kept"
	outcomeNonSubway        = "non_subway"
	outcomeMalformed        = "malformed"
	outcomeNormalized       = "normalized"
	outcomeUnknownDirection = "unknown_direction"

	maxRecordLineBytes = 64 << 20
)

// TransformReport summarizes a raw export conversion.
type TransformReport struct {
	Lines     int
	Kept      int
	NonSubway int
	Malformed int
}

// Transform converts a line-delimited JSON export into the Transaction table,
// keeping subway rows only. Malformed lines are logged and skipped.
func Transform(ctx context.Context, rawPath, outPath string) (TransformReport, error) {
	log := logger.Named("transform")
	var rep TransformReport

	in, err := os.Open(rawPath)
	if err != nil {
		return rep, fmt.Errorf("open raw records: %w", err)
	}
	defer in.Close()

	w, err := repository.NewTransactionWriter(outPath)
	if err != nil {
		return rep, err
	}
	defer w.Abort()

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1<<20), maxRecordLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Lines++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		rows, skipped, err := transit.DecodeLine(line)
		if err != nil {
			rep.Malformed++
			metrics.RecordTransaction(outcomeMalformed)
			log.Warn(ctx, "skipping malformed line", logger.Int("line", rep.Lines), logger.Error(err))
			continue
		}
		rep.NonSubway += skipped
		for i := 0; i < skipped; i++ {
			metrics.RecordTransaction(outcomeNonSubway)
		}
		for _, tx := range rows {
			if err := w.Write(repository.TransactionRow(tx)); err != nil {
				return rep, err
			}
			rep.Kept++
			metrics.RecordTransaction(outcomeKept)
		}
	}
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("read raw records: %w", err)
	}
	if err := w.Commit(); err != nil {
		return rep, err
	}
	log.Info(ctx, "transactions written",
		logger.String("path", outPath),
		logger.Int("kept", rep.Kept),
		logger.Int("non_subway", rep.NonSubway),
		logger.Int("malformed", rep.Malformed),
	)
	return rep, nil
}

// NormalizeReport summarizes a normalization run.
type NormalizeReport struct {
	Rows             int
	UnknownDirection int
	UnparsedLine     int
}

// Normalize derives line numbers and directions for the Transaction table.
// Type texts with neither marker still become exits but are counted.
func Normalize(ctx context.Context, inPath, outPath string) (NormalizeReport, error) {
	log := logger.Named("normalize")
	var rep NormalizeReport

	w, err := repository.NewNormalizedWriter(outPath)
	if err != nil {
		return rep, err
	}
	defer w.Abort()

	err = repository.ScanTransactions(inPath, func(tx model.Transaction) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, known := transit.Normalize(tx)
		rep.Rows++
		metrics.RecordTransaction(outcomeNormalized)
		if !known {
			rep.UnknownDirection++
			metrics.RecordTransaction(outcomeUnknownDirection)
			log.Debug(ctx, "type text has no direction marker",
				logger.String("type", tx.TypeText),
				logger.String("station", tx.Station),
			)
		}
		if !n.LineNumber.Numeric {
			rep.UnparsedLine++
		}
		return w.Write(repository.NormalizedRow(n))
	})
	if err != nil {
		return rep, fmt.Errorf("normalize: %w", err)
	}
	if err := w.Commit(); err != nil {
		return rep, err
	}
	log.Info(ctx, "normalized transactions written",
		logger.String("path", outPath),
		logger.Int("rows", rep.Rows),
		logger.Int("unknown_direction", rep.UnknownDirection),
		logger.Int("unparsed_line", rep.UnparsedLine),
	)
	return rep, nil
}

// ConvertStations rewrites a GCJ-02 Station table in WGS-84. Stations
// without coordinates stay empty.
func ConvertStations(ctx context.Context, inPath, outPath string) (int, error) {
	stations, err := repository.ReadStations(inPath)
	if err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	converted := 0
	for i := range stations {
		stations[i].Location = coord.ToStandardDatum(stations[i].Location)
		if stations[i].Location != nil {
			converted++
		}
	}
	if err := repository.WriteStations(outPath, stations); err != nil {
		return 0, err
	}
	logger.Named("convert").Info(ctx, "stations converted",
		logger.String("path", outPath),
		logger.Int("stations", len(stations)),
		logger.Int("converted", converted),
	)
	return converted, nil
}

// LoadStations reads a Station table, treating a missing file as empty.
func LoadStations(path string) ([]model.Station, error) {
	stations, err := repository.ReadStations(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return stations, err
}

func scanTransactions(ctx context.Context, path string, fn func(model.Transaction)) error {
	return repository.ScanTransactions(path, func(tx model.Transaction) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(tx)
		return nil
	})
}
