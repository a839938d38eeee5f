package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/okian/metroflow/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// SnapshotPaths names the tables a Snapshot is built from.
type SnapshotPaths struct {
	Stations   string
	Scores     string
	POIs       string
	Normalized string
}

// Snapshot is an immutable view of every served table. Readers share it and
// must not modify it.
type Snapshot struct {
	ID       string
	LoadedAt time.Time

	Stations     []model.Station
	Scores       map[string]model.StationScore
	POIs         map[string]model.StationPOIs
	Transactions []model.NormalizedTransaction

	// Missing lists tables that did not exist at load time.
	Missing []string
	// SkippedRows counts normalized rows with an invalid direction.
	SkippedRows int
}

// Station returns the station row named name.
func (s *Snapshot) Station(name string) (model.Station, error) {
	for _, st := range s.Stations {
		if st.Name == name {
			return st, nil
		}
	}
	return model.Station{}, fmt.Errorf("station %q: %w", name, ErrNotFound)
}

// LoadSnapshot reads all tables concurrently into a new Snapshot. A missing
// table loads as empty and is listed in Missing; any other error fails the load.
func LoadSnapshot(ctx context.Context, paths SnapshotPaths) (*Snapshot, error) {
	snap := &Snapshot{
		ID:       uuid.NewString(),
		LoadedAt: time.Now(),
		Scores:   make(map[string]model.StationScore),
		POIs:     make(map[string]model.StationPOIs),
	}

	var (
		stations []model.Station
		scores   []model.StationScore
		pois     []model.StationPOIs
		txs      []model.NormalizedTransaction
		skipped  int
		missing  [4]bool
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stations, err = ReadStations(paths.Stations)
		return tolerateMissing(err, &missing[0])
	})
	g.Go(func() error {
		var err error
		scores, err = ReadScores(paths.Scores)
		return tolerateMissing(err, &missing[1])
	})
	g.Go(func() error {
		var err error
		pois, err = ReadPOIs(paths.POIs)
		return tolerateMissing(err, &missing[2])
	})
	g.Go(func() error {
		var err error
		txs, skipped, err = ReadNormalized(paths.Normalized)
		return tolerateMissing(err, &missing[3])
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	for i, p := range []string{paths.Stations, paths.Scores, paths.POIs, paths.Normalized} {
		if missing[i] {
			snap.Missing = append(snap.Missing, p)
		}
	}

	// Stations without coordinates are not served.
	for _, st := range stations {
		if st.HasLocation() {
			snap.Stations = append(snap.Stations, st)
		}
	}
	for _, sc := range scores {
		snap.Scores[sc.Station] = sc
	}
	for _, p := range pois {
		snap.POIs[p.Station] = p
	}
	snap.Transactions = txs
	snap.SkippedRows = skipped
	return snap, nil
}

func tolerateMissing(err error, missing *bool) error {
	if errors.Is(err, os.ErrNotExist) {
		*missing = true
		return nil
	}
	return err
}
