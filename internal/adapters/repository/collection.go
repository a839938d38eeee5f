package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/okian/metroflow/internal/domain/model"
)

// CollectionStore owns the Station-Score and Station-POI tables during a
// collection run. It is the single writer: every Commit rewrites both tables
// atomically under one lock, so an interrupted run keeps all stations
// committed before it.
type CollectionStore struct {
	scoresPath string
	poisPath   string

	mu         sync.Mutex
	scoreOrder []string
	scores     map[string]model.StationScore
	poiOrder   []string
	pois       map[string]model.StationPOIs
}

// OpenCollectionStore loads whatever already exists at the two paths.
// Missing files start empty.
func OpenCollectionStore(scoresPath, poisPath string) (*CollectionStore, error) {
	s := &CollectionStore{
		scoresPath: scoresPath,
		poisPath:   poisPath,
		scores:     make(map[string]model.StationScore),
		pois:       make(map[string]model.StationPOIs),
	}

	scores, err := ReadScores(scoresPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	for _, sc := range scores {
		if _, dup := s.scores[sc.Station]; !dup {
			s.scoreOrder = append(s.scoreOrder, sc.Station)
		}
		s.scores[sc.Station] = sc
	}

	pois, err := ReadPOIs(poisPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load pois: %w", err)
	}
	for _, p := range pois {
		if _, dup := s.pois[p.Station]; !dup {
			s.poiOrder = append(s.poiOrder, p.Station)
		}
		s.pois[p.Station] = p
	}
	return s, nil
}

// Completed lists stations present in both tables.
func (s *CollectionStore) Completed(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, name := range s.scoreOrder {
		if _, ok := s.pois[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// IsCompleted reports whether station is present in both tables.
func (s *CollectionStore) IsCompleted(_ context.Context, station string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inScores := s.scores[station]
	_, inPOIs := s.pois[station]
	return inScores && inPOIs
}

// Len returns the number of rows in the score and POI tables.
func (s *CollectionStore) Len() (scores, pois int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scoreOrder), len(s.poiOrder)
}

// Commit records one station and flushes both tables. A station already in
// a table keeps its row position; new stations are appended. If either write
// fails the in-memory state is rolled back.
func (s *CollectionStore) Commit(_ context.Context, score model.StationScore, pois model.StationPOIs) error {
	if score.Station == "" || score.Station != pois.Station {
		return fmt.Errorf("commit: mismatched station rows %q and %q", score.Station, pois.Station)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevScore, hadScore := s.scores[score.Station]
	prevPOIs, hadPOIs := s.pois[pois.Station]
	scoreOrder, poiOrder := s.scoreOrder, s.poiOrder

	if !hadScore {
		s.scoreOrder = append(s.scoreOrder, score.Station)
	}
	if !hadPOIs {
		s.poiOrder = append(s.poiOrder, pois.Station)
	}
	s.scores[score.Station] = score
	s.pois[pois.Station] = pois

	if err := s.flushLocked(); err != nil {
		s.scoreOrder, s.poiOrder = scoreOrder, poiOrder
		if hadScore {
			s.scores[score.Station] = prevScore
		} else {
			delete(s.scores, score.Station)
		}
		if hadPOIs {
			s.pois[pois.Station] = prevPOIs
		} else {
			delete(s.pois, pois.Station)
		}
		return err
	}
	return nil
}

func (s *CollectionStore) flushLocked() error {
	scoreRows := make([][]string, 0, len(s.scoreOrder))
	for _, name := range s.scoreOrder {
		scoreRows = append(scoreRows, ScoreRow(s.scores[name]))
	}
	poiRows := make([][]string, 0, len(s.poiOrder))
	for _, name := range s.poiOrder {
		row, err := POIRow(s.pois[name])
		if err != nil {
			return fmt.Errorf("encode pois for %s: %w", name, err)
		}
		poiRows = append(poiRows, row)
	}

	// Scores first: a crash between the two renames leaves the station in
	// the score table only, which the resume rule treats as incomplete.
	if err := writeTable(s.scoresPath, ScoreHeader, scoreRows); err != nil {
		return fmt.Errorf("flush scores: %w", err)
	}
	if err := writeTable(s.poisPath, POIHeader, poiRows); err != nil {
		return fmt.Errorf("flush pois: %w", err)
	}
	return nil
}
