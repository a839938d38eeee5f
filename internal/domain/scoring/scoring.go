// Package scoring accumulates per-category POI weights for a station and
// derives the dominant category and chart-ready display values.
package scoring

import (
	"math"

	"github.com/okian/metroflow/internal/domain/poi"
)

const (
	maxDisplayValue = 100
	// Small-signal charts are boosted when every value stays under this.
	boostThreshold = 10
	boostFactor    = 3
)

// Vector holds accumulated weights indexed by category-1.
type Vector [poi.NumCategories]float64

// Add increments cat by w. Invalid categories are ignored.
func (v *Vector) Add(cat poi.Category, w float64) {
	if !cat.Valid() {
		return
	}
	v[cat-1] += w
}

// Get returns the accumulated weight of cat.
func (v Vector) Get(cat poi.Category) float64 {
	if !cat.Valid() {
		return 0
	}
	return v[cat-1]
}

// Dominant returns the argmax category, the lowest one on ties, or poi.None
// when every score is zero.
func (v Vector) Dominant() poi.Category {
	best := poi.None
	bestScore := 0.0
	for i, s := range v {
		if s > bestScore {
			best = poi.Category(i + 1)
			bestScore = s
		}
	}
	return best
}

// Scorer weighs POIs into a Vector using a Classifier.
type Scorer struct {
	classifier *poi.Classifier
}

// NewScorer creates a Scorer.
func NewScorer(c *poi.Classifier) *Scorer {
	return &Scorer{classifier: c}
}

// Score returns the weight and category of a POI type code. The category comes
// from the code prefix and falls back to the category of the search group that
// returned it. ok is false when the POI carries no weight and must be dropped.
func (s *Scorer) Score(code string, group poi.Category) (poi.Category, float64, bool) {
	w := s.classifier.Weight(code)
	if w <= 0 {
		return poi.None, 0, false
	}
	cat, found := s.classifier.Classify(code)
	if !found {
		cat = group
	}
	return cat, w, true
}

// Scaler maps raw scores to 0-100 display values using a min-max range over
// ln(1+score) taken from the whole dataset.
type Scaler struct {
	min, max float64
}

// NewScaler computes the log range across every vector.
func NewScaler(vectors []Vector) Scaler {
	if len(vectors) == 0 {
		return Scaler{}
	}
	s := Scaler{min: math.Inf(1), max: math.Inf(-1)}
	for _, v := range vectors {
		for _, x := range v {
			l := math.Log1p(x)
			s.min = math.Min(s.min, l)
			s.max = math.Max(s.max, l)
		}
	}
	return s
}

// Scale returns display values for v. If the largest value is under 10 all
// values are multiplied by 3.
func (s Scaler) Scale(v Vector) [poi.NumCategories]float64 {
	var out [poi.NumCategories]float64
	span := s.max - s.min
	if span <= 0 {
		return out
	}
	top := 0.0
	for i, x := range v {
		scaled := (math.Log1p(x) - s.min) / span * maxDisplayValue
		out[i] = math.Max(0, math.Min(maxDisplayValue, scaled))
		top = math.Max(top, out[i])
	}
	if top < boostThreshold {
		for i := range out {
			out[i] *= boostFactor
		}
	}
	return out
}
