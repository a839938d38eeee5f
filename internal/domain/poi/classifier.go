package poi

const prefixLen = 4

// Classifier resolves weights and categories from immutable tables.
type Classifier struct {
	weights  map[string]float64
	prefixes map[string]Category
}

// NewClassifier copies the given tables. Nil tables fall back to the defaults;
// prefix entries outside the category range are ignored.
func NewClassifier(weights map[string]float64, prefixes map[string]int) *Classifier {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes()
	}
	c := &Classifier{
		weights:  make(map[string]float64, len(weights)),
		prefixes: make(map[string]Category, len(prefixes)),
	}
	for code, w := range weights {
		c.weights[code] = w
	}
	for prefix, id := range prefixes {
		if cat := Category(id); cat.Valid() {
			c.prefixes[prefix] = cat
		}
	}
	return c
}

// Weight returns the exact weight of code, else the weight of its "00"
// coarse code, else 0.
func (c *Classifier) Weight(code string) float64 {
	if w, ok := c.weights[code]; ok {
		return w
	}
	if len(code) >= prefixLen {
		if w, ok := c.weights[code[:prefixLen]+"00"]; ok {
			return w
		}
	}
	return 0
}

// Classify maps a code to its category by 4-character prefix. ok is false
// when the prefix is unknown.
func (c *Classifier) Classify(code string) (Category, bool) {
	if len(code) < prefixLen {
		return None, false
	}
	cat, ok := c.prefixes[code[:prefixLen]]
	return cat, ok
}

// Codes returns every code with an exact weight.
func (c *Classifier) Codes() []string {
	out := make([]string, 0, len(c.weights))
	for code := range c.weights {
		out = append(out, code)
	}
	return out
}
