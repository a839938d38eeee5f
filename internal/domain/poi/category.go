// Package poi classifies provider POI type codes into land-use categories.
package poi

// Category is a functional land-use type. The zero value means "none".
type Category int

// Categories in enumeration order; ties resolve toward the lower value.
const (
	None Category = iota
	Hospital
	School
	Commercial
	ScienceEducation
	Office
	Transportation
	Residential
)

// NumCategories is the number of real categories.
const NumCategories = 7

var categoryNames = [...]string{
	None:             "None",
	Hospital:         "Hospital",
	School:           "School",
	Commercial:       "Commercial",
	ScienceEducation: "Science & Education",
	Office:           "Office",
	Transportation:   "Transportation",
	Residential:      "Residential",
}

// String returns the display name.
func (c Category) String() string {
	if c < None || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the seven real categories.
func (c Category) Valid() bool {
	return c >= Hospital && c <= Residential
}

// All returns the real categories in enumeration order.
func All() []Category {
	return []Category{Hospital, School, Commercial, ScienceEducation, Office, Transportation, Residential}
}

// Names returns the display names of All, in order.
func Names() []string {
	out := make([]string, 0, NumCategories)
	for _, c := range All() {
		out = append(out, c.String())
	}
	return out
}
