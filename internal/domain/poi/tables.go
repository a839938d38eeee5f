package poi

// SearchGroup is one nearby-search query: a category and its type filter.
type SearchGroup struct {
	Category Category
	Types    string
}

// DefaultWeights returns the curated per-code weight table.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		// Hospital
		"090100": 6, "090200": 5,
		// School
		"141200": 4, "141300": 3,
		// Commercial
		"060100": 10, "060300": 3, "110000": 2, "100101": 1.5, "100102": 2, "100103": 2,
		// Science & Education
		"140100": 20, "140200": 10, "140300": 10, "140400": 10, "140500": 10, "140600": 10, "140700": 15,
		// Office
		"120100": 5, "120201": 3, "120202": 2, "130000": 1.5, "160000": 1, "170000": 1,
		"070700": 0.8, "140900": 1, "141100": 0.8,
		// Transportation
		"150104": 50, "150200": 50, "150400": 30,
		// Residential
		"120300": 10, "120203": 5,
	}
}

// DefaultPrefixes returns the 4-character prefix to category mapping.
func DefaultPrefixes() map[string]int {
	return map[string]int{
		"0901": int(Hospital),
		"1412": int(School), "1413": int(School),
		"0601": int(Commercial), "0603": int(Commercial), "1100": int(Commercial), "1001": int(Commercial),
		"1401": int(ScienceEducation), "1402": int(ScienceEducation), "1403": int(ScienceEducation),
		"1404": int(ScienceEducation), "1405": int(ScienceEducation), "1406": int(ScienceEducation),
		"1407": int(ScienceEducation),
		"1201": int(Office), "1202": int(Office), "1300": int(Office), "1600": int(Office),
		"1700": int(Office), "0707": int(Office), "1409": int(Office), "1411": int(Office),
		"1501": int(Transportation), "1502": int(Transportation), "1504": int(Transportation),
		"1203": int(Residential),
	}
}

// DefaultSearchGroups returns the per-category type filters, in category order.
func DefaultSearchGroups() []SearchGroup {
	return []SearchGroup{
		{Category: Hospital, Types: "090100|090200"},
		{Category: School, Types: "141200|141300"},
		{Category: Commercial, Types: "060100|060300|110000|100000|110000"},
		{Category: ScienceEducation, Types: "140100|140200|140300|140400|140500|140600|140700"},
		{Category: Office, Types: "120100|120201|120202|130000|160000|170000|070700|140900|141100"},
		{Category: Transportation, Types: "150104|150200|150400"},
		{Category: Residential, Types: "120300|120203"},
	}
}
