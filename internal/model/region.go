// Package model defines the catalog data types shared by the sync engine
// and its consumers.
package model

// Region is a geographic tag on an entity. Its value is the wire name used
// in the manifest.
type Region string

const (
	RegionAll          Region = "All"
	RegionNorthAmerica Region = "North America"
	RegionSouthAmerica Region = "South America"
	RegionEurope       Region = "Europe"
	RegionAsia         Region = "Asia"
	RegionAfrica       Region = "Africa"
	RegionOceania      Region = "Oceania"
	RegionAntarctica   Region = "Antarctica"
)

var allRegions = []Region{
	RegionAll,
	RegionNorthAmerica,
	RegionSouthAmerica,
	RegionEurope,
	RegionAsia,
	RegionAfrica,
	RegionOceania,
	RegionAntarctica,
}

// AllRegions returns every region in declaration order.
func AllRegions() []Region {
	out := make([]Region, len(allRegions))
	copy(out, allRegions)
	return out
}

// ParseRegion matches raw exactly against the region wire names.
func ParseRegion(raw string) (Region, bool) {
	for _, r := range allRegions {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}

// ParseRegions maps raw names to regions in order, dropping unknown names
// and duplicates. The result is never empty: it defaults to {All}.
func ParseRegions(raw []string) []Region {
	out := make([]Region, 0, len(raw))
	seen := make(map[Region]struct{}, len(raw))
	for _, name := range raw {
		r, ok := ParseRegion(name)
		if !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return []Region{RegionAll}
	}
	return out
}
