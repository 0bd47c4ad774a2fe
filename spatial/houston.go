package spatial

import "github.com/paulmach/orb"

// Built-in study area, NAD83 / UTM zone 15N (EPSG:26915).

const (
	DefaultRasterSize  = 200
	DefaultTerrainSeed = 10
)

func DefaultArea() orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{238000, 3288000},
		{262000, 3276000},
		{291000, 3281000},
		{304000, 3302000},
		{299000, 3331000},
		{276000, 3344000},
		{249000, 3339000},
		{236000, 3318000},
		{238000, 3288000},
	}}}
}

// DefaultFloodplain is the bayou corridor running south-west to north-east.
func DefaultFloodplain() orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{240000, 3296000},
		{255000, 3302000},
		{268000, 3309000},
		{283000, 3318000},
		{300000, 3322000},
		{301000, 3312000},
		{286000, 3308000},
		{272000, 3300000},
		{258000, 3292000},
		{241000, 3287000},
		{240000, 3296000},
	}}}
}

func DefaultPoorZone() orb.Bound {
	return orb.Bound{
		Min: orb.Point{250000, 3300000},
		Max: orb.Point{270000, 3320000},
	}
}

// DefaultDomain loads the built-in area with synthetic flood maps.
func DefaultDomain() (*Domain, error) {
	return Load(Config{})
}
