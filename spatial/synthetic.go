package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// ScenarioProfile describes how deep a synthetic flood map gets.
type ScenarioProfile struct {
	Name string
	// depth reached at the lowest ground
	MaxDepth float64
	// ground above this normalized elevation stays dry
	DryElevation float64
	// extra depth for cells inside the floodplain
	FloodplainDepth float64
}

// DefaultScenarioProfiles are the flood maps of the Houston study area.
func DefaultScenarioProfiles() []ScenarioProfile {
	return []ScenarioProfile{
		{Name: "harvey", MaxDepth: 5.0, DryElevation: 0.62, FloodplainDepth: 1.2},
		{Name: "100yr", MaxDepth: 3.0, DryElevation: 0.50, FloodplainDepth: 0.8},
		{Name: "500yr", MaxDepth: 4.0, DryElevation: 0.56, FloodplainDepth: 1.0},
	}
}

// GenerateRaster builds a flood map from fractal simplex terrain. All
// profiles generated with the same seed share the same terrain, so a
// deeper profile floods a superset of a shallower one.
func GenerateRaster(
	profile ScenarioProfile,
	bound orb.Bound,
	floodplain orb.MultiPolygon,
	rows, cols int,
	seed int64,
) *FloodRaster {
	r := NewFloodRaster(profile.Name, bound, rows, cols)
	noise := opensimplex.NewNormalized(seed)

	// features roughly 10 cells wide
	frequency := 1.0 / (10 * math.Max(r.CellWidth, r.CellHeight))

	for row := range rows {
		for col := range cols {
			c := r.CellCenter(row, col)
			elevation := octaveNoise(noise, c.X()-bound.Left(), c.Y()-bound.Bottom(), 4, frequency, 0.5)

			depth := profile.MaxDepth * (profile.DryElevation - elevation) / profile.DryElevation
			if len(floodplain) > 0 && planar.MultiPolygonContains(floodplain, c) {
				depth += profile.FloodplainDepth
			}
			r.Band[row][col] = float32(depth)
		}
	}

	return r
}

// octaveNoise sums several noise octaves, normalized back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxAmplitude := 0.0
	for range octaves {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxAmplitude
}
