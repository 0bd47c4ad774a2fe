package model

import "math"

const (
	// depth at which a house counts as destroyed
	SaturationDepth = 6.0
	// below this depth there is no noticeable damage
	NoticeableDepth = 0.025
)

// FloodDamage maps a flood depth in meters to a damage factor in [0, 1]
// (de Moel, Huizinga 2017, logarithmic fit).
func FloodDamage(depth float64) float64 {
	switch {
	case depth >= SaturationDepth:
		return 1
	case !(depth >= NoticeableDepth): // also catches NaN
		return 0
	default:
		return 0.1746*math.Log(depth) + 0.6483
	}
}
