// Package spatial places households on the study area and answers flood
// depth queries against per-scenario flood maps.
package spatial

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrEmptyDomain       = errors.New("domain polygon is empty")
	ErrSamplingExhausted = errors.New("no location found inside domain")
	ErrUnknownScenario   = errors.New("unknown flood map scenario")
)

const DefaultMaxSamplingAttempts = 10000

// Domain is the loaded study area. It is read-only after construction and
// can be shared by concurrent model runs.
type Domain struct {
	Area        orb.MultiPolygon
	Floodplain  orb.MultiPolygon
	PoorZone    orb.Bound
	Rasters     map[string]*FloodRaster
	MaxAttempts int

	bound orb.Bound
}

// NewDomain validates the geometry and precomputes the sampling box.
func NewDomain(area, floodplain orb.MultiPolygon, poorZone orb.Bound, rasters map[string]*FloodRaster) (*Domain, error) {
	if len(area) == 0 || planar.Area(area) <= 0 {
		return nil, ErrEmptyDomain
	}
	if rasters == nil {
		rasters = make(map[string]*FloodRaster)
	}
	return &Domain{
		Area:        area,
		Floodplain:  floodplain,
		PoorZone:    poorZone,
		Rasters:     rasters,
		MaxAttempts: DefaultMaxSamplingAttempts,
		bound:       area.Bound(),
	}, nil
}

// SampleLocation draws uniformly inside the bounding box until the point
// falls inside the domain polygon.
func (d *Domain) SampleLocation(rng *rand.Rand) (orb.Point, error) {
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxSamplingAttempts
	}
	width := d.bound.Right() - d.bound.Left()
	height := d.bound.Top() - d.bound.Bottom()

	for range attempts {
		p := orb.Point{
			d.bound.Left() + rng.Float64()*width,
			d.bound.Bottom() + rng.Float64()*height,
		}
		if planar.MultiPolygonContains(d.Area, p) {
			return p, nil
		}
	}
	return orb.Point{}, fmt.Errorf("%w after %d attempts", ErrSamplingExhausted, attempts)
}

func (d *Domain) InFloodplain(p orb.Point) bool {
	return len(d.Floodplain) > 0 && planar.MultiPolygonContains(d.Floodplain, p)
}

// IsPoor reports whether p lies strictly inside the low-income zone.
func (d *Domain) IsPoor(p orb.Point) bool {
	return p.X() > d.PoorZone.Left() && p.X() < d.PoorZone.Right() &&
		p.Y() > d.PoorZone.Bottom() && p.Y() < d.PoorZone.Top()
}

// FloodDepth looks up the raw depth of a scenario flood map at p.
func (d *Domain) FloodDepth(p orb.Point, scenario string) (float64, error) {
	r, ok := d.Rasters[scenario]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownScenario, scenario)
	}
	return r.DepthAt(p)
}

// HasScenario reports whether a flood map is loaded under the given name.
func (d *Domain) HasScenario(scenario string) bool {
	_, ok := d.Rasters[scenario]
	return ok
}

// Scenarios lists the loaded flood maps by name.
func (d *Domain) Scenarios() []string {
	names := make([]string, 0, len(d.Rasters))
	for name := range d.Rasters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bound returns the bounding box of the domain polygon.
func (d *Domain) Bound() orb.Bound {
	return d.bound
}
