package spatial

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Config selects where the study area comes from. Empty paths fall back to
// the built-in Houston domain and synthetic flood maps.
type Config struct {
	DomainPath     string            `json:"domain_path,omitempty" yaml:"domain_path,omitempty"`
	FloodplainPath string            `json:"floodplain_path,omitempty" yaml:"floodplain_path,omitempty"`
	RasterPaths    map[string]string `json:"raster_paths,omitempty" yaml:"raster_paths,omitempty"`
	PoorZone       *[4]float64       `json:"poor_zone,omitempty" yaml:"poor_zone,omitempty"` // minx, miny, maxx, maxy
	RasterSize     int               `json:"raster_size,omitempty" yaml:"raster_size,omitempty"`
	TerrainSeed    int64             `json:"terrain_seed,omitempty" yaml:"terrain_seed,omitempty"`
}

// LoadGeoJSON reads every polygon and multipolygon of a feature collection
// into a single multipolygon.
func LoadGeoJSON(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDomain)
	}
	return mp, nil
}

// Load builds a Domain from cfg.
func Load(cfg Config) (*Domain, error) {
	area := DefaultArea()
	floodplain := DefaultFloodplain()
	poorZone := DefaultPoorZone()

	var err error
	if cfg.DomainPath != "" {
		if area, err = LoadGeoJSON(cfg.DomainPath); err != nil {
			return nil, err
		}
	}
	if cfg.FloodplainPath != "" {
		if floodplain, err = LoadGeoJSON(cfg.FloodplainPath); err != nil {
			return nil, err
		}
	}
	if cfg.PoorZone != nil {
		z := cfg.PoorZone
		poorZone = orb.Bound{Min: orb.Point{z[0], z[1]}, Max: orb.Point{z[2], z[3]}}
	}

	rasters := make(map[string]*FloodRaster)
	for name, path := range cfg.RasterPaths {
		r, err := LoadRasterFromFile(path)
		if err != nil {
			return nil, err
		}
		r.Name = name
		rasters[name] = r
	}

	size := cfg.RasterSize
	if size <= 0 {
		size = DefaultRasterSize
	}
	seed := cfg.TerrainSeed
	if seed == 0 {
		seed = DefaultTerrainSeed
	}

	// fill in missing scenarios with synthetic maps
	bound := area.Bound()
	for _, profile := range DefaultScenarioProfiles() {
		if _, ok := rasters[profile.Name]; ok {
			continue
		}
		rasters[profile.Name] = GenerateRaster(profile, bound, floodplain, size, size, seed)
		slog.Debug("generated synthetic flood map", "scenario", profile.Name, "size", size)
	}

	return NewDomain(area, floodplain, poorZone, rasters)
}
