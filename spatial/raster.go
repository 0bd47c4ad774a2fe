package spatial

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrOutsideRaster = errors.New("location outside flood raster")

// FloodRaster is a north-up grid of flood depths in meters. Row 0 is the
// top edge of the raster, column 0 the left edge.
type FloodRaster struct {
	Name       string      `msgpack:"name"`
	Left       float64     `msgpack:"left"`
	Top        float64     `msgpack:"top"`
	CellWidth  float64     `msgpack:"cell_width"`
	CellHeight float64     `msgpack:"cell_height"`
	Rows       int         `msgpack:"rows"`
	Cols       int         `msgpack:"cols"`
	Band       [][]float32 `msgpack:"band"`
}

// NewFloodRaster allocates a zero-depth raster covering bound.
func NewFloodRaster(name string, bound orb.Bound, rows, cols int) *FloodRaster {
	band := make([][]float32, rows)
	for i := range band {
		band[i] = make([]float32, cols)
	}
	return &FloodRaster{
		Name:       name,
		Left:       bound.Left(),
		Top:        bound.Top(),
		CellWidth:  (bound.Right() - bound.Left()) / float64(cols),
		CellHeight: (bound.Top() - bound.Bottom()) / float64(rows),
		Rows:       rows,
		Cols:       cols,
		Band:       band,
	}
}

// Bound returns the area covered by the raster.
func (r *FloodRaster) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.Left, r.Top - r.CellHeight*float64(r.Rows)},
		Max: orb.Point{r.Left + r.CellWidth*float64(r.Cols), r.Top},
	}
}

// Index converts a coordinate into the (row, col) of the cell holding it.
func (r *FloodRaster) Index(x, y float64) (int, int) {
	row := int(math.Floor((r.Top - y) / r.CellHeight))
	col := int(math.Floor((x - r.Left) / r.CellWidth))
	return row, col
}

// CellCenter returns the coordinate at the center of a cell.
func (r *FloodRaster) CellCenter(row, col int) orb.Point {
	return orb.Point{
		r.Left + (float64(col)+0.5)*r.CellWidth,
		r.Top - (float64(row)+0.5)*r.CellHeight,
	}
}

// DepthAt returns the raw depth at p. Negative values mean the ground is
// above the flood level and are left for the caller to clamp.
func (r *FloodRaster) DepthAt(p orb.Point) (float64, error) {
	row, col := r.Index(p.X(), p.Y())
	if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
		return 0, fmt.Errorf("%w: %s at (%.1f, %.1f)", ErrOutsideRaster, r.Name, p.X(), p.Y())
	}
	return float64(r.Band[row][col]), nil
}

func (r *FloodRaster) validate() error {
	if r.Rows <= 0 || r.Cols <= 0 || r.CellWidth <= 0 || r.CellHeight <= 0 {
		return fmt.Errorf("raster %s: invalid geometry %dx%d cell %.3fx%.3f",
			r.Name, r.Rows, r.Cols, r.CellWidth, r.CellHeight)
	}
	if len(r.Band) != r.Rows {
		return fmt.Errorf("raster %s: band has %d rows, expected %d", r.Name, len(r.Band), r.Rows)
	}
	for i, row := range r.Band {
		if len(row) != r.Cols {
			return fmt.Errorf("raster %s: band row %d has %d cols, expected %d", r.Name, i, len(row), r.Cols)
		}
	}
	return nil
}

func SaveRasterToFile(r *FloodRaster, filename string) error {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func LoadRasterFromFile(filename string) (*FloodRaster, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var r FloodRaster
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode raster %s: %w", filename, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
