// Package grid defines the spatial frame every modality is aligned to:
// a coordinate reference system, an extent and a fixed cell raster.
package grid

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/geoscape-io/stacube/internal/stac"
)

// DefaultCRS is assumed when a collection does not declare one. STAC
// collection extents are expressed in geographic coordinates.
const DefaultCRS = "EPSG:4326"

// Grid is an immutable geobox. Construct with New or FromCollection;
// the zero value is not usable.
type Grid struct {
	crs    string
	bound  orb.Bound
	width  int
	height int
	resX   float64
	resY   float64
}

// Shape is a requested output raster size in cells.
type Shape struct {
	Width  int
	Height int
}

// Square returns a shape with the same edge length on both axes.
func Square(n int) Shape { return Shape{Width: n, Height: n} }

func (s Shape) valid() bool { return s.Width > 0 && s.Height > 0 }

// New builds a grid from an explicit extent and cell counts.
func New(crs string, bound orb.Bound, width, height int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("grid shape %dx%d: cell counts must be positive", width, height)
	}
	if bound.Max[0] <= bound.Min[0] || bound.Max[1] <= bound.Min[1] {
		return Grid{}, fmt.Errorf("grid extent %v: empty or inverted", bound)
	}
	if crs == "" {
		crs = DefaultCRS
	}
	return Grid{
		crs:    crs,
		bound:  bound,
		width:  width,
		height: height,
		resX:   (bound.Max[0] - bound.Min[0]) / float64(width),
		resY:   (bound.Max[1] - bound.Min[1]) / float64(height),
	}, nil
}

// FromCollection derives a grid from the collection's declared spatial
// extent. Same extent and shape always produce the same grid.
func FromCollection(c *stac.Collection, shape Shape) (Grid, error) {
	if c == nil {
		return Grid{}, errors.New("nil collection")
	}
	if !shape.valid() {
		return Grid{}, fmt.Errorf("shape %dx%d: cell counts must be positive", shape.Width, shape.Height)
	}
	bound, ok := c.Bound()
	if !ok {
		return Grid{}, fmt.Errorf("collection %q declares no spatial extent", c.ID)
	}
	return New(DefaultCRS, bound, shape.Width, shape.Height)
}

func (g Grid) CRS() string     { return g.crs }
func (g Grid) Bound() orb.Bound { return g.bound }
func (g Grid) Width() int      { return g.width }
func (g Grid) Height() int     { return g.height }
func (g Grid) ResX() float64   { return g.resX }
func (g Grid) ResY() float64   { return g.resY }

// Intersects reports whether b overlaps the grid extent.
func (g Grid) Intersects(b orb.Bound) bool {
	return g.bound.Intersects(b)
}

// Contains reports whether the point lies within the grid extent.
func (g Grid) Contains(p orb.Point) bool {
	return g.bound.Contains(p)
}

// CellIndex maps a coordinate to cell indices. Row 0 is the northern
// edge, matching raster convention. ok is false outside the extent.
func (g Grid) CellIndex(x, y float64) (ix, iy int, ok bool) {
	if x < g.bound.Min[0] || x > g.bound.Max[0] || y < g.bound.Min[1] || y > g.bound.Max[1] {
		return 0, 0, false
	}
	ix = int((x - g.bound.Min[0]) / g.resX)
	if ix >= g.width {
		ix = g.width - 1
	}
	iy = int((g.bound.Max[1] - y) / g.resY)
	if iy >= g.height {
		iy = g.height - 1
	}
	return ix, iy, true
}

// CellCenter returns the coordinate at the center of cell (ix, iy).
func (g Grid) CellCenter(ix, iy int) (x, y float64) {
	x = g.bound.Min[0] + (float64(ix)+0.5)*g.resX
	y = g.bound.Max[1] - (float64(iy)+0.5)*g.resY
	return x, y
}

// XCoords returns the x coordinate of every cell center, ascending.
func (g Grid) XCoords() []float64 {
	out := make([]float64, g.width)
	for i := range out {
		out[i] = g.bound.Min[0] + (float64(i)+0.5)*g.resX
	}
	return out
}

// YCoords returns the y coordinate of every cell center, descending
// from the northern edge.
func (g Grid) YCoords() []float64 {
	out := make([]float64, g.height)
	for i := range out {
		out[i] = g.bound.Max[1] - (float64(i)+0.5)*g.resY
	}
	return out
}

func (g Grid) String() string {
	return fmt.Sprintf("%s %dx%d [%.6f,%.6f,%.6f,%.6f]",
		g.crs, g.width, g.height,
		g.bound.Min[0], g.bound.Min[1], g.bound.Max[0], g.bound.Max[1])
}
