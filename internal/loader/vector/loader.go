// Package vector is the default vector-modality loader: it fetches
// GeoJSON feature assets and burns selected numeric feature fields
// into cells of the shared grid. Geometric predicates come from orb;
// no rasterization algorithm lives here beyond walking the cells a
// feature's bound covers.
package vector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/cube"
	"github.com/geoscape-io/stacube/internal/filter"
	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/stac"
)

type Loader struct {
	fetch loader.Fetcher
}

var _ loader.Vector = (*Loader)(nil)

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.fetch.Client = c }
}

func WithCache(c *assetcache.Cache) Option {
	return func(l *Loader) { l.fetch.Cache = c }
}

func WithWorkers(n int) Option {
	return func(l *Loader) { l.fetch.Workers = n }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.fetch.Log = log }
}

func New(opts ...Option) *Loader {
	l := &Loader{fetch: loader.Fetcher{
		Modality: filter.Vector.String(),
		Log:      zerolog.Nop(),
	}}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg loader.Config) (*cube.Dataset, error) {
	ds := cube.New(g.CRS(),
		cube.Axis{Name: cfg.XCol, Values: g.XCoords()},
		cube.Axis{Name: cfg.YCol, Values: g.YCoords()},
	)
	if len(items) == 0 {
		return ds, nil
	}

	var refs []loader.AssetRef
	for _, it := range items {
		a, err := vectorAsset(it)
		if err != nil {
			return nil, err
		}
		refs = append(refs, loader.AssetRef{
			Collection: it.Collection,
			ItemID:     it.ID,
			Name:       a.Name,
			Href:       a.Href,
		})
	}

	payloads, err := l.fetch.FetchAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	plane := g.Width() * g.Height()
	layers := map[string][]float64{}
	var order []string

	want := map[string]bool{}
	for _, f := range cfg.Vector.Fields {
		want[f] = true
	}

	for i, it := range items {
		fc, err := geojson.UnmarshalFeatureCollection(payloads[i])
		if err != nil {
			return nil, fmt.Errorf("item %s: parse feature collection: %w", it.ID, err)
		}
		for _, feat := range fc.Features {
			if feat == nil || feat.Geometry == nil {
				continue
			}
			for field, raw := range feat.Properties {
				if len(cfg.Vector.Fields) > 0 && !want[field] {
					continue
				}
				val, ok := numeric(raw)
				if !ok {
					continue
				}
				name := field
				if alias, ok := cfg.Vector.Aliases[field]; ok {
					name = alias
				}
				data, ok := layers[name]
				if !ok {
					data = cube.NaNSlice(plane)
					layers[name] = data
					order = append(order, name)
				}
				burnFeature(data, feat.Geometry, val, g)
			}
		}
	}

	for _, name := range order {
		err := ds.AddVar(cube.Variable{
			Name: name,
			Dims: []string{cfg.YCol, cfg.XCol},
			Data: layers[name],
		})
		if err != nil {
			return nil, err
		}
	}
	l.fetch.Log.Debug().Int("items", len(items)).Int("fields", len(order)).
		Msg("vector load done")
	return ds, nil
}

// vectorAsset picks the item's vector asset. The default loader only
// decodes GeoJSON; shapefile and geopackage assets need a different
// Vector implementation plugged into the session.
func vectorAsset(it stac.Item) (stac.Asset, error) {
	for _, a := range it.Assets {
		m, ok := filter.AssetModality(a)
		if ok && m == filter.Vector {
			return a, nil
		}
	}
	return stac.Asset{}, fmt.Errorf("item %s: no vector asset", it.ID)
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// burnFeature writes val into every grid cell covered by the
// geometry. Only the cells under the geometry bound are visited.
func burnFeature(dst []float64, geom orb.Geometry, val float64, g grid.Grid) {
	// point-like geometries mark their containing cell directly; a
	// degenerate bound would never cover a cell center
	switch t := geom.(type) {
	case orb.Point:
		if ix, iy, ok := g.CellIndex(t[0], t[1]); ok {
			dst[iy*g.Width()+ix] = val
		}
		return
	case orb.MultiPoint:
		for _, p := range t {
			if ix, iy, ok := g.CellIndex(p[0], p[1]); ok {
				dst[iy*g.Width()+ix] = val
			}
		}
		return
	}

	b := geom.Bound()
	if !g.Intersects(b) {
		return
	}

	// clamp the scan window to the grid
	minIx, minIy := 0, 0
	if ix, iy, ok := g.CellIndex(b.Min[0], b.Max[1]); ok {
		minIx, minIy = ix, iy
	}
	maxIx, maxIy := g.Width()-1, g.Height()-1
	if ix, iy, ok := g.CellIndex(b.Max[0], b.Min[1]); ok {
		maxIx, maxIy = ix, iy
	}

	for iy := minIy; iy <= maxIy; iy++ {
		for ix := minIx; ix <= maxIx; ix++ {
			x, y := g.CellCenter(ix, iy)
			if covers(geom, orb.Point{x, y}) {
				dst[iy*g.Width()+ix] = val
			}
		}
	}
}

// covers tests whether the cell center lies in the geometry. Polygons
// use planar containment; thin geometries fall back to their bound so
// lines and points still mark the cells they touch.
func covers(geom orb.Geometry, p orb.Point) bool {
	switch t := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p)
	case orb.Collection:
		for _, sub := range t {
			if covers(sub, p) {
				return true
			}
		}
		return false
	default:
		return geom.Bound().Contains(p)
	}
}
