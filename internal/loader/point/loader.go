// Package point is the default point-modality loader: it fetches
// discrete geolocated records (CSV or GeoJSON points), aggregates
// them per grid cell and optionally fills empty cells by
// nearest-neighbour interpolation over an H3 spatial index.
package point

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

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

var _ loader.Point = (*Loader)(nil)

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
		Modality: filter.Point.String(),
		Log:      zerolog.Nop(),
	}}
	for _, o := range opts {
		o(l)
	}
	return l
}

// accum aggregates observations falling in the same cell and slice.
type accum struct {
	sum   float64
	min   float64
	max   float64
	count int
}

func (a *accum) add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.sum += v
	a.count++
}

func (a *accum) value(method string) float64 {
	switch method {
	case loader.MergeSum:
		return a.sum
	case loader.MergeMin:
		return a.min
	case loader.MergeMax:
		return a.max
	default:
		return a.sum / float64(a.count)
	}
}

func (l *Loader) Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg loader.Config) (*cube.Dataset, error) {
	ds := cube.New(g.CRS(),
		cube.Axis{Name: cfg.XCol, Values: g.XCoords()},
		cube.Axis{Name: cfg.YCol, Values: g.YCoords()},
	)
	if len(items) == 0 {
		return ds, nil
	}

	assets := make([]stac.Asset, len(items))
	refs := make([]loader.AssetRef, len(items))
	for i, it := range items {
		a, err := pointAsset(it)
		if err != nil {
			return nil, err
		}
		assets[i] = a
		refs[i] = loader.AssetRef{
			Collection: it.Collection,
			ItemID:     it.ID,
			Name:       a.Name,
			Href:       a.Href,
		}
	}

	payloads, err := l.fetch.FetchAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	var recs []record
	for i, it := range items {
		r, err := parseRecords(payloads[i], assets[i].Type, it, cfg)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		recs = append(recs, r...)
	}

	// drop records outside the grid and unselected fields
	want := map[string]bool{}
	for _, f := range cfg.Point.Fields {
		want[f] = true
	}

	timed := 0
	for _, r := range recs {
		if r.hasT {
			timed++
		}
	}
	if timed > 0 && timed < len(recs) {
		return nil, fmt.Errorf("%d of %d records lack a timestamp; cannot mix timed and static records", len(recs)-timed, len(recs))
	}

	timeline, tIndex := buildTimeline(recs)
	if len(timeline) > 0 {
		ds.SetTime(cfg.TCol, timeline)
	}
	nt := len(timeline)
	if nt == 0 {
		nt = 1 // static layers occupy a single implicit slice
	}
	plane := g.Width() * g.Height()

	cells := map[string][]*accum{}
	var order []string

	for _, rec := range recs {
		ix, iy, ok := g.CellIndex(rec.pt[0], rec.pt[1])
		if !ok {
			continue
		}
		ti := 0
		if len(timeline) > 0 {
			ti = tIndex[rec.t.UnixNano()]
		}
		pos := ti*plane + iy*g.Width() + ix
		for field, val := range rec.fields {
			if len(cfg.Point.Fields) > 0 && !want[field] {
				continue
			}
			accs, ok := cells[field]
			if !ok {
				accs = make([]*accum, plane*nt)
				cells[field] = accs
				order = append(order, field)
			}
			if accs[pos] == nil {
				accs[pos] = &accum{}
			}
			accs[pos].add(val)
		}
	}
	sort.Strings(order) // record field order is map-driven; fix it

	for _, field := range order {
		accs := cells[field]
		data := cube.NaNSlice(plane * nt)
		for pos, a := range accs {
			if a != nil {
				data[pos] = a.value(cfg.Point.MergeMethod)
			}
		}
		if cfg.Point.InterpMethod == loader.InterpNearest {
			if err := l.interpolate(data, plane, nt, g); err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
		}
		dims := []string{cfg.YCol, cfg.XCol}
		if len(timeline) > 0 {
			dims = []string{cfg.TCol, cfg.YCol, cfg.XCol}
		}
		if err := ds.AddVar(cube.Variable{Name: field, Dims: dims, Data: data}); err != nil {
			return nil, err
		}
	}
	l.fetch.Log.Debug().Int("items", len(items)).Int("records", len(recs)).
		Int("fields", len(order)).Msg("point load done")
	return ds, nil
}

// interpolate fills NaN cells per time slice from the nearest observed
// cell center.
func (l *Loader) interpolate(data []float64, plane, nt int, g grid.Grid) error {
	for ti := 0; ti < nt; ti++ {
		slice := data[ti*plane : (ti+1)*plane]

		idx := newNNIndex(math.Min(g.ResX(), g.ResY()))
		n := 0
		for iy := 0; iy < g.Height(); iy++ {
			for ix := 0; ix < g.Width(); ix++ {
				v := slice[iy*g.Width()+ix]
				if math.IsNaN(v) {
					continue
				}
				x, y := g.CellCenter(ix, iy)
				if err := idx.add(x, y, v); err != nil {
					return err
				}
				n++
			}
		}
		if n == 0 {
			continue // nothing to interpolate from
		}

		for iy := 0; iy < g.Height(); iy++ {
			for ix := 0; ix < g.Width(); ix++ {
				pos := iy*g.Width() + ix
				if !math.IsNaN(slice[pos]) {
					continue
				}
				x, y := g.CellCenter(ix, iy)
				v, ok, err := idx.nearest(x, y)
				if err != nil {
					return err
				}
				if ok {
					slice[pos] = v
				}
			}
		}
	}
	return nil
}

func buildTimeline(recs []record) ([]time.Time, map[int64]int) {
	seen := map[int64]struct{}{}
	var timeline []time.Time
	for _, r := range recs {
		if !r.hasT {
			continue
		}
		k := r.t.UnixNano()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		timeline = append(timeline, r.t)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	index := map[int64]int{}
	for i, t := range timeline {
		index[t.UnixNano()] = i
	}
	return timeline, index
}

func pointAsset(it stac.Item) (stac.Asset, error) {
	for _, a := range it.Assets {
		m, ok := filter.AssetModality(a)
		if ok && m == filter.Point {
			return a, nil
		}
	}
	return stac.Asset{}, fmt.Errorf("item %s: no point asset", it.ID)
}
