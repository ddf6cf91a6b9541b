// Package raster is the default raster-modality loader: it fetches
// gridded imagery assets and resamples them onto the shared grid by
// nearest cell index. Map projection math stays out: assets are
// assumed to be expressed in the grid CRS, and a violation shows up
// as a merge failure downstream.
package raster

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/paulmach/orb"
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

var _ loader.Raster = (*Loader)(nil)

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
		Modality: filter.Raster.String(),
		Log:      zerolog.Nop(),
	}}
	for _, o := range opts {
		o(l)
	}
	return l
}

// bandJob is one asset slated for decoding and burn-in.
type bandJob struct {
	item  stac.Item
	asset stac.Asset
	tIdx  int
}

func (l *Loader) Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg loader.Config) (*cube.Dataset, error) {
	ds := cube.New(g.CRS(),
		cube.Axis{Name: cfg.XCol, Values: g.XCoords()},
		cube.Axis{Name: cfg.YCol, Values: g.YCoords()},
	)
	if len(items) == 0 {
		return ds, nil
	}

	timeline, tIndex, err := buildTimeline(items, cfg.Raster.GroupBy)
	if err != nil {
		return nil, err
	}
	ds.SetTime(cfg.TCol, timeline)

	var jobs []bandJob
	var refs []loader.AssetRef
	for _, it := range items {
		for _, a := range rasterAssets(it, cfg.Raster.Bands) {
			jobs = append(jobs, bandJob{item: it, asset: a, tIdx: tIndex[it.ID]})
			refs = append(refs, loader.AssetRef{
				Collection: it.Collection,
				ItemID:     it.ID,
				Name:       a.Name,
				Href:       a.Href,
			})
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no raster assets among %d items", len(items))
	}

	payloads, err := l.fetch.FetchAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	w, h, nt := g.Width(), g.Height(), len(timeline)
	plane := w * h
	bands := map[string][]float64{}
	var order []string

	for i, job := range jobs {
		fn, err := decoderFor(job.asset.Type)
		if err != nil {
			return nil, fmt.Errorf("item %s asset %s: %w", job.item.ID, job.asset.Name, err)
		}
		raw, err := fn(payloads[i])
		if err != nil {
			return nil, fmt.Errorf("item %s asset %s: %w", job.item.ID, job.asset.Name, err)
		}
		bound, ok := job.item.Bound()
		if !ok {
			return nil, fmt.Errorf("item %s: raster item has no spatial bound", job.item.ID)
		}

		data, ok := bands[job.asset.Name]
		if !ok {
			data = cube.NaNSlice(plane * nt)
			bands[job.asset.Name] = data
			order = append(order, job.asset.Name)
		}
		burn(data[job.tIdx*plane:(job.tIdx+1)*plane], raw, bound, g)
	}

	for _, name := range order {
		err := ds.AddVar(cube.Variable{
			Name: name,
			Dims: []string{cfg.TCol, cfg.YCol, cfg.XCol},
			Data: bands[name],
		})
		if err != nil {
			return nil, err
		}
	}
	l.fetch.Log.Debug().Int("items", len(items)).Int("bands", len(order)).
		Int("times", nt).Msg("raster load done")
	return ds, nil
}

// buildTimeline derives the time axis and each item's slice index.
// Grouping by id gives every item its own slice even when timestamps
// collide; grouping by time folds identical timestamps together.
func buildTimeline(items []stac.Item, groupBy string) ([]time.Time, map[string]int, error) {
	stamps := make([]time.Time, len(items))
	for i, it := range items {
		t, ok := it.Time()
		if !ok {
			return nil, nil, fmt.Errorf("item %s: no datetime", it.ID)
		}
		stamps[i] = t
	}

	index := map[string]int{}
	var timeline []time.Time

	switch groupBy {
	case loader.GroupByTime:
		uniq := map[int64]int{}
		for _, t := range stamps {
			if _, ok := uniq[t.UnixNano()]; !ok {
				uniq[t.UnixNano()] = 0
				timeline = append(timeline, t)
			}
		}
		sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
		for i, t := range timeline {
			uniq[t.UnixNano()] = i
		}
		for i, it := range items {
			index[it.ID] = uniq[stamps[i].UnixNano()]
		}
	default: // GroupByID
		// One slice per item. The time axis cannot carry duplicate
		// coordinates, so colliding timestamps need groupby=time.
		seen := map[int64]string{}
		type slot struct {
			t  time.Time
			id string
		}
		slots := make([]slot, len(items))
		for i, it := range items {
			if prev, dup := seen[stamps[i].UnixNano()]; dup {
				return nil, nil, fmt.Errorf(
					"items %s and %s share timestamp %s; group by %q to fold them",
					prev, it.ID, stamps[i].Format(time.RFC3339), loader.GroupByTime)
			}
			seen[stamps[i].UnixNano()] = it.ID
			slots[i] = slot{t: stamps[i], id: it.ID}
		}
		sort.SliceStable(slots, func(i, j int) bool { return slots[i].t.Before(slots[j].t) })
		timeline = make([]time.Time, len(slots))
		for i, s := range slots {
			timeline[i] = s.t
			index[s.id] = i
		}
	}
	return timeline, index, nil
}

// rasterAssets selects the assets to load from an item, honoring the
// band restriction, in document order.
func rasterAssets(it stac.Item, bands []string) []stac.Asset {
	want := map[string]bool{}
	for _, b := range bands {
		want[b] = true
	}
	var out []stac.Asset
	for _, a := range it.Assets {
		m, ok := filter.AssetModality(a)
		if !ok || m != filter.Raster {
			continue
		}
		if len(bands) > 0 && !want[a.Name] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// burn resamples raw into dst (one [y x] plane of the grid) by nearest
// source pixel. Cells outside the item bound are left untouched.
func burn(dst []float64, raw *Raw, bound orb.Bound, g grid.Grid) {
	bw := bound.Max[0] - bound.Min[0]
	bh := bound.Max[1] - bound.Min[1]
	if bw <= 0 || bh <= 0 {
		return
	}
	for iy := 0; iy < g.Height(); iy++ {
		for ix := 0; ix < g.Width(); ix++ {
			x, y := g.CellCenter(ix, iy)
			if x < bound.Min[0] || x > bound.Max[0] || y < bound.Min[1] || y > bound.Max[1] {
				continue
			}
			sx := int((x - bound.Min[0]) / bw * float64(raw.Width))
			sy := int((bound.Max[1] - y) / bh * float64(raw.Height))
			if sx >= raw.Width {
				sx = raw.Width - 1
			}
			if sy >= raw.Height {
				sy = raw.Height - 1
			}
			dst[iy*g.Width()+ix] = raw.Pix[sy*raw.Width+sx]
		}
	}
}
