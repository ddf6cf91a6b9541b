// Package session owns one load session: the resolved collection, the
// shared spatial grid, the classified item partition and the immutable
// load configuration. Loaders borrow these read-only; every load call
// produces an independently owned dataset.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/cube"
	"github.com/geoscape-io/stacube/internal/filter"
	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/loader/point"
	"github.com/geoscape-io/stacube/internal/loader/raster"
	"github.com/geoscape-io/stacube/internal/loader/vector"
	"github.com/geoscape-io/stacube/internal/observability"
	"github.com/geoscape-io/stacube/internal/stac"
)

// ErrConfiguration signals insufficient or contradictory session
// parameters. It is raised before any catalog or loader call.
var ErrConfiguration = errors.New("invalid session configuration")

// Catalog is the resolver surface the session consumes.
type Catalog interface {
	GetCollection(ctx context.Context, id string) (*stac.Collection, error)
	Items(ctx context.Context, collectionID string) ([]stac.Item, error)
}

type Options struct {
	// Endpoint is the catalog root (URL or local path). Ignored when
	// an explicit Catalog is injected.
	Endpoint   string
	Collection string

	// Grid fixes the output frame directly; Shape derives one from
	// the collection extent. One of the two is required.
	Grid  *grid.Grid
	Shape *grid.Shape

	AssetKey stac.AssetKey
	Load     loader.Config

	// Injectable collaborators; defaults are built when nil.
	Catalog      Catalog
	RasterLoader loader.Raster
	VectorLoader loader.Vector
	PointLoader  loader.Point

	HTTPClient   *http.Client
	Cache        *assetcache.Cache
	FetchWorkers int
	Logger       zerolog.Logger
}

type Session struct {
	collection *stac.Collection
	grid       grid.Grid
	part       filter.Partition
	cfg        loader.Config

	raster loader.Raster
	vector loader.Vector
	point  loader.Point
	log    zerolog.Logger
}

// New validates options, resolves the collection, builds the grid and
// classifies the collection's items. Configuration problems surface
// before any catalog access.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: collection identifier is required", ErrConfiguration)
	}
	if opts.Grid == nil && opts.Shape == nil {
		return nil, fmt.Errorf("%w: neither grid nor shape supplied, cannot derive a spatial frame", ErrConfiguration)
	}
	if opts.Catalog == nil && opts.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfiguration)
	}

	cfg := normalize(opts.Load)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	key := opts.AssetKey
	if key.Default == "" {
		key.Default = stac.DefaultAssetKey
	}

	cat := opts.Catalog
	if cat == nil {
		cl, err := stac.Open(ctx, opts.Endpoint,
			stac.WithHTTPClient(orDefaultClient(opts.HTTPClient)),
			stac.WithLogger(opts.Logger),
		)
		if err != nil {
			return nil, err
		}
		cat = cl
	}

	col, err := cat.GetCollection(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}

	var g grid.Grid
	if opts.Grid != nil {
		g = *opts.Grid
	} else {
		g, err = grid.FromCollection(col, *opts.Shape)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	items, err := cat.Items(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}
	part := filter.Classify(items, g, key)

	log := opts.Logger
	log.Info().Str("collection", col.ID).Str("grid", g.String()).
		Int("raster", len(part.Raster)).Int("vector", len(part.Vector)).
		Int("point", len(part.Point)).Int("unclassified", len(part.Unclassified)).
		Msg("session ready")
	if n := len(part.Unclassified); n > 0 {
		log.Warn().Int("count", n).Strs("ids", part.UnclassifiedIDs()).
			Msg("items with no recognized modality will not be loaded")
	}

	s := &Session{
		collection: col,
		grid:       g,
		part:       part,
		cfg:        cfg,
		raster:     opts.RasterLoader,
		vector:     opts.VectorLoader,
		point:      opts.PointLoader,
		log:        log,
	}
	if s.raster == nil {
		s.raster = raster.New(
			raster.WithHTTPClient(orDefaultClient(opts.HTTPClient)),
			raster.WithCache(opts.Cache),
			raster.WithWorkers(opts.FetchWorkers),
			raster.WithLogger(log),
		)
	}
	if s.vector == nil {
		s.vector = vector.New(
			vector.WithHTTPClient(orDefaultClient(opts.HTTPClient)),
			vector.WithCache(opts.Cache),
			vector.WithWorkers(opts.FetchWorkers),
			vector.WithLogger(log),
		)
	}
	if s.point == nil {
		s.point = point.New(
			point.WithHTTPClient(orDefaultClient(opts.HTTPClient)),
			point.WithCache(opts.Cache),
			point.WithWorkers(opts.FetchWorkers),
			point.WithLogger(log),
		)
	}
	return s, nil
}

func orDefaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

// normalize fills zero-valued load options with their defaults.
func normalize(cfg loader.Config) loader.Config {
	def := loader.Default()
	if cfg.XCol == "" {
		cfg.XCol = def.XCol
	}
	if cfg.YCol == "" {
		cfg.YCol = def.YCol
	}
	if cfg.TCol == "" {
		cfg.TCol = def.TCol
	}
	if cfg.Raster.GroupBy == "" {
		cfg.Raster.GroupBy = def.Raster.GroupBy
	}
	if cfg.Vector.GroupBy == "" {
		cfg.Vector.GroupBy = def.Vector.GroupBy
	}
	if cfg.Point.MergeMethod == "" {
		cfg.Point.MergeMethod = def.Point.MergeMethod
	}
	if cfg.Point.InterpMethod == "" {
		cfg.Point.InterpMethod = def.Point.InterpMethod
	}
	return cfg
}

func (s *Session) Collection() *stac.Collection { return s.collection }
func (s *Session) Grid() grid.Grid              { return s.grid }
func (s *Session) Partition() filter.Partition  { return s.part }
func (s *Session) Config() loader.Config        { return s.cfg }

// LoadRaster loads the raster bucket independently.
func (s *Session) LoadRaster(ctx context.Context) (*cube.Dataset, error) {
	return s.loadOne(ctx, filter.Raster)
}

// LoadVector loads the vector bucket independently.
func (s *Session) LoadVector(ctx context.Context) (*cube.Dataset, error) {
	return s.loadOne(ctx, filter.Vector)
}

// LoadPoint loads the point bucket independently.
func (s *Session) LoadPoint(ctx context.Context) (*cube.Dataset, error) {
	return s.loadOne(ctx, filter.Point)
}

func (s *Session) loadOne(ctx context.Context, m filter.Modality) (*cube.Dataset, error) {
	start := time.Now()
	ds, err := s.invoke(ctx, m)
	observability.ObserveLoad(m.String(), err, time.Since(start).Seconds())
	if err != nil {
		return nil, &loader.LoadError{Modality: m.String(), Err: err}
	}
	return ds, nil
}

func (s *Session) invoke(ctx context.Context, m filter.Modality) (*cube.Dataset, error) {
	items := s.part.Bucket(m)
	switch m {
	case filter.Raster:
		return s.raster.Load(ctx, items, s.grid, s.cfg)
	case filter.Vector:
		return s.vector.Load(ctx, items, s.grid, s.cfg)
	case filter.Point:
		return s.point.Load(ctx, items, s.grid, s.cfg)
	case filter.Unclassified:
		return nil, fmt.Errorf("unclassified items cannot be loaded")
	default:
		return nil, fmt.Errorf("unhandled modality %d", m)
	}
}

// Load drives every non-empty modality bucket in fixed order and
// merges the outputs into one cube. A single loader failure aborts the
// whole call; no partial merges. All buckets empty yields a valid
// empty dataset.
func (s *Session) Load(ctx context.Context) (*cube.Dataset, error) {
	var parts []*cube.Dataset
	for _, m := range filter.Modalities {
		if len(s.part.Bucket(m)) == 0 {
			continue
		}
		ds, err := s.loadOne(ctx, m)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ds)
	}

	if len(parts) == 0 {
		s.log.Warn().Msg("no loadable items in any modality bucket; returning empty cube")
	}

	merged, err := cube.Merge(parts)
	observability.IncMerge(err)
	if err != nil {
		return nil, err
	}
	if !merged.Empty() {
		if err := merged.CheckAxisLayout(); err != nil {
			return nil, err
		}
	}
	b := s.grid.Bound()
	merged.BBox = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	s.log.Info().Int("sources", len(parts)).Int("variables", len(merged.VarNames())).
		Msg("cube merged")
	return merged, nil
}
