package session

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/geoscape-io/stacube/internal/config"
	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/stac"
)

// FromAppConfig translates process configuration into session options.
// An explicit GRID_BBOX wins over a derived shape; collaborators stay
// nil so New builds the defaults.
func FromAppConfig(cfg config.Config) (Options, error) {
	opts := Options{
		Endpoint:     cfg.Endpoint,
		Collection:   cfg.Collection,
		AssetKey:     stac.AssetKey{Default: cfg.AssetKey},
		FetchWorkers: cfg.FetchWorkers,
		Load: loader.Config{
			XCol: cfg.XCol,
			YCol: cfg.YCol,
			TCol: cfg.TCol,
			Raster: loader.RasterConfig{
				Bands:   cfg.Bands,
				GroupBy: cfg.GroupBy,
			},
			Vector: loader.VectorConfig{
				GroupBy: cfg.GroupBy,
				Fields:  cfg.VectorFields,
				Aliases: cfg.VectorAlias,
			},
			Point: loader.PointConfig{
				Fields:       cfg.PointFields,
				MergeMethod:  cfg.MergeMethod,
				InterpMethod: cfg.InterpMethod,
			},
		},
	}

	switch {
	case len(cfg.GridBBox) == 4:
		if cfg.ShapeX <= 0 {
			return Options{}, fmt.Errorf("%w: GRID_BBOX set but GRID_SHAPE_X missing", ErrConfiguration)
		}
		sy := cfg.ShapeY
		if sy <= 0 {
			sy = cfg.ShapeX
		}
		b := orb.Bound{
			Min: orb.Point{cfg.GridBBox[0], cfg.GridBBox[1]},
			Max: orb.Point{cfg.GridBBox[2], cfg.GridBBox[3]},
		}
		g, err := grid.New(cfg.GridCRS, b, cfg.ShapeX, sy)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		opts.Grid = &g
	case len(cfg.GridBBox) != 0:
		return Options{}, fmt.Errorf("%w: GRID_BBOX wants 4 values minx,miny,maxx,maxy, got %d", ErrConfiguration, len(cfg.GridBBox))
	case cfg.ShapeX > 0:
		sy := cfg.ShapeY
		if sy <= 0 {
			sy = cfg.ShapeX
		}
		opts.Shape = &grid.Shape{Width: cfg.ShapeX, Height: sy}
	}
	return opts, nil
}
