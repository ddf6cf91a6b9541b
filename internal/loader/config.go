package loader

import (
	"fmt"
)

// GroupBy choices for raster time slicing.
const (
	GroupByID   = "id"
	GroupByTime = "time"
)

// Point merge methods.
const (
	MergeMean = "mean"
	MergeSum  = "sum"
	MergeMin  = "min"
	MergeMax  = "max"
)

// Point interpolation methods.
const (
	InterpNone    = "none"
	InterpNearest = "nearest"
)

type RasterConfig struct {
	// Bands restricts which assets are loaded; nil loads every
	// raster-recognized asset of an item.
	Bands   []string
	GroupBy string
}

type VectorConfig struct {
	GroupBy string
	// Fields restricts which feature properties become variables; nil
	// loads every numeric property.
	Fields []string
	// Aliases renames a source field to a different output variable.
	Aliases map[string]string
}

type PointConfig struct {
	Fields       []string
	MergeMethod  string
	InterpMethod string
}

// Config is the immutable per-session load configuration. It is
// passed by value to every loader invocation; loaders are pure
// functions of their inputs.
type Config struct {
	XCol string
	YCol string
	TCol string

	Raster RasterConfig
	Vector VectorConfig
	Point  PointConfig
}

func Default() Config {
	return Config{
		XCol: "x",
		YCol: "y",
		TCol: "time",
		Raster: RasterConfig{
			GroupBy: GroupByID,
		},
		Vector: VectorConfig{
			GroupBy: GroupByID,
		},
		Point: PointConfig{
			MergeMethod:  MergeMean,
			InterpMethod: InterpNearest,
		},
	}
}

func (c Config) Validate() error {
	if c.XCol == "" || c.YCol == "" {
		return fmt.Errorf("axis names must not be empty (x=%q y=%q)", c.XCol, c.YCol)
	}
	switch c.Raster.GroupBy {
	case GroupByID, GroupByTime:
	default:
		return fmt.Errorf("raster groupby %q: want %q or %q", c.Raster.GroupBy, GroupByID, GroupByTime)
	}
	switch c.Point.MergeMethod {
	case MergeMean, MergeSum, MergeMin, MergeMax:
	default:
		return fmt.Errorf("point merge method %q: want mean, sum, min or max", c.Point.MergeMethod)
	}
	switch c.Point.InterpMethod {
	case "", InterpNone, InterpNearest:
	default:
		return fmt.Errorf("point interp method %q: want %q or %q", c.Point.InterpMethod, InterpNearest, InterpNone)
	}
	return nil
}
