package session

import (
	"errors"
	"testing"

	"github.com/geoscape-io/stacube/internal/config"
)

func TestFromAppConfigExplicitGrid(t *testing.T) {
	cfg := config.Config{
		Endpoint:   "https://stac.example",
		Collection: "c1",
		GridCRS:    "EPSG:4326",
		GridBBox:   []float64{-10, -10, 10, 10},
		ShapeX:     256,
		AssetKey:   "data",
	}
	opts, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Grid == nil {
		t.Fatal("explicit bbox should build a grid")
	}
	// square shape when only X is given
	if opts.Grid.Width() != 256 || opts.Grid.Height() != 256 {
		t.Fatalf("grid = %v", opts.Grid)
	}
	if opts.Shape != nil {
		t.Fatal("shape should be unset when a grid is built")
	}
	if opts.AssetKey.Default != "data" {
		t.Fatalf("asset key = %+v", opts.AssetKey)
	}
}

func TestFromAppConfigShapeOnly(t *testing.T) {
	cfg := config.Config{Collection: "c1", ShapeX: 64, ShapeY: 32}
	opts, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Grid != nil {
		t.Fatal("no bbox should leave the grid nil")
	}
	if opts.Shape == nil || opts.Shape.Width != 64 || opts.Shape.Height != 32 {
		t.Fatalf("shape = %+v", opts.Shape)
	}
}

func TestFromAppConfigBadBBox(t *testing.T) {
	cases := []config.Config{
		{GridBBox: []float64{1, 2, 3}},                            // wrong arity
		{GridBBox: []float64{-10, -10, 10, 10}},                   // bbox without shape
		{GridBBox: []float64{10, 10, -10, -10}, ShapeX: 16},       // inverted
		{GridBBox: []float64{0, 0, 0, 0}, ShapeX: 16, ShapeY: 16}, // empty
	}
	for i, cfg := range cases {
		if _, err := FromAppConfig(cfg); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("case %d: got %v, want ErrConfiguration", i, err)
		}
	}
}

func TestFromAppConfigLoadMapping(t *testing.T) {
	cfg := config.Config{
		XCol:         "longitude",
		YCol:         "latitude",
		TCol:         "time",
		Bands:        []string{"red", "nir"},
		GroupBy:      "time",
		VectorFields: []string{"yield"},
		VectorAlias:  map[string]string{"yield": "v_yield"},
		PointFields:  []string{"temp"},
		MergeMethod:  "max",
		InterpMethod: "none",
		FetchWorkers: 4,
	}
	opts, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	l := opts.Load
	if l.XCol != "longitude" || l.YCol != "latitude" {
		t.Fatalf("axis cols = %q/%q", l.XCol, l.YCol)
	}
	if len(l.Raster.Bands) != 2 || l.Raster.GroupBy != "time" {
		t.Fatalf("raster cfg = %+v", l.Raster)
	}
	if l.Vector.Aliases["yield"] != "v_yield" {
		t.Fatalf("vector cfg = %+v", l.Vector)
	}
	if l.Point.MergeMethod != "max" || l.Point.InterpMethod != "none" {
		t.Fatalf("point cfg = %+v", l.Point)
	}
	if opts.FetchWorkers != 4 {
		t.Fatalf("workers = %d", opts.FetchWorkers)
	}
}
