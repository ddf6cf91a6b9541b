package point

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/stac"
)

func testGrid(t *testing.T) grid.Grid {
	t.Helper()
	g, err := grid.New("EPSG:4326", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 4}}, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func serveCSV(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pointItem(id, href string) stac.Item {
	return stac.Item{
		ID:         id,
		Collection: "c",
		BBox:       []float64{0, 0, 4, 4},
		Assets: stac.AssetList{
			{Name: "table", Href: href, Type: "text/csv"},
		},
	}
}

func noInterp() loader.Config {
	cfg := loader.Default()
	cfg.Point.InterpMethod = loader.InterpNone
	return cfg
}

func TestLoadAggregation(t *testing.T) {
	// two observations land in the same cell, one in another
	srv := serveCSV(t, "x,y,temp\n0.4,0.6,10\n0.6,0.4,20\n3.5,3.5,5\n")
	g := testGrid(t)
	items := []stac.Item{pointItem("p1", srv.URL)}

	cases := []struct {
		method string
		want   float64
	}{
		{loader.MergeMean, 15},
		{loader.MergeSum, 30},
		{loader.MergeMin, 10},
		{loader.MergeMax, 20},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			cfg := noInterp()
			cfg.Point.MergeMethod = tc.method

			ds, err := New().Load(context.Background(), items, g, cfg)
			if err != nil {
				t.Fatal(err)
			}
			v, ok := ds.Var("temp")
			if !ok {
				t.Fatal("temp variable missing")
			}
			// both points fall in the south-west cell (0,3)
			if got := v.Data[3*4+0]; got != tc.want {
				t.Fatalf("aggregated cell = %v, want %v", got, tc.want)
			}
			// single observation in the north-east cell (3,0)
			if got := v.Data[3]; got != 5 {
				t.Fatalf("single cell = %v, want 5", got)
			}
			// untouched cell stays NaN without interpolation
			if !math.IsNaN(v.Data[1*4+1]) {
				t.Fatalf("empty cell = %v, want NaN", v.Data[1*4+1])
			}
		})
	}
}

func TestLoadStaticHasNoTimeAxis(t *testing.T) {
	srv := serveCSV(t, "x,y,temp\n0.5,0.5,10\n")
	g := testGrid(t)

	ds, err := New().Load(context.Background(), []stac.Item{pointItem("p1", srv.URL)}, g, noInterp())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Time) != 0 {
		t.Fatalf("static records produced a time axis: %v", ds.Time)
	}
	v, _ := ds.Var("temp")
	if len(v.Dims) != 2 {
		t.Fatalf("dims = %v, want [y x]", v.Dims)
	}
}

func TestLoadTimedRecords(t *testing.T) {
	srv := serveCSV(t, "x,y,time,temp\n"+
		"0.5,0.5,2025-07-02T00:00:00Z,20\n"+
		"0.5,0.5,2025-07-01T00:00:00Z,10\n")
	g := testGrid(t)

	ds, err := New().Load(context.Background(), []stac.Item{pointItem("p1", srv.URL)}, g, noInterp())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Time) != 2 || !ds.Time[0].Before(ds.Time[1]) {
		t.Fatalf("time axis = %v, want two ascending steps", ds.Time)
	}
	v, _ := ds.Var("temp")
	plane := 16
	if len(v.Data) != 2*plane {
		t.Fatalf("data length = %d", len(v.Data))
	}
	cell := 3*4 + 0
	if v.Data[cell] != 10 || v.Data[plane+cell] != 20 {
		t.Fatalf("slices misplaced: %v / %v", v.Data[cell], v.Data[plane+cell])
	}
}

func TestLoadItemTimeBackfill(t *testing.T) {
	srv := serveCSV(t, "x,y,temp\n0.5,0.5,10\n")
	g := testGrid(t)

	it := pointItem("p1", srv.URL)
	dt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	it.Properties = stac.Properties{Datetime: &dt}

	ds, err := New().Load(context.Background(), []stac.Item{it}, g, noInterp())
	if err != nil {
		t.Fatal(err)
	}
	// untimed records inherit the item datetime
	if len(ds.Time) != 1 || !ds.Time[0].Equal(dt) {
		t.Fatalf("time axis = %v, want [%v]", ds.Time, dt)
	}
}

func TestLoadMixedTimedAndUntimedFails(t *testing.T) {
	srv := serveCSV(t, "x,y,time,temp\n"+
		"0.5,0.5,2025-07-01T00:00:00Z,10\n")
	srv2 := serveCSV(t, "x,y,temp\n1.5,1.5,20\n")
	g := testGrid(t)

	// p2 has no item datetime to backfill with
	items := []stac.Item{pointItem("p1", srv.URL), pointItem("p2", srv2.URL)}
	_, err := New().Load(context.Background(), items, g, noInterp())
	if err == nil || !strings.Contains(err.Error(), "cannot mix timed and static") {
		t.Fatalf("got %v, want mixed records error", err)
	}
}

func TestLoadFieldSelection(t *testing.T) {
	srv := serveCSV(t, "x,y,temp,salinity\n0.5,0.5,10,35\n")
	g := testGrid(t)

	cfg := noInterp()
	cfg.Point.Fields = []string{"salinity"}
	ds, err := New().Load(context.Background(), []stac.Item{pointItem("p1", srv.URL)}, g, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.VarNames(); len(got) != 1 || got[0] != "salinity" {
		t.Fatalf("VarNames = %v, want [salinity]", got)
	}
}

func TestLoadNearestInterpolation(t *testing.T) {
	srv := serveCSV(t, "x,y,temp\n0.5,0.5,10\n")
	g := testGrid(t)

	cfg := loader.Default() // interp defaults to nearest
	ds, err := New().Load(context.Background(), []stac.Item{pointItem("p1", srv.URL)}, g, cfg)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ds.Var("temp")
	// single observation propagates to every cell
	for i, val := range v.Data {
		if val != 10 {
			t.Fatalf("cell %d = %v, want 10", i, val)
		}
	}
}

func TestLoadRecordsOutsideGridIgnored(t *testing.T) {
	srv := serveCSV(t, "x,y,temp\n50,50,99\n0.5,0.5,10\n")
	g := testGrid(t)

	ds, err := New().Load(context.Background(), []stac.Item{pointItem("p1", srv.URL)}, g, noInterp())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ds.Var("temp")
	for i, val := range v.Data {
		if val == 99 {
			t.Fatalf("out-of-grid record burned at cell %d", i)
		}
	}
}

func TestLoadNoPointAsset(t *testing.T) {
	g := testGrid(t)
	it := stac.Item{
		ID:     "p1",
		BBox:   []float64{0, 0, 4, 4},
		Assets: stac.AssetList{{Name: "data", Type: "image/tiff"}},
	}
	_, err := New().Load(context.Background(), []stac.Item{it}, g, loader.Default())
	if err == nil || !strings.Contains(err.Error(), "no point asset") {
		t.Fatalf("got %v, want no point asset error", err)
	}
}
