package filter

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/stac"
)

func testGrid(t *testing.T) grid.Grid {
	t.Helper()
	g, err := grid.New("EPSG:4326", orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func item(id string, bbox []float64, assets ...stac.Asset) stac.Item {
	return stac.Item{ID: id, BBox: bbox, Assets: assets}
}

func TestAssetModality(t *testing.T) {
	cases := []struct {
		name  string
		asset stac.Asset
		want  Modality
		ok    bool
	}{
		{"raster role", stac.Asset{Roles: []string{"raster"}}, Raster, true},
		{"imagery role", stac.Asset{Roles: []string{"imagery"}}, Raster, true},
		{"vector role", stac.Asset{Roles: []string{"vector"}}, Vector, true},
		{"point role", stac.Asset{Roles: []string{"point"}}, Point, true},
		{"timeseries role", stac.Asset{Roles: []string{"timeseries"}}, Point, true},
		{"role wins over type", stac.Asset{Roles: []string{"vector"}, Type: "image/tiff"}, Vector, true},
		{"geotiff type", stac.Asset{Type: "image/tiff"}, Raster, true},
		{"png type", stac.Asset{Type: "image/png"}, Raster, true},
		{"grid json type", stac.Asset{Type: "application/x-grid+json"}, Raster, true},
		{"geojson type", stac.Asset{Type: "application/geo+json"}, Vector, true},
		{"shapefile type", stac.Asset{Type: "application/x-shapefile"}, Vector, true},
		{"csv type", stac.Asset{Type: "text/csv"}, Point, true},
		{"parquet type", stac.Asset{Type: "application/x-parquet"}, Point, true},
		{"type with params", stac.Asset{Type: "text/csv; charset=utf-8"}, Point, true},
		{"case insensitive", stac.Asset{Type: "Image/TIFF"}, Raster, true},
		{"unknown type", stac.Asset{Type: "application/pdf"}, Unclassified, false},
		{"empty asset", stac.Asset{}, Unclassified, false},
		{"thumbnail role only", stac.Asset{Roles: []string{"thumbnail"}}, Unclassified, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AssetModality(tc.asset)
			if ok != tc.ok || (ok && got != tc.want) {
				t.Fatalf("AssetModality = (%v,%v), want (%v,%v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestClassifyBuckets(t *testing.T) {
	g := testGrid(t)
	in := []float64{-1, -1, 1, 1}

	items := []stac.Item{
		item("r1", in, stac.Asset{Name: "data", Type: "image/tiff"}),
		item("r2", in, stac.Asset{Name: "data", Roles: []string{"raster"}}),
		item("v1", in, stac.Asset{Name: "data", Type: "application/geo+json"}),
		item("v2", in, stac.Asset{Name: "data", Roles: []string{"vector"}}),
		item("u1", in, stac.Asset{Name: "data", Type: "application/pdf"}),
	}

	p := Classify(items, g, stac.NewAssetKey(""))
	if got := ids(p.Raster); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
		t.Fatalf("raster bucket = %v", got)
	}
	if got := ids(p.Vector); !reflect.DeepEqual(got, []string{"v1", "v2"}) {
		t.Fatalf("vector bucket = %v", got)
	}
	if len(p.Point) != 0 {
		t.Fatalf("point bucket = %v, want empty", ids(p.Point))
	}
	if got := p.UnclassifiedIDs(); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Fatalf("unclassified = %v", got)
	}

	counts := p.Counts()
	if counts["raster"] != 2 || counts["vector"] != 2 || counts["point"] != 0 || counts["unclassified"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	g := testGrid(t)
	in := []float64{-1, -1, 1, 1}

	// the keyed asset decides even when other assets would match first
	// in document order
	it := item("multi", in,
		stac.Asset{Name: "preview", Type: "image/png"},
		stac.Asset{Name: "data", Type: "text/csv"},
	)
	p := Classify([]stac.Item{it}, g, stac.NewAssetKey("data"))
	if len(p.Point) != 1 {
		t.Fatalf("keyed csv asset should win: %v", p.Counts())
	}

	// keyed asset missing or unrecognized falls back to document order
	it2 := item("fallback", in,
		stac.Asset{Name: "meta", Type: "application/pdf"},
		stac.Asset{Name: "grid", Type: "application/x-grid+json"},
		stac.Asset{Name: "table", Type: "text/csv"},
	)
	p = Classify([]stac.Item{it2}, g, stac.NewAssetKey("data"))
	if len(p.Raster) != 1 {
		t.Fatalf("first recognized asset in document order should win: %v", p.Counts())
	}

	// per-item override redirects the keyed lookup
	key := stac.AssetKey{Default: "data", Overrides: map[string]string{"multi": "preview"}}
	p = Classify([]stac.Item{it}, g, key)
	if len(p.Raster) != 1 {
		t.Fatalf("override should classify by the preview asset: %v", p.Counts())
	}
}

func TestClassifySpatialPreFilter(t *testing.T) {
	g := testGrid(t)

	items := []stac.Item{
		item("in", []float64{-1, -1, 1, 1}, stac.Asset{Name: "data", Type: "image/tiff"}),
		item("out", []float64{40, 40, 50, 50}, stac.Asset{Name: "data", Type: "image/tiff"}),
		// touching the edge still counts as intersecting
		item("edge", []float64{10, 10, 20, 20}, stac.Asset{Name: "data", Type: "image/tiff"}),
		// no bbox and no geometry passes the filter
		item("boundless", nil, stac.Asset{Name: "data", Type: "image/tiff"}),
	}
	p := Classify(items, g, stac.NewAssetKey(""))
	got := ids(p.Raster)
	want := []string{"in", "edge", "boundless"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("raster bucket = %v, want %v", got, want)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	g := testGrid(t)
	in := []float64{-1, -1, 1, 1}
	items := []stac.Item{
		item("a", in, stac.Asset{Name: "data", Type: "image/tiff"}),
		item("b", in, stac.Asset{Name: "data", Type: "text/csv"}),
		item("c", in, stac.Asset{Name: "data", Type: "application/geo+json"}),
		item("d", in, stac.Asset{Name: "data"}),
	}
	key := stac.NewAssetKey("")
	first := Classify(items, g, key)
	second := Classify(items, g, key)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("classification is not deterministic")
	}

	// every item lands in exactly one bucket
	total := len(first.Raster) + len(first.Vector) + len(first.Point) + len(first.Unclassified)
	if total != len(items) {
		t.Fatalf("buckets hold %d items, want %d", total, len(items))
	}
}

func TestModalityString(t *testing.T) {
	if Raster.String() != "raster" || Vector.String() != "vector" ||
		Point.String() != "point" || Unclassified.String() != "unclassified" {
		t.Fatal("modality names changed")
	}
}

func ids(items []stac.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
