package grid

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/geoscape-io/stacube/internal/stac"
)

func testBound() orb.Bound {
	return orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name    string
		bound   orb.Bound
		w, h    int
		wantErr bool
	}{
		{"ok", testBound(), 256, 256, false},
		{"zero width", testBound(), 0, 10, true},
		{"negative height", testBound(), 10, -1, true},
		{"inverted extent", orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{-10, -10}}, 10, 10, true},
		{"empty extent", orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{5, 5}}, 10, 10, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("EPSG:4326", tc.bound, tc.w, tc.h)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New: err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestNewDefaultsCRS(t *testing.T) {
	g, err := New("", testBound(), 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if g.CRS() != DefaultCRS {
		t.Fatalf("CRS = %q, want %q", g.CRS(), DefaultCRS)
	}
}

func TestDeterminism(t *testing.T) {
	a, err := New("EPSG:4326", testBound(), 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("EPSG:4326", testBound(), 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same inputs produced different grids: %v vs %v", a, b)
	}
	if a.ResX() != 20.0/256 || a.ResY() != 20.0/256 {
		t.Fatalf("resolution = %v x %v, want %v", a.ResX(), a.ResY(), 20.0/256)
	}
}

func TestCellIndex(t *testing.T) {
	g, err := New("EPSG:4326", testBound(), 20, 20)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		x, y   float64
		ix, iy int
		ok     bool
	}{
		{"center", 0.5, 0.5, 10, 9, true},
		{"northwest corner cell", -9.5, 9.5, 0, 0, true},
		{"southeast corner cell", 9.5, -9.5, 19, 19, true},
		{"max edge clamps", 10, -10, 19, 19, true},
		{"west of extent", -10.5, 0, 0, 0, false},
		{"north of extent", 0, 10.5, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix, iy, ok := g.CellIndex(tc.x, tc.y)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && (ix != tc.ix || iy != tc.iy) {
				t.Fatalf("index = (%d,%d), want (%d,%d)", ix, iy, tc.ix, tc.iy)
			}
		})
	}
}

func TestCellCenterRoundTrip(t *testing.T) {
	g, err := New("EPSG:4326", testBound(), 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	for iy := 0; iy < g.Height(); iy++ {
		for ix := 0; ix < g.Width(); ix++ {
			x, y := g.CellCenter(ix, iy)
			gx, gy, ok := g.CellIndex(x, y)
			if !ok || gx != ix || gy != iy {
				t.Fatalf("cell (%d,%d) center (%f,%f) mapped back to (%d,%d,%v)", ix, iy, x, y, gx, gy, ok)
			}
		}
	}
}

func TestCoords(t *testing.T) {
	g, err := New("EPSG:4326", testBound(), 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	xs := g.XCoords()
	ys := g.YCoords()
	if len(xs) != 4 || len(ys) != 4 {
		t.Fatalf("coord lengths %d/%d, want 4/4", len(xs), len(ys))
	}
	// x ascends, y descends from the northern edge
	wantX := []float64{-7.5, -2.5, 2.5, 7.5}
	wantY := []float64{7.5, 2.5, -2.5, -7.5}
	for i := range wantX {
		if math.Abs(xs[i]-wantX[i]) > 1e-9 {
			t.Fatalf("XCoords[%d] = %f, want %f", i, xs[i], wantX[i])
		}
		if math.Abs(ys[i]-wantY[i]) > 1e-9 {
			t.Fatalf("YCoords[%d] = %f, want %f", i, ys[i], wantY[i])
		}
	}
}

func TestFromCollection(t *testing.T) {
	col := &stac.Collection{
		ID: "c1",
		Extent: stac.Extent{Spatial: stac.SpatialExtent{
			BBox: [][]float64{{-10, -10, 10, 10}},
		}},
	}

	g, err := FromCollection(col, Square(256))
	if err != nil {
		t.Fatal(err)
	}
	if g.Width() != 256 || g.Height() != 256 {
		t.Fatalf("shape = %dx%d, want 256x256", g.Width(), g.Height())
	}
	if g.Bound() != testBound() {
		t.Fatalf("bound = %v, want %v", g.Bound(), testBound())
	}

	again, err := FromCollection(col, Square(256))
	if err != nil {
		t.Fatal(err)
	}
	if g != again {
		t.Fatal("FromCollection is not deterministic")
	}

	if _, err := FromCollection(&stac.Collection{ID: "bare"}, Square(8)); err == nil {
		t.Fatal("expected error for collection without spatial extent")
	}
	if _, err := FromCollection(col, Shape{}); err == nil {
		t.Fatal("expected error for zero shape")
	}
	if _, err := FromCollection(nil, Square(8)); err == nil {
		t.Fatal("expected error for nil collection")
	}
}

func TestIntersectsAndContains(t *testing.T) {
	g, err := New("EPSG:4326", testBound(), 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	inside := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	outside := orb.Bound{Min: orb.Point{50, 50}, Max: orb.Point{60, 60}}
	if !g.Intersects(inside) {
		t.Fatal("inside bound should intersect")
	}
	if g.Intersects(outside) {
		t.Fatal("outside bound should not intersect")
	}
	if !g.Contains(orb.Point{0, 0}) || g.Contains(orb.Point{11, 0}) {
		t.Fatal("Contains misreports extent membership")
	}
}
