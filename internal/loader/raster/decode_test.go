package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func TestDecodeGridJSON(t *testing.T) {
	raw, err := decodeGridJSON([]byte(`{"shape":[2,3],"data":[1,2,null,4,5,6]}`))
	if err != nil {
		t.Fatal(err)
	}
	if raw.Width != 3 || raw.Height != 2 {
		t.Fatalf("shape = %dx%d", raw.Width, raw.Height)
	}
	if raw.Pix[0] != 1 || raw.Pix[5] != 6 {
		t.Fatalf("pix = %v", raw.Pix)
	}
	if !math.IsNaN(raw.Pix[2]) {
		t.Fatalf("null cell = %v, want NaN", raw.Pix[2])
	}
}

func TestDecodeGridJSONNodata(t *testing.T) {
	raw, err := decodeGridJSON([]byte(`{"shape":[1,3],"data":[1,-9999,3],"nodata":-9999}`))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(raw.Pix[1]) {
		t.Fatalf("nodata cell = %v, want NaN", raw.Pix[1])
	}
}

func TestDecodeGridJSONErrors(t *testing.T) {
	cases := []string{
		`not json`,
		`{"shape":[2],"data":[1,2]}`,
		`{"shape":[0,2],"data":[]}`,
		`{"shape":[2,2],"data":[1,2,3]}`,
	}
	for _, doc := range cases {
		if _, err := decodeGridJSON([]byte(doc)); err == nil {
			t.Fatalf("accepted %q", doc)
		}
	}
}

func TestDecodePNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{A: 0}) // transparent is nodata

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	raw, err := decodeImage(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if raw.Width != 2 || raw.Height != 1 {
		t.Fatalf("shape = %dx%d", raw.Width, raw.Height)
	}
	if raw.Pix[0] != 65535 {
		t.Fatalf("white pixel = %v, want 65535", raw.Pix[0])
	}
	if !math.IsNaN(raw.Pix[1]) {
		t.Fatalf("transparent pixel = %v, want NaN", raw.Pix[1])
	}
}

func TestDecoderFor(t *testing.T) {
	if _, err := decoderFor("image/png"); err != nil {
		t.Fatal(err)
	}
	if _, err := decoderFor("Image/PNG; profile=x"); err != nil {
		t.Fatal(err)
	}
	if _, err := decoderFor("application/x-netcdf"); err == nil {
		t.Fatal("unknown media type should have no decoder")
	}

	RegisterDecoder("application/x-netcdf", func([]byte) (*Raw, error) {
		return &Raw{Width: 1, Height: 1, Pix: []float64{0}}, nil
	})
	if _, err := decoderFor("application/x-netcdf"); err != nil {
		t.Fatalf("registered decoder not found: %v", err)
	}
}
