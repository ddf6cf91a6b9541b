package raster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

// Raw is a decoded source raster, row-major from the north-west
// corner. Nodata cells hold NaN.
type Raw struct {
	Width  int
	Height int
	Pix    []float64
}

// DecodeFunc turns an asset payload into a Raw raster.
type DecodeFunc func(data []byte) (*Raw, error)

var decoders = map[string]DecodeFunc{
	"image/png":               decodeImage,
	"image/jpeg":              decodeImage,
	"application/x-grid+json": decodeGridJSON,
}

// RegisterDecoder installs a decoder for a media type, replacing any
// existing one. Heavyweight formats (COG, NetCDF) plug in here.
func RegisterDecoder(mediaType string, fn DecodeFunc) {
	decoders[normalizeMediaType(mediaType)] = fn
}

func decoderFor(mediaType string) (DecodeFunc, error) {
	mt := normalizeMediaType(mediaType)
	if fn, ok := decoders[mt]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("no raster decoder for media type %q", mediaType)
}

func normalizeMediaType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// decodeImage reads single-band imagery from PNG or JPEG payloads.
// Pixels are converted to 16-bit gray; fully transparent pixels are
// nodata.
func decodeImage(data []byte) (*Raw, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Raw{Width: w, Height: h, Pix: make([]float64, w*h)}
	nan := math.NaN()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			_, _, _, a := c.RGBA()
			if a == 0 {
				out.Pix[y*w+x] = nan
				continue
			}
			g := color.Gray16Model.Convert(c).(color.Gray16)
			out.Pix[y*w+x] = float64(g.Y)
		}
	}
	return out, nil
}

type gridJSON struct {
	Shape  []int      `json:"shape"` // [height, width]
	Data   []*float64 `json:"data"`  // row-major, null for nodata
	Nodata *float64   `json:"nodata,omitempty"`
}

// decodeGridJSON reads the plain JSON grid interchange format used by
// lightweight pipelines: a shape pair plus a flat row-major array.
func decodeGridJSON(data []byte) (*Raw, error) {
	var g gridJSON
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode grid json: %w", err)
	}
	if len(g.Shape) != 2 || g.Shape[0] <= 0 || g.Shape[1] <= 0 {
		return nil, fmt.Errorf("grid json: bad shape %v", g.Shape)
	}
	h, w := g.Shape[0], g.Shape[1]
	if len(g.Data) != h*w {
		return nil, fmt.Errorf("grid json: data length %d does not match shape %dx%d", len(g.Data), h, w)
	}
	out := &Raw{Width: w, Height: h, Pix: make([]float64, w*h)}
	nan := math.NaN()
	for i, p := range g.Data {
		switch {
		case p == nil:
			out.Pix[i] = nan
		case g.Nodata != nil && *p == *g.Nodata:
			out.Pix[i] = nan
		default:
			out.Pix[i] = *p
		}
	}
	return out, nil
}
