package point

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/stac"
)

// record is one geolocated observation with named numeric fields.
type record struct {
	pt     orb.Point
	t      time.Time
	hasT   bool
	fields map[string]float64
}

// parseRecords decodes a point asset payload. CSV and GeoJSON point
// collections are supported; records lacking a timestamp inherit the
// item's datetime.
func parseRecords(payload []byte, mediaType string, it stac.Item, cfg loader.Config) ([]record, error) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	var (
		recs []record
		err  error
	)
	switch mt {
	case "text/csv":
		recs, err = parseCSV(payload, cfg)
	case "application/geo+json":
		recs, err = parseGeoJSON(payload, cfg)
	default:
		return nil, fmt.Errorf("no point decoder for media type %q", mediaType)
	}
	if err != nil {
		return nil, err
	}

	if itemT, ok := it.Time(); ok {
		for i := range recs {
			if !recs[i].hasT {
				recs[i].t = itemT
				recs[i].hasT = true
			}
		}
	}
	return recs, nil
}

func parseCSV(payload []byte, cfg loader.Config) ([]record, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("csv payload has no header")
	}

	header := rows[0]
	xi, yi, ti := -1, -1, -1
	for i, h := range header {
		switch {
		case isXColumn(h, cfg.XCol):
			xi = i
		case isYColumn(h, cfg.YCol):
			yi = i
		case isTColumn(h, cfg.TCol):
			ti = i
		}
	}
	if xi < 0 || yi < 0 {
		return nil, fmt.Errorf("csv header %v: missing %q/%q coordinate columns", header, cfg.XCol, cfg.YCol)
	}

	out := make([]record, 0, len(rows)-1)
	for ri, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("csv row %d: %d columns, header has %d", ri+1, len(row), len(header))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[xi]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: parse %s: %w", ri+1, header[xi], err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[yi]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: parse %s: %w", ri+1, header[yi], err)
		}

		rec := record{pt: orb.Point{x, y}, fields: map[string]float64{}}
		if ti >= 0 {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row[ti]))
			if err != nil {
				return nil, fmt.Errorf("csv row %d: parse %s: %w", ri+1, header[ti], err)
			}
			rec.t, rec.hasT = ts, true
		}
		for i, h := range header {
			if i == xi || i == yi || i == ti {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				continue // non-numeric column
			}
			rec.fields[strings.TrimSpace(h)] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseGeoJSON(payload []byte, cfg loader.Config) ([]record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(payload)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	var out []record
	for i, feat := range fc.Features {
		if feat == nil || feat.Geometry == nil {
			continue
		}
		pt, ok := feat.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry %T is not a point", i, feat.Geometry)
		}
		rec := record{pt: pt, fields: map[string]float64{}}
		for k, v := range feat.Properties {
			if isTColumn(k, cfg.TCol) {
				if s, ok := v.(string); ok {
					if ts, err := time.Parse(time.RFC3339, s); err == nil {
						rec.t, rec.hasT = ts, true
					}
				}
				continue
			}
			if f, ok := numeric(v); ok {
				rec.fields[k] = f
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func isXColumn(h, xCol string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	return h == strings.ToLower(xCol) || h == "x" || h == "lon" || h == "longitude"
}

func isYColumn(h, yCol string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	return h == strings.ToLower(yCol) || h == "y" || h == "lat" || h == "latitude"
}

func isTColumn(h, tCol string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	return h == strings.ToLower(tCol) || h == "time" || h == "datetime" || h == "timestamp"
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
