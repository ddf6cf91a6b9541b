// Package filter partitions a collection's items into modality buckets
// ahead of loading.
package filter

import (
	"strings"

	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/observability"
	"github.com/geoscape-io/stacube/internal/stac"
)

// Modality is the data representation family of an item's content.
type Modality int

const (
	Raster Modality = iota
	Vector
	Point
	Unclassified
)

func (m Modality) String() string {
	switch m {
	case Raster:
		return "raster"
	case Vector:
		return "vector"
	case Point:
		return "point"
	default:
		return "unclassified"
	}
}

// Modalities lists the loadable modalities in the fixed load order.
var Modalities = []Modality{Raster, Vector, Point}

// Partition is the read-only result of classifying a collection.
// Buckets preserve catalog order and an item appears in at most one.
// Unclassified holds items whose assets matched no modality; they are
// never loaded but stay visible to the caller.
type Partition struct {
	Raster       []stac.Item
	Vector       []stac.Item
	Point        []stac.Item
	Unclassified []stac.Item
}

// Bucket returns the items for a loadable modality.
func (p Partition) Bucket(m Modality) []stac.Item {
	switch m {
	case Raster:
		return p.Raster
	case Vector:
		return p.Vector
	case Point:
		return p.Point
	default:
		return p.Unclassified
	}
}

// Counts returns the bucket sizes keyed by modality name.
func (p Partition) Counts() map[string]int {
	return map[string]int{
		Raster.String():       len(p.Raster),
		Vector.String():       len(p.Vector),
		Point.String():        len(p.Point),
		Unclassified.String(): len(p.Unclassified),
	}
}

// UnclassifiedIDs returns the identifiers of items that matched no
// recognized modality.
func (p Partition) UnclassifiedIDs() []string {
	out := make([]string, 0, len(p.Unclassified))
	for _, it := range p.Unclassified {
		out = append(out, it.ID)
	}
	return out
}

// Classify partitions items by asset modality. Items whose bound does
// not intersect the grid extent are discarded before classification;
// items with a bound are required to have one only when they declare
// neither bbox nor geometry, in which case they pass the spatial
// filter (their assets may still cover the grid).
//
// Classification is first-match-wins: the asset named by the key is
// consulted first, then the remaining assets in document order. The
// function is pure and deterministic.
func Classify(items []stac.Item, g grid.Grid, key stac.AssetKey) Partition {
	var p Partition
	for _, it := range items {
		if b, ok := it.Bound(); ok && !g.Intersects(b) {
			continue
		}
		switch classifyItem(it, key) {
		case Raster:
			p.Raster = append(p.Raster, it)
		case Vector:
			p.Vector = append(p.Vector, it)
		case Point:
			p.Point = append(p.Point, it)
		default:
			p.Unclassified = append(p.Unclassified, it)
		}
	}
	observability.AddClassified(Raster.String(), len(p.Raster))
	observability.AddClassified(Vector.String(), len(p.Vector))
	observability.AddClassified(Point.String(), len(p.Point))
	observability.AddClassified(Unclassified.String(), len(p.Unclassified))
	return p
}

func classifyItem(it stac.Item, key stac.AssetKey) Modality {
	if a, ok := it.Assets.Get(key.Resolve(it.ID)); ok {
		if m, ok := AssetModality(a); ok {
			return m
		}
	}
	for _, a := range it.Assets {
		if m, ok := AssetModality(a); ok {
			return m
		}
	}
	return Unclassified
}

// AssetModality infers an asset's modality from its roles, falling
// back to the media type. ok is false for unrecognized assets.
func AssetModality(a stac.Asset) (Modality, bool) {
	switch {
	case a.HasRole("raster") || a.HasRole("imagery"):
		return Raster, true
	case a.HasRole("vector"):
		return Vector, true
	case a.HasRole("point") || a.HasRole("timeseries"):
		return Point, true
	}
	return mediaTypeModality(a.Type)
}

func mediaTypeModality(mediaType string) (Modality, bool) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "image/tiff" || mt == "image/geotiff" ||
		mt == "image/png" || mt == "image/jpeg" ||
		mt == "application/x-grid+json":
		return Raster, true
	case mt == "application/geo+json" ||
		mt == "application/x-shapefile" ||
		mt == "application/geopackage+sqlite3":
		return Vector, true
	case mt == "text/csv" || mt == "application/x-parquet":
		return Point, true
	}
	return Unclassified, false
}
