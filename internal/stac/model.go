// Package stac models the subset of the STAC catalog spec the loader
// consumes: collections, items and their assets.
package stac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultAssetKey is the asset name inspected for modality when no
// per-item override is configured.
const DefaultAssetKey = "data"

type Asset struct {
	Name  string   `json:"-"`
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (a Asset) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AssetList preserves the document order of an item's asset map. Order
// matters: classification scans assets in insertion order.
type AssetList []Asset

func (al AssetList) Get(name string) (Asset, bool) {
	for _, a := range al {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

func (al *AssetList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("assets: expected object, got %v", tok)
	}
	out := AssetList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("assets: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("assets: expected key, got %v", keyTok)
		}
		var a Asset
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("asset %q: %w", name, err)
		}
		a.Name = name
		out = append(out, a)
	}
	*al = out
	return nil
}

func (al AssetList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range al {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", a.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Properties struct {
	Datetime      *time.Time `json:"datetime"`
	StartDatetime *time.Time `json:"start_datetime,omitempty"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
}

type Item struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection,omitempty"`
	BBox       []float64         `json:"bbox,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
	Assets     AssetList         `json:"assets"`
}

// Bound returns the item's spatial bound, preferring the declared bbox
// over the geometry envelope. ok is false when the item carries neither.
func (it Item) Bound() (orb.Bound, bool) {
	if len(it.BBox) >= 4 {
		// 3D bboxes carry [minx,miny,minz,maxx,maxy,maxz]
		if len(it.BBox) >= 6 {
			return orb.Bound{
				Min: orb.Point{it.BBox[0], it.BBox[1]},
				Max: orb.Point{it.BBox[3], it.BBox[4]},
			}, true
		}
		return orb.Bound{
			Min: orb.Point{it.BBox[0], it.BBox[1]},
			Max: orb.Point{it.BBox[2], it.BBox[3]},
		}, true
	}
	if it.Geometry != nil {
		return it.Geometry.Geometry().Bound(), true
	}
	return orb.Bound{}, false
}

// Time returns the item's nominal timestamp: datetime when present,
// otherwise the start of the declared range.
func (it Item) Time() (time.Time, bool) {
	if it.Properties.Datetime != nil {
		return *it.Properties.Datetime, true
	}
	if it.Properties.StartDatetime != nil {
		return *it.Properties.StartDatetime, true
	}
	return time.Time{}, false
}

type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

type TemporalExtent struct {
	Interval [][]*time.Time `json:"interval"`
}

type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

type Collection struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Extent      Extent `json:"extent"`

	// Items is populated for static (file) catalogs that embed their
	// items inline; API catalogs leave it nil and page through /items.
	Items []Item `json:"items,omitempty"`
}

// Bound returns the collection's overall spatial extent.
func (c Collection) Bound() (orb.Bound, bool) {
	if len(c.Extent.Spatial.BBox) == 0 || len(c.Extent.Spatial.BBox[0]) < 4 {
		return orb.Bound{}, false
	}
	bb := c.Extent.Spatial.BBox[0]
	if len(bb) >= 6 {
		return orb.Bound{Min: orb.Point{bb[0], bb[1]}, Max: orb.Point{bb[3], bb[4]}}, true
	}
	return orb.Bound{Min: orb.Point{bb[0], bb[1]}, Max: orb.Point{bb[2], bb[3]}}, true
}

// AssetKey names the asset descriptor consulted first during modality
// classification. Overrides map item IDs to a different asset name.
type AssetKey struct {
	Default   string
	Overrides map[string]string
}

func NewAssetKey(name string) AssetKey {
	if name == "" {
		name = DefaultAssetKey
	}
	return AssetKey{Default: name}
}

// Resolve returns the asset name to inspect for the given item.
func (k AssetKey) Resolve(itemID string) string {
	if k.Overrides != nil {
		if v, ok := k.Overrides[itemID]; ok && v != "" {
			return v
		}
	}
	if k.Default == "" {
		return DefaultAssetKey
	}
	return k.Default
}
