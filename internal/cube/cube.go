// Package cube holds the merged multi-dimensional output structure:
// named spatial axes, an optional time axis and one data variable per
// loaded band or field.
package cube

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrVariableConflict signals that two sources define a data
	// variable with the same name.
	ErrVariableConflict = errors.New("variable conflict")

	// ErrAxisLayout signals that the dataset exposes neither x/y nor
	// longitude/latitude spatial axes.
	ErrAxisLayout = errors.New("unsupported axis layout")

	// ErrAxisMismatch signals that datasets being merged disagree on
	// axis names or coordinate values.
	ErrAxisMismatch = errors.New("axis mismatch")
)

// Axis is a named coordinate vector.
type Axis struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Variable is one data layer, row-major over its dimensions.
// Dims is either [y x] or [time y x]; missing cells hold NaN.
type Variable struct {
	Name string    `json:"name"`
	Dims []string  `json:"dims"`
	Data []float64 `json:"data"`
}

// Dataset is a coordinate-aligned set of variables over shared axes.
type Dataset struct {
	CRS   string      `json:"crs,omitempty"`
	BBox  []float64   `json:"bbox,omitempty"`
	X     Axis        `json:"x"`
	Y     Axis        `json:"y"`
	TName string      `json:"t_name,omitempty"`
	Time  []time.Time `json:"time,omitempty"`

	vars  map[string]Variable
	order []string
}

// New builds an empty dataset over the given spatial axes.
func New(crs string, x, y Axis) *Dataset {
	return &Dataset{
		CRS:  crs,
		X:    x,
		Y:    y,
		vars: map[string]Variable{},
	}
}

// Empty reports whether the dataset holds no variables.
func (d *Dataset) Empty() bool { return d == nil || len(d.order) == 0 }

// SetTime attaches a time axis. Values must be ascending.
func (d *Dataset) SetTime(name string, values []time.Time) {
	d.TName = name
	d.Time = values
}

// AddVar registers a variable. Adding a name twice fails with
// ErrVariableConflict.
func (d *Dataset) AddVar(v Variable) error {
	if d.vars == nil {
		d.vars = map[string]Variable{}
	}
	if _, ok := d.vars[v.Name]; ok {
		return fmt.Errorf("%w: %q", ErrVariableConflict, v.Name)
	}
	if err := d.checkShape(v); err != nil {
		return err
	}
	d.vars[v.Name] = v
	d.order = append(d.order, v.Name)
	return nil
}

func (d *Dataset) checkShape(v Variable) error {
	want := len(d.X.Values) * len(d.Y.Values)
	hasTime := false
	for _, dim := range v.Dims {
		if dim == d.TName && d.TName != "" {
			hasTime = true
		}
	}
	if hasTime {
		want *= len(d.Time)
	}
	if len(v.Data) != want {
		return fmt.Errorf("variable %q: data length %d does not match dims %v (want %d)",
			v.Name, len(v.Data), v.Dims, want)
	}
	return nil
}

// Var returns a variable by name.
func (d *Dataset) Var(name string) (Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// VarNames returns variable names in insertion order.
func (d *Dataset) VarNames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Vars returns all variables in insertion order.
func (d *Dataset) Vars() []Variable {
	out := make([]Variable, 0, len(d.order))
	for _, n := range d.order {
		out = append(out, d.vars[n])
	}
	return out
}

// CheckAxisLayout verifies the dataset exposes a spatial axis pair a
// downstream consumer can address: x/y or longitude/latitude.
func (d *Dataset) CheckAxisLayout() error {
	x, y := d.X.Name, d.Y.Name
	if (x == "x" && y == "y") || (x == "longitude" && y == "latitude") {
		return nil
	}
	return fmt.Errorf("%w: got axes %q/%q, want x/y or longitude/latitude", ErrAxisLayout, x, y)
}

// NaNSlice returns a float slice of length n filled with NaN.
func NaNSlice(n int) []float64 {
	out := make([]float64, n)
	nan := math.NaN()
	for i := range out {
		out[i] = nan
	}
	return out
}

// Merge combines datasets using an outer join on coordinates. Spatial
// axes must match exactly (all parts come from one shared grid); the
// time axis is unioned and variables are reindexed with NaN fill. A
// data variable defined by two parts fails with ErrVariableConflict.
// Merging nothing yields a valid empty dataset.
func Merge(parts []*Dataset) (*Dataset, error) {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != nil {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return &Dataset{vars: map[string]Variable{}}, nil
	}

	first := nonEmpty[0]
	for _, p := range nonEmpty[1:] {
		if err := sameSpatialAxes(first, p); err != nil {
			return nil, err
		}
	}

	tName, union := unionTime(nonEmpty)

	out := New(first.CRS, first.X, first.Y)
	if tName != "" {
		out.SetTime(tName, union)
	}

	for _, p := range nonEmpty {
		for _, v := range p.Vars() {
			nv, err := reindexTime(p, v, union)
			if err != nil {
				return nil, err
			}
			if err := out.AddVar(nv); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func sameSpatialAxes(a, b *Dataset) error {
	if a.X.Name != b.X.Name || a.Y.Name != b.Y.Name {
		return fmt.Errorf("%w: axis names %q/%q vs %q/%q",
			ErrAxisMismatch, a.X.Name, a.Y.Name, b.X.Name, b.Y.Name)
	}
	if a.CRS != b.CRS {
		return fmt.Errorf("%w: CRS %q vs %q", ErrAxisMismatch, a.CRS, b.CRS)
	}
	if !equalFloats(a.X.Values, b.X.Values) || !equalFloats(a.Y.Values, b.Y.Values) {
		return fmt.Errorf("%w: coordinate values differ on shared axes", ErrAxisMismatch)
	}
	return nil
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unionTime(parts []*Dataset) (string, []time.Time) {
	name := ""
	seen := map[int64]struct{}{}
	var union []time.Time
	for _, p := range parts {
		if p.TName == "" {
			continue
		}
		name = p.TName
		for _, t := range p.Time {
			k := t.UnixNano()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			union = append(union, t)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })
	return name, union
}

// reindexTime places a variable's time slices at their positions in
// the union axis, filling absent steps with NaN.
func reindexTime(src *Dataset, v Variable, union []time.Time) (Variable, error) {
	hasTime := false
	for _, dim := range v.Dims {
		if dim == src.TName && src.TName != "" {
			hasTime = true
		}
	}
	if !hasTime || len(union) == 0 {
		return v, nil
	}
	if equalTimes(src.Time, union) {
		return v, nil
	}

	plane := len(src.X.Values) * len(src.Y.Values)
	data := NaNSlice(plane * len(union))
	pos := map[int64]int{}
	for i, t := range union {
		pos[t.UnixNano()] = i
	}
	for si, t := range src.Time {
		di, ok := pos[t.UnixNano()]
		if !ok {
			return Variable{}, fmt.Errorf("variable %q: time %v missing from union axis", v.Name, t)
		}
		copy(data[di*plane:(di+1)*plane], v.Data[si*plane:(si+1)*plane])
	}
	return Variable{Name: v.Name, Dims: v.Dims, Data: data}, nil
}

func equalTimes(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
