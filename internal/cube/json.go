package cube

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type datasetJSON struct {
	CRS       string      `json:"crs,omitempty"`
	BBox      []float64   `json:"bbox,omitempty"`
	X         Axis        `json:"x"`
	Y         Axis        `json:"y"`
	TName     string      `json:"t_name,omitempty"`
	Time      []time.Time `json:"time,omitempty"`
	Variables []Variable  `json:"variables"`
}

func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(datasetJSON{
		CRS:       d.CRS,
		BBox:      d.BBox,
		X:         d.X,
		Y:         d.Y,
		TName:     d.TName,
		Time:      d.Time,
		Variables: d.Vars(),
	})
}

type variableJSON struct {
	Name string     `json:"name"`
	Dims []string   `json:"dims"`
	Data []*float64 `json:"data"`
}

// NaN is not representable in JSON; missing cells round-trip as null.
func (v Variable) MarshalJSON() ([]byte, error) {
	data := make([]*float64, len(v.Data))
	for i := range v.Data {
		if !math.IsNaN(v.Data[i]) {
			data[i] = &v.Data[i]
		}
	}
	return json.Marshal(variableJSON{Name: v.Name, Dims: v.Dims, Data: data})
}

func (v *Variable) UnmarshalJSON(data []byte) error {
	var vj variableJSON
	if err := json.Unmarshal(data, &vj); err != nil {
		return fmt.Errorf("variable: %w", err)
	}
	out := Variable{Name: vj.Name, Dims: vj.Dims, Data: make([]float64, len(vj.Data))}
	for i, p := range vj.Data {
		if p == nil {
			out.Data[i] = math.NaN()
		} else {
			out.Data[i] = *p
		}
	}
	*v = out
	return nil
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var dj datasetJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	*d = Dataset{CRS: dj.CRS, BBox: dj.BBox, X: dj.X, Y: dj.Y, vars: map[string]Variable{}}
	if dj.TName != "" {
		d.SetTime(dj.TName, dj.Time)
	}
	for _, v := range dj.Variables {
		if err := d.AddVar(v); err != nil {
			return err
		}
	}
	return nil
}
