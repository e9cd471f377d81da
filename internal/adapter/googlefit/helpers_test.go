package googlefit

import "google.golang.org/api/fitness/v1"

func pointFromValues(values ...float64) *fitness.DataPoint {
	p := &fitness.DataPoint{}
	for _, v := range values {
		p.Value = append(p.Value, &fitness.Value{FpVal: v})
	}
	return p
}
