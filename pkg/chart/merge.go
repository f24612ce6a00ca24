// Package chart computes and incrementally maintains monthly time-series
// charts over the warehouse.
package chart

// Series is one chart line: parallel period labels ("YYYY-MM") and counts.
type Series struct {
	X []string `json:"x"`
	Y []int    `json:"y"`
}

// Values maps series name to series data. Single-series charts carry one
// entry.
type Values map[string]Series

func copySeries(s Series) Series {
	out := Series{X: make([]string, len(s.X)), Y: make([]int, len(s.Y))}
	copy(out.X, s.X)
	copy(out.Y, s.Y)
	return out
}

// MergeSeries appends newly computed points to an existing series using
// boundary-month coalescing: when the existing series ends in the same
// period the new one starts with, the two counts for that month are
// summed into a single point. Neither input is mutated.
func MergeSeries(existing, delta Series) Series {
	result := copySeries(existing)
	if len(delta.X) == 0 {
		return result
	}

	start := 0
	if len(result.X) > 0 && result.X[len(result.X)-1] == delta.X[0] {
		result.Y[len(result.Y)-1] += delta.Y[0]
		start = 1
	}
	result.X = append(result.X, delta.X[start:]...)
	result.Y = append(result.Y, delta.Y[start:]...)
	return result
}

// MergeValues merges every delta series into the existing values by name.
// Series only present in the delta are added verbatim; series only
// present in the existing values are kept unchanged.
func MergeValues(existing, delta Values) Values {
	result := make(Values, len(existing))
	for name, series := range existing {
		result[name] = MergeSeries(series, delta[name])
	}
	for name, series := range delta {
		if _, ok := result[name]; !ok {
			result[name] = copySeries(series)
		}
	}
	return result
}
