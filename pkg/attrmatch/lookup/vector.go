package lookup

import "gonum.org/v1/gonum/floats"

// AverageVector averages the vectors of length dim, skipping missing or
// mis-sized ones. It returns nil when no vector qualifies.
func AverageVector(vectors [][]float64, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	sum := make([]float64, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		floats.Add(sum, v)
		n++
	}
	if n == 0 {
		return nil
	}
	floats.Scale(1/float64(n), sum)
	return sum
}
