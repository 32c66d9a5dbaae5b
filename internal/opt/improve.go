package opt

import "routemate/internal/model"

// Improve applies 2-opt to one vehicle's order sequence until no segment
// reversal shortens the path. The first position never moves, and the path
// is open (no return leg), so reversing [i..j] only touches the edge into i
// and, when present, the edge out of j.
//
// Total distance is non-increasing every pass and bounded below by zero, so
// the loop terminates. Worst case is cubic in the stop count, which is fine
// for per-vehicle routes of tens of stops.
func Improve(seq []model.Order, matrix [][]float64, index map[string]int) []model.Order {
	out := append([]model.Order(nil), seq...)
	n := len(out)
	if n < 3 {
		return out
	}
	dist := func(a, b model.Order) float64 {
		return matrix[index[a.ID]][index[b.ID]]
	}
	improved := true
	for improved {
		improved = false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				before := dist(out[i-1], out[i])
				after := dist(out[i-1], out[j])
				if j+1 < n {
					before += dist(out[j], out[j+1])
					after += dist(out[i], out[j+1])
				}
				if after+1e-9 < before {
					for a, b := i, j; a < b; a, b = a+1, b-1 {
						out[a], out[b] = out[b], out[a]
					}
					improved = true
				}
			}
		}
	}
	return out
}

// PathMiles returns the total open-path distance of seq using the matrix.
func PathMiles(seq []model.Order, matrix [][]float64, index map[string]int) float64 {
	total := 0.0
	for i := 0; i+1 < len(seq); i++ {
		total += matrix[index[seq[i].ID]][index[seq[i+1].ID]]
	}
	return total
}
