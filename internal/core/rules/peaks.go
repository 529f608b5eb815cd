package rules

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// localMaxima returns indices of local maxima; a flat top reports its middle
// index and edges never count
func localMaxima(x []float64) []int {
	var peaks []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// HasSpike reports whether some peak rises above both direct neighbours by at
// least a third of the series range plus its minimum
func HasSpike(x []float64) bool {
	if len(x) < 3 {
		return false
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	threshold := (hi-lo)/3 + lo
	for _, p := range localMaxima(x) {
		if x[p]-x[p-1] >= threshold && x[p]-x[p+1] >= threshold {
			return true
		}
	}
	return false
}

// trend fits traffic against sample index; a flat series yields NaN r2
func trend(y []float64) (slope, r2 float64) {
	xs := make([]float64, len(y))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, y, nil, false)
	return beta, stat.RSquared(xs, y, nil, alpha, beta)
}
