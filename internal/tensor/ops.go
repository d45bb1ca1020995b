package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Add adds src to dst element-wise.
func Add(dst, src []float64) {
	floats.Add(dst, src)
}

// AddMat adds src to dst element-wise. Shapes must match.
func AddMat(dst, src *Mat) {
	if dst.R != src.R || dst.C != src.C {
		panic("add: dimension mismatch")
	}
	for i := 0; i < dst.R; i++ {
		floats.Add(dst.Row(i), src.Row(i))
	}
}

// AddRow adds the vector v to every row of m.
func AddRow(m *Mat, v []float64) {
	for i := 0; i < m.R; i++ {
		floats.Add(m.Row(i), v)
	}
}

// SumRows accumulates the column sums of m into dst.
func SumRows(dst []float64, m *Mat) {
	for i := 0; i < m.R; i++ {
		floats.Add(dst, m.Row(i))
	}
}

// Dot computes the dot product of a and b.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Softmax applies the softmax function to x in place. Entries equal to
// -Inf receive zero probability.
func Softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	maxv := floats.Max(x)
	if math.IsInf(maxv, -1) {
		clear(x)
		return
	}
	var sum float64
	for i := range x {
		v := math.Exp(x[i] - maxv)
		x[i] = v
		sum += v
	}
	if sum == 0 {
		return
	}
	floats.Scale(1/sum, x)
}

// LogSumExp returns log(Σ exp(x)) computed stably.
func LogSumExp(x []float64) float64 {
	return floats.LogSumExp(x)
}

// Relu computes the rectified linear unit.
func Relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// MeanVar returns the mean and biased variance of x.
func MeanVar(x []float64) (mean, variance float64) {
	n := float64(len(x))
	mean = floats.Sum(x) / n
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	return mean, variance / n
}
