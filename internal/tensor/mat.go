package tensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mat represents a dense row‑major matrix of float64 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat does not perform any memory safety beyond the checks performed by Go's
// slice types; out‑of‑range indices will panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float64
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float64, r*c),
	}
}

// NewMatFromData creates a matrix from existing data.
// It checks that the data length matches r*c.
func NewMatFromData(r, c int, data []float64) Mat {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float64 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// At returns the element at row i, column j.
func (m *Mat) At(i, j int) float64 {
	return m.Data[i*m.Stride+j]
}

// Set stores v at row i, column j.
func (m *Mat) Set(i, j int, v float64) {
	m.Data[i*m.Stride+j] = v
}

// Zero clears every element.
func (m *Mat) Zero() {
	clear(m.Data)
}

// Clone returns a deep copy with a compact stride.
func (m *Mat) Clone() Mat {
	out := NewMat(m.R, m.C)
	for i := 0; i < m.R; i++ {
		copy(out.Row(i), m.Row(i))
	}
	return out
}

// Rows returns a view of rows [from, from+n) sharing m's backing slice.
func (m *Mat) Rows(from, n int) Mat {
	if from < 0 || n < 0 || from+n > m.R {
		panic("row range out of bounds")
	}
	start := from * m.Stride
	end := start
	if n > 0 {
		end = start + (n-1)*m.Stride + m.C
	}
	return Mat{R: n, C: m.C, Stride: m.Stride, Data: m.Data[start:end]}
}

// Cols copies columns [from, from+n) of m into a new n-column matrix.
func (m *Mat) Cols(from, n int) Mat {
	if from < 0 || n < 0 || from+n > m.C {
		panic("column range out of bounds")
	}
	out := NewMat(m.R, n)
	for i := 0; i < m.R; i++ {
		copy(out.Row(i), m.Row(i)[from:from+n])
	}
	return out
}

// SetCols writes src into columns [from, from+src.C) of m. Rows must match.
func (m *Mat) SetCols(from int, src *Mat) {
	if src.R != m.R || from < 0 || from+src.C > m.C {
		panic("column range out of bounds")
	}
	for i := 0; i < m.R; i++ {
		copy(m.Row(i)[from:from+src.C], src.Row(i))
	}
}

// General exposes m as a blas64.General sharing the same backing slice.
func (m *Mat) General() blas64.General {
	return blas64.General{
		Rows:   m.R,
		Cols:   m.C,
		Stride: max(m.Stride, 1),
		Data:   m.Data,
	}
}

// MatMul computes dst = op(a)*op(b) (or dst += op(a)*op(b) when accumulate is
// set), where op transposes its operand when the matching flag is true.
func MatMul(dst, a, b *Mat, transA, transB, accumulate bool) {
	m, k := a.R, a.C
	if transA {
		m, k = a.C, a.R
	}
	kb, n := b.R, b.C
	if transB {
		kb, n = b.C, b.R
	}
	if k != kb || dst.R != m || dst.C != n {
		panic("matmul: dimension mismatch")
	}
	beta := 0.0
	if accumulate {
		beta = 1
	}
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		if !accumulate {
			dst.Zero()
		}
		return
	}
	blas64.Gemm(transpose(transA), transpose(transB), 1, a.General(), b.General(), beta, dst.General())
}

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// FillNormal fills the matrix with draws from N(0, std²) using rng.  Multiple
// calls with identically seeded generators produce identical matrices.
func FillNormal(m *Mat, rng *rand.Rand, std float64) {
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: rng}
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = dist.Rand()
		}
	}
}

// Fill sets every element to v.
func Fill(m *Mat, v float64) {
	for i := range m.Data {
		m.Data[i] = v
	}
}
