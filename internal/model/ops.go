package model

import (
	"math"
	"math/rand/v2"

	"github.com/samcharles93/charlm/internal/tensor"
)

const (
	initStd      = 0.02
	layerNormEps = 1e-5
)

// Param is a learned matrix and its accumulated gradient.
type Param struct {
	Name string
	W    tensor.Mat
	G    tensor.Mat
}

func newParam(name string, r, c int) *Param {
	return &Param{Name: name, W: tensor.NewMat(r, c), G: tensor.NewMat(r, c)}
}

// Values exposes the parameter values for the optimizer.
func (p *Param) Values() []float64 { return p.W.Data }

// Grads exposes the accumulated gradient for the optimizer.
func (p *Param) Grads() []float64 { return p.G.Data }

func (p *Param) ZeroGrad() { p.G.Zero() }

// pass is the execution state of one forward call. It is never stored on a
// layer, so concurrent forwards over the same weights do not interfere.
type pass struct {
	mode  Mode
	rng   *rand.Rand
	track bool
}

// backFn maps the gradient of a layer's output to the gradient of its input,
// accumulating parameter gradients on the way.
type backFn func(dy tensor.Mat) tensor.Mat

func identity(dy tensor.Mat) tensor.Mat { return dy }

// Linear computes y = x·W + b for row vectors x.
type Linear struct {
	In, Out int
	Weight  *Param // [In x Out]
	Bias    *Param // [1 x Out]
}

func newLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:     in,
		Out:    out,
		Weight: newParam(name+".weight", in, out),
		Bias:   newParam(name+".bias", 1, out),
	}
	tensor.FillNormal(&l.Weight.W, rng, initStd)
	return l
}

func (l *Linear) params() []*Param { return []*Param{l.Weight, l.Bias} }

func (l *Linear) forward(p *pass, x tensor.Mat) (tensor.Mat, backFn) {
	y := tensor.NewMat(x.R, l.Out)
	tensor.MatMul(&y, &x, &l.Weight.W, false, false, false)
	tensor.AddRow(&y, l.Bias.W.Row(0))
	if !p.track {
		return y, nil
	}
	return y, func(dy tensor.Mat) tensor.Mat {
		tensor.MatMul(&l.Weight.G, &x, &dy, true, false, true)
		tensor.SumRows(l.Bias.G.Row(0), &dy)
		dx := tensor.NewMat(x.R, l.In)
		tensor.MatMul(&dx, &dy, &l.Weight.W, false, true, false)
		return dx
	}
}

// LayerNorm rescales each row to zero mean and unit variance, then applies a
// learned scale and shift.
type LayerNorm struct {
	Dim   int
	Eps   float64
	Scale *Param // [1 x Dim]
	Shift *Param // [1 x Dim]
}

func newLayerNorm(name string, dim int) *LayerNorm {
	ln := &LayerNorm{
		Dim:   dim,
		Eps:   layerNormEps,
		Scale: newParam(name+".weight", 1, dim),
		Shift: newParam(name+".bias", 1, dim),
	}
	tensor.Fill(&ln.Scale.W, 1)
	return ln
}

func (ln *LayerNorm) params() []*Param { return []*Param{ln.Scale, ln.Shift} }

func (ln *LayerNorm) forward(p *pass, x tensor.Mat) (tensor.Mat, backFn) {
	y := tensor.NewMat(x.R, x.C)
	xhat := tensor.NewMat(x.R, x.C)
	rstd := make([]float64, x.R)
	gamma := ln.Scale.W.Row(0)
	beta := ln.Shift.W.Row(0)
	for i := 0; i < x.R; i++ {
		src := x.Row(i)
		mean, variance := tensor.MeanVar(src)
		rstd[i] = 1 / math.Sqrt(variance+ln.Eps)
		xh, dst := xhat.Row(i), y.Row(i)
		for j, v := range src {
			xh[j] = (v - mean) * rstd[i]
			dst[j] = xh[j]*gamma[j] + beta[j]
		}
	}
	if !p.track {
		return y, nil
	}
	return y, func(dy tensor.Mat) tensor.Mat {
		dx := tensor.NewMat(x.R, x.C)
		dGamma := ln.Scale.G.Row(0)
		dBeta := ln.Shift.G.Row(0)
		n := float64(x.C)
		for i := 0; i < x.R; i++ {
			g, xh, out := dy.Row(i), xhat.Row(i), dx.Row(i)
			var sum, sumXh float64
			for j := range g {
				d := g[j] * gamma[j]
				sum += d
				sumXh += d * xh[j]
				dGamma[j] += g[j] * xh[j]
				dBeta[j] += g[j]
			}
			for j := range g {
				d := g[j] * gamma[j]
				out[j] = rstd[i] * (d - sum/n - xh[j]*sumXh/n)
			}
		}
		return dx
	}
}

// dropout zeroes each element with probability rate during training and
// rescales survivors by 1/(1-rate). It is the identity in Eval mode.
func dropout(p *pass, x tensor.Mat, rate float64) (tensor.Mat, backFn) {
	if p.mode != Train || rate == 0 {
		return x, identity
	}
	scale := 1 / (1 - rate)
	mask := make([]float64, len(x.Data))
	y := tensor.NewMat(x.R, x.C)
	for i, v := range x.Data {
		if p.rng.Float64() >= rate {
			mask[i] = scale
			y.Data[i] = v * scale
		}
	}
	return y, func(dy tensor.Mat) tensor.Mat {
		dx := tensor.NewMat(dy.R, dy.C)
		for i, v := range dy.Data {
			dx.Data[i] = v * mask[i]
		}
		return dx
	}
}
