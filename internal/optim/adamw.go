// Package optim holds the parameter update rules used by the trainer.
package optim

import (
	"fmt"
	"math"
)

// Param is anything with a flat value slice and a gradient of the same
// length.
type Param interface {
	Values() []float64
	Grads() []float64
}

// AdamWConfig mirrors the PyTorch AdamW defaults.
type AdamWConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		LearningRate: 3e-4,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.01,
	}
}

// AdamW is Adam with decoupled weight decay:
//
//	p -= lr·wd·p
//	m  = β1·m + (1-β1)·g
//	v  = β2·v + (1-β2)·g²
//	p -= lr · m̂ / (√v̂ + ε)
//
// where m̂ and v̂ are the bias-corrected moments.
type AdamW struct {
	cfg    AdamWConfig
	params []Param
	m, v   [][]float64
	t      int
}

func NewAdamW(params []Param, cfg AdamWConfig) (*AdamW, error) {
	if cfg.LearningRate <= 0 || cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 || cfg.Epsilon <= 0 || cfg.WeightDecay < 0 {
		return nil, fmt.Errorf("optim: invalid adamw config %+v", cfg)
	}
	opt := &AdamW{
		cfg:    cfg,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		opt.m[i] = make([]float64, len(p.Values()))
		opt.v[i] = make([]float64, len(p.Values()))
	}
	return opt, nil
}

// Steps returns the number of updates applied so far.
func (opt *AdamW) Steps() int { return opt.t }

// Step applies one update to every parameter from its current gradient.
func (opt *AdamW) Step() {
	opt.t++
	c := opt.cfg
	bias1 := 1 - math.Pow(c.Beta1, float64(opt.t))
	bias2 := 1 - math.Pow(c.Beta2, float64(opt.t))
	decay := 1 - c.LearningRate*c.WeightDecay

	for i, p := range opt.params {
		w, g := p.Values(), p.Grads()
		m, v := opt.m[i], opt.v[i]
		for j := range w {
			w[j] *= decay
			m[j] = c.Beta1*m[j] + (1-c.Beta1)*g[j]
			v[j] = c.Beta2*v[j] + (1-c.Beta2)*g[j]*g[j]
			mHat := m[j] / bias1
			vHat := v[j] / bias2
			w[j] -= c.LearningRate * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}
}
