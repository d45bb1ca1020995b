package model

import (
	"math/rand/v2"

	"github.com/samcharles93/charlm/internal/tensor"
)

// FeedForward is the position-wise MLP: embedDim → 4·embedDim → ReLU →
// embedDim → dropout. Rows never mix.
type FeedForward struct {
	fc      *Linear
	proj    *Linear
	dropout float64
}

func newFeedForward(name string, embedDim int, dropout float64, rng *rand.Rand) *FeedForward {
	return &FeedForward{
		fc:      newLinear(name+".fc", embedDim, 4*embedDim, rng),
		proj:    newLinear(name+".proj", 4*embedDim, embedDim, rng),
		dropout: dropout,
	}
}

func (f *FeedForward) params() []*Param {
	return append(f.fc.params(), f.proj.params()...)
}

func (f *FeedForward) forward(p *pass, x tensor.Mat) (tensor.Mat, backFn) {
	pre, fcBack := f.fc.forward(p, x)
	act := tensor.NewMat(pre.R, pre.C)
	for i, v := range pre.Data {
		act.Data[i] = tensor.Relu(v)
	}
	out, projBack := f.proj.forward(p, act)
	out, dropBack := dropout(p, out, f.dropout)
	if !p.track {
		return out, nil
	}
	return out, func(dy tensor.Mat) tensor.Mat {
		d := projBack(dropBack(dy))
		for i, v := range pre.Data {
			if v <= 0 {
				d.Data[i] = 0
			}
		}
		return fcBack(d)
	}
}
