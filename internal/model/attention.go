package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/samcharles93/charlm/internal/tensor"
)

// CausalSelfAttention is fused multi-head self-attention with a causal mask.
// One projection produces queries, keys and values for every head; head h
// reads columns [h*headDim, (h+1)*headDim) of each third.
type CausalSelfAttention struct {
	embedDim  int
	numHeads  int
	headDim   int
	blockSize int
	dropout   float64
	scale     float64

	qkv  *Linear // [embedDim x 3*embedDim]
	proj *Linear // [embedDim x embedDim]

	// mask[i][j] is true when position i may attend to position j.
	mask [][]bool
}

// NewCausalSelfAttention builds an attention layer. embedDim must be a
// multiple of numHeads.
func NewCausalSelfAttention(name string, embedDim, numHeads, blockSize int, dropout float64, rng *rand.Rand) (*CausalSelfAttention, error) {
	if numHeads < 1 || embedDim < 1 || blockSize < 1 {
		return nil, fmt.Errorf("%w: embed_dim=%d num_heads=%d block_size=%d", ErrInvalidConfig, embedDim, numHeads, blockSize)
	}
	if embedDim%numHeads != 0 {
		return nil, fmt.Errorf("%w: embed_dim (%d) %% num_heads (%d) != 0", ErrHeadsNotDivisor, embedDim, numHeads)
	}
	headDim := embedDim / numHeads
	mask := make([][]bool, blockSize)
	for i := range mask {
		mask[i] = make([]bool, blockSize)
		for j := 0; j <= i; j++ {
			mask[i][j] = true
		}
	}
	return &CausalSelfAttention{
		embedDim:  embedDim,
		numHeads:  numHeads,
		headDim:   headDim,
		blockSize: blockSize,
		dropout:   dropout,
		scale:     1 / math.Sqrt(float64(headDim)),
		qkv:       newLinear(name+".qkv", embedDim, 3*embedDim, rng),
		proj:      newLinear(name+".proj", embedDim, embedDim, rng),
		mask:      mask,
	}, nil
}

func (a *CausalSelfAttention) params() []*Param {
	return append(a.qkv.params(), a.proj.params()...)
}

// Forward applies attention to x, which holds batch sequences of equal length
// stacked row-wise ([batch*T x embedDim]). The result has the same shape.
// rng is only consulted in Train mode.
func (a *CausalSelfAttention) Forward(x tensor.Mat, batch int, mode Mode, rng *rand.Rand) (tensor.Mat, error) {
	if _, err := a.checkInput(x, batch); err != nil {
		return tensor.Mat{}, err
	}
	if mode == Train && a.dropout > 0 && rng == nil {
		return tensor.Mat{}, ErrNoRandSource
	}
	out, _ := a.forward(&pass{mode: mode, rng: rng}, x, batch)
	return out, nil
}

// Weights returns the post-softmax attention weights of every (sequence,
// head) pair in Eval mode, indexed [b*numHeads+h], each [T x T].
func (a *CausalSelfAttention) Weights(x tensor.Mat, batch int) ([]tensor.Mat, error) {
	T, err := a.checkInput(x, batch)
	if err != nil {
		return nil, err
	}
	qkv, _ := a.qkv.forward(&pass{mode: Eval}, x)
	out := make([]tensor.Mat, 0, batch*a.numHeads)
	for b := range batch {
		seq := qkv.Rows(b*T, T)
		for h := range a.numHeads {
			q := seq.Cols(h*a.headDim, a.headDim)
			k := seq.Cols(a.embedDim+h*a.headDim, a.headDim)
			out = append(out, a.weights(&q, &k))
		}
	}
	return out, nil
}

func (a *CausalSelfAttention) checkInput(x tensor.Mat, batch int) (int, error) {
	if batch < 1 || x.R == 0 || x.R%batch != 0 || x.C != a.embedDim {
		return 0, fmt.Errorf("%w: input %dx%d for batch %d, embed_dim %d", ErrShapeMismatch, x.R, x.C, batch, a.embedDim)
	}
	T := x.R / batch
	if T > a.blockSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, T, a.blockSize)
	}
	return T, nil
}

// weights computes softmax(mask(q·kᵀ·scale)) for one head.
func (a *CausalSelfAttention) weights(q, k *tensor.Mat) tensor.Mat {
	T := q.R
	att := tensor.NewMat(T, T)
	tensor.MatMul(&att, q, k, false, true, false)
	negInf := math.Inf(-1)
	for i := 0; i < T; i++ {
		row := att.Row(i)
		for j := range row {
			if a.mask[i][j] {
				row[j] *= a.scale
			} else {
				row[j] = negInf
			}
		}
		tensor.Softmax(row)
	}
	return att
}

type headCache struct {
	q, k, v  tensor.Mat
	att      tensor.Mat // post-softmax
	attDrop  tensor.Mat // after dropout
	dropBack backFn
}

func (a *CausalSelfAttention) forward(p *pass, x tensor.Mat, batch int) (tensor.Mat, backFn) {
	T := x.R / batch
	C, hd := a.embedDim, a.headDim

	qkv, qkvBack := a.qkv.forward(p, x)
	y := tensor.NewMat(x.R, C)

	var heads []headCache
	if p.track {
		heads = make([]headCache, 0, batch*a.numHeads)
	}
	for b := range batch {
		seq := qkv.Rows(b*T, T)
		dst := y.Rows(b*T, T)
		for h := range a.numHeads {
			q := seq.Cols(h*hd, hd)
			k := seq.Cols(C+h*hd, hd)
			v := seq.Cols(2*C+h*hd, hd)

			att := a.weights(&q, &k)
			attDrop, dropBack := dropout(p, att, a.dropout)

			out := tensor.NewMat(T, hd)
			tensor.MatMul(&out, &attDrop, &v, false, false, false)
			dst.SetCols(h*hd, &out)

			if p.track {
				heads = append(heads, headCache{q: q, k: k, v: v, att: att, attDrop: attDrop, dropBack: dropBack})
			}
		}
	}

	z, projBack := a.proj.forward(p, y)
	z, residBack := dropout(p, z, a.dropout)
	if !p.track {
		return z, nil
	}

	return z, func(dz tensor.Mat) tensor.Mat {
		dy := projBack(residBack(dz))
		dqkv := tensor.NewMat(x.R, 3*C)
		for b := range batch {
			dyb := dy.Rows(b*T, T)
			seg := dqkv.Rows(b*T, T)
			for h := range a.numHeads {
				hc := &heads[b*a.numHeads+h]
				dOut := dyb.Cols(h*hd, hd)

				dAttDrop := tensor.NewMat(T, T)
				tensor.MatMul(&dAttDrop, &dOut, &hc.v, false, true, false)
				dv := tensor.NewMat(T, hd)
				tensor.MatMul(&dv, &hc.attDrop, &dOut, true, false, false)

				dAtt := hc.dropBack(dAttDrop)
				dScores := softmaxBackward(&hc.att, &dAtt, a.scale)

				dq := tensor.NewMat(T, hd)
				tensor.MatMul(&dq, &dScores, &hc.k, false, false, false)
				dk := tensor.NewMat(T, hd)
				tensor.MatMul(&dk, &dScores, &hc.q, true, false, false)

				seg.SetCols(h*hd, &dq)
				seg.SetCols(C+h*hd, &dk)
				seg.SetCols(2*C+h*hd, &dv)
			}
		}
		return qkvBack(dqkv)
	}
}

// softmaxBackward returns scale·∂L/∂scores for row-wise softmax outputs att.
// Masked positions have zero probability and therefore zero gradient.
func softmaxBackward(att, dAtt *tensor.Mat, scale float64) tensor.Mat {
	ds := tensor.NewMat(att.R, att.C)
	for i := 0; i < att.R; i++ {
		p, g, out := att.Row(i), dAtt.Row(i), ds.Row(i)
		dot := tensor.Dot(p, g)
		for j := range p {
			out[j] = scale * p[j] * (g[j] - dot)
		}
	}
	return ds
}
