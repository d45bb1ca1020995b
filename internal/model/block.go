package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/charlm/internal/tensor"
)

// Block is a pre-norm transformer layer:
//
//	x = x + attn(ln1(x))
//	x = x + ffwd(ln2(x))
type Block struct {
	ln1  *LayerNorm
	attn *CausalSelfAttention
	ln2  *LayerNorm
	ffwd *FeedForward
}

func newBlock(name string, cfg Config, rng *rand.Rand) (*Block, error) {
	attn, err := NewCausalSelfAttention(name+".attn", cfg.EmbedDim, cfg.NumHeads, cfg.BlockSize, cfg.Dropout, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Block{
		ln1:  newLayerNorm(name+".ln1", cfg.EmbedDim),
		attn: attn,
		ln2:  newLayerNorm(name+".ln2", cfg.EmbedDim),
		ffwd: newFeedForward(name+".ffwd", cfg.EmbedDim, cfg.Dropout, rng),
	}, nil
}

func (b *Block) params() []*Param {
	var ps []*Param
	ps = append(ps, b.ln1.params()...)
	ps = append(ps, b.attn.params()...)
	ps = append(ps, b.ln2.params()...)
	ps = append(ps, b.ffwd.params()...)
	return ps
}

func (b *Block) forward(p *pass, x tensor.Mat, batch int) (tensor.Mat, backFn) {
	h1, ln1Back := b.ln1.forward(p, x)
	a, attnBack := b.attn.forward(p, h1, batch)
	x1 := x.Clone()
	tensor.AddMat(&x1, &a)

	h2, ln2Back := b.ln2.forward(p, x1)
	f, ffBack := b.ffwd.forward(p, h2)
	out := x1.Clone()
	tensor.AddMat(&out, &f)

	if !p.track {
		return out, nil
	}
	return out, func(dy tensor.Mat) tensor.Mat {
		// Residual edges pass the gradient through unchanged.
		dx1 := dy.Clone()
		dBranch := ln2Back(ffBack(dy))
		tensor.AddMat(&dx1, &dBranch)

		dx := dx1.Clone()
		dBranch = ln1Back(attnBack(dx1))
		tensor.AddMat(&dx, &dBranch)
		return dx
	}
}
