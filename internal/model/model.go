// Package model implements a character-level decoder-only transformer: token
// and position embeddings, a stack of pre-norm blocks with fused causal
// multi-head attention, a final LayerNorm and a linear head to vocabulary
// logits. Forward passes are pure functions of the weights; training mode
// additionally records a backward closure so gradients can be accumulated
// into each Param.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/charlm/internal/tensor"
)

// LanguageModel is the full transformer. Its weights are read-only during a
// forward pass and change only through an optimizer acting on Params().
type LanguageModel struct {
	cfg Config

	tokEmb *Param // [VocabSize x EmbedDim]
	posEmb *Param // [BlockSize x EmbedDim]
	blocks []*Block
	lnF    *LayerNorm
	head   *Linear // [EmbedDim x VocabSize]

	params []*Param
}

// New validates cfg and builds a randomly initialised model. Initialisation
// is a deterministic function of cfg.Seed.
func New(cfg Config) (*LanguageModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	m := &LanguageModel{
		cfg:    cfg,
		tokEmb: newParam("tok_emb", cfg.VocabSize, cfg.EmbedDim),
		posEmb: newParam("pos_emb", cfg.BlockSize, cfg.EmbedDim),
		lnF:    newLayerNorm("ln_f", cfg.EmbedDim),
	}
	tensor.FillNormal(&m.tokEmb.W, rng, initStd)
	tensor.FillNormal(&m.posEmb.W, rng, initStd)

	m.blocks = make([]*Block, cfg.NumLayers)
	for i := range m.blocks {
		b, err := newBlock(fmt.Sprintf("blocks.%d", i), cfg, rng)
		if err != nil {
			return nil, err
		}
		m.blocks[i] = b
	}
	m.head = newLinear("lm_head", cfg.EmbedDim, cfg.VocabSize, rng)

	m.params = []*Param{m.tokEmb, m.posEmb}
	for _, b := range m.blocks {
		m.params = append(m.params, b.params()...)
	}
	m.params = append(m.params, m.lnF.params()...)
	m.params = append(m.params, m.head.params()...)
	return m, nil
}

func (m *LanguageModel) Config() Config { return m.cfg }

// Params returns every learned parameter in a stable order.
func (m *LanguageModel) Params() []*Param { return m.params }

// NumParams returns the total number of scalar parameters.
func (m *LanguageModel) NumParams() int {
	n := 0
	for _, p := range m.params {
		n += len(p.W.Data)
	}
	return n
}

// ZeroGrad clears all accumulated gradients.
func (m *LanguageModel) ZeroGrad() {
	for _, p := range m.params {
		p.ZeroGrad()
	}
}

// Output is the result of one forward pass.
type Output struct {
	// Logits holds one row of VocabSize scores per position, row b*Time+t.
	Logits tensor.Mat
	Batch  int
	Time   int

	// Loss is the mean cross-entropy over all positions. It is only set when
	// targets were supplied.
	Loss    float64
	HasLoss bool

	dLogits tensor.Mat
	back    func(dLogits tensor.Mat)
}

// At returns the logits for sequence b at position t.
func (o *Output) At(b, t int) []float64 {
	return o.Logits.Row(b*o.Time + t)
}

// Backward propagates the loss gradient through the pass that produced o and
// adds it to every Param's gradient. It requires a Train mode pass with
// targets.
func (o *Output) Backward() error {
	if !o.HasLoss {
		return ErrNoTargets
	}
	if o.back == nil {
		return ErrNoGradients
	}
	o.back(o.dLogits)
	return nil
}

// Forward runs the model on a batch of equal-length id sequences. When
// targets is non-nil it must have the same shape and the mean cross-entropy
// is returned in Output.Loss. rng drives dropout and is only required in
// Train mode.
func (m *LanguageModel) Forward(inputs, targets [][]int, mode Mode, rng *rand.Rand) (*Output, error) {
	B, T, err := m.checkBatch(inputs, targets)
	if err != nil {
		return nil, err
	}
	if mode == Train && m.cfg.Dropout > 0 && rng == nil {
		return nil, ErrNoRandSource
	}
	p := &pass{mode: mode, rng: rng, track: mode == Train}

	x := m.embed(inputs, T)
	backs := make([]backFn, 0, len(m.blocks)+2)
	for _, b := range m.blocks {
		var back backFn
		x, back = b.forward(p, x, B)
		backs = append(backs, back)
	}
	x, lnBack := m.lnF.forward(p, x)
	logits, headBack := m.head.forward(p, x)
	backs = append(backs, lnBack, headBack)

	out := &Output{Logits: logits, Batch: B, Time: T}
	if targets != nil {
		out.Loss, out.dLogits = crossEntropy(&logits, targets, T, p.track)
		out.HasLoss = true
	}
	if p.track {
		out.back = func(d tensor.Mat) {
			for i := len(backs) - 1; i >= 0; i-- {
				d = backs[i](d)
			}
			m.embedBackward(inputs, T, d)
		}
	}
	return out, nil
}

func (m *LanguageModel) checkBatch(inputs, targets [][]int) (int, int, error) {
	B := len(inputs)
	if B == 0 {
		return 0, 0, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	T := len(inputs[0])
	if T == 0 {
		return 0, 0, fmt.Errorf("%w: empty sequence", ErrShapeMismatch)
	}
	if T > m.cfg.BlockSize {
		return 0, 0, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, T, m.cfg.BlockSize)
	}
	if targets != nil && len(targets) != B {
		return 0, 0, fmt.Errorf("%w: %d target rows for %d inputs", ErrShapeMismatch, len(targets), B)
	}
	for b, row := range inputs {
		if len(row) != T {
			return 0, 0, fmt.Errorf("%w: row %d has length %d, want %d", ErrShapeMismatch, b, len(row), T)
		}
		if err := m.checkIDs(row); err != nil {
			return 0, 0, err
		}
		if targets == nil {
			continue
		}
		if len(targets[b]) != T {
			return 0, 0, fmt.Errorf("%w: target row %d has length %d, want %d", ErrShapeMismatch, b, len(targets[b]), T)
		}
		if err := m.checkIDs(targets[b]); err != nil {
			return 0, 0, err
		}
	}
	return B, T, nil
}

func (m *LanguageModel) checkIDs(ids []int) error {
	for _, id := range ids {
		if id < 0 || id >= m.cfg.VocabSize {
			return fmt.Errorf("%w: %d (vocab size %d)", ErrTokenOutOfRange, id, m.cfg.VocabSize)
		}
	}
	return nil
}

// embed sums token and position embeddings. No dropout is applied here.
func (m *LanguageModel) embed(inputs [][]int, T int) tensor.Mat {
	x := tensor.NewMat(len(inputs)*T, m.cfg.EmbedDim)
	for b, row := range inputs {
		for t, id := range row {
			dst := x.Row(b*T + t)
			copy(dst, m.tokEmb.W.Row(id))
			tensor.Add(dst, m.posEmb.W.Row(t))
		}
	}
	return x
}

func (m *LanguageModel) embedBackward(inputs [][]int, T int, dx tensor.Mat) {
	for b, row := range inputs {
		for t, id := range row {
			g := dx.Row(b*T + t)
			tensor.Add(m.tokEmb.G.Row(id), g)
			tensor.Add(m.posEmb.G.Row(t), g)
		}
	}
}

// crossEntropy returns the mean negative log-likelihood of targets under
// softmax(logits) and, when grad is set, its gradient with respect to logits.
func crossEntropy(logits *tensor.Mat, targets [][]int, T int, grad bool) (float64, tensor.Mat) {
	n := logits.R
	var loss float64
	var d tensor.Mat
	if grad {
		d = tensor.NewMat(logits.R, logits.C)
	}
	inv := 1 / float64(n)
	for b, row := range targets {
		for t, target := range row {
			r := b*T + t
			l := logits.Row(r)
			loss += tensor.LogSumExp(l) - l[target]
			if grad {
				g := d.Row(r)
				copy(g, l)
				tensor.Softmax(g)
				g[target]--
				for j := range g {
					g[j] *= inv
				}
			}
		}
	}
	return loss * inv, d
}
