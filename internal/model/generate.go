package model

import (
	"fmt"
	"slices"
)

// Sampler picks the next token id from a row of logits.
type Sampler interface {
	Sample(logits []float64) int
}

// Generate extends seed by maxNewTokens ids. Each step conditions on the
// last BlockSize ids, takes the logits at the final position and draws the
// next id from sampler. The result is seed followed by the new ids; seed
// itself is not modified. An empty seed is conditioned on a single id 0.
func (m *LanguageModel) Generate(seed []int, maxNewTokens int, sampler Sampler) ([]int, error) {
	return m.GenerateFunc(seed, maxNewTokens, sampler, nil)
}

// GenerateFunc is Generate with a callback invoked after each new id. A
// callback error stops generation and is returned with the ids so far.
func (m *LanguageModel) GenerateFunc(seed []int, maxNewTokens int, sampler Sampler, fn func(id int) error) ([]int, error) {
	if maxNewTokens < 0 {
		return nil, fmt.Errorf("%w: max_new_tokens %d", ErrInvalidConfig, maxNewTokens)
	}
	if err := m.checkIDs(seed); err != nil {
		return nil, err
	}
	out := make([]int, len(seed), len(seed)+maxNewTokens)
	copy(out, seed)

	for range maxNewTokens {
		window := out
		if len(window) == 0 {
			window = []int{0}
		}
		if len(window) > m.cfg.BlockSize {
			window = window[len(window)-m.cfg.BlockSize:]
		}
		res, err := m.Forward([][]int{slices.Clip(window)}, nil, Eval, nil)
		if err != nil {
			return out, err
		}
		next := sampler.Sample(res.At(0, res.Time-1))
		if next < 0 || next >= m.cfg.VocabSize {
			return out, fmt.Errorf("%w: sampler returned %d", ErrTokenOutOfRange, next)
		}
		out = append(out, next)
		if fn != nil {
			if err := fn(next); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}
