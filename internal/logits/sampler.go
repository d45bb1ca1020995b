package logits

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samcharles93/charlm/internal/tensor"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed uint64
}

// Sampler draws token ids from the softmax of a logits row. It holds its own
// random source and is not safe for concurrent use.
type Sampler struct {
	rng  *rand.Rand
	prob []float64
}

// NewSampler returns a sampler whose draws are a deterministic function of
// cfg.Seed.
func NewSampler(cfg SamplerConfig) *Sampler {
	return NewSamplerFromRand(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)))
}

// NewSamplerFromRand returns a sampler that draws from rng.
func NewSamplerFromRand(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// Probabilities writes softmax(logits) into the sampler's scratch buffer and
// returns it. The slice is overwritten by the next call.
func (s *Sampler) Probabilities(logits []float64) []float64 {
	if cap(s.prob) < len(logits) {
		s.prob = make([]float64, len(logits))
	}
	prob := s.prob[:len(logits)]
	copy(prob, logits)
	tensor.Softmax(prob)
	return prob
}

// Sample draws a single index from the categorical distribution
// softmax(logits). logits must not be empty.
func (s *Sampler) Sample(logits []float64) int {
	if len(logits) == 0 {
		panic("sample: empty logits")
	}
	prob := s.Probabilities(logits)
	cat := distuv.NewCategorical(prob, s.rng)
	return int(cat.Rand())
}

// Argmax returns the index of the maximum value in the slice. If the slice is
// empty it panics.
func Argmax(x []float64) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
