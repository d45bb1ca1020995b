package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/logits"
	"github.com/samcharles93/charlm/internal/model"
)

// Generation is the outcome of one Generator call.
type Generation struct {
	PromptTokens int
	Completion   string
}

// Generator samples text from a trained model. The model is only read;
// draws from the shared sampler are serialised, while requests that bring
// their own seed sample independently.
type Generator struct {
	model *model.LanguageModel
	vocab *corpus.Vocabulary

	mu      sync.Mutex
	sampler *logits.Sampler
}

// NewGenerator serves m, whose ids are decoded with vocab. seed fixes the
// shared sampler used by requests without a seed.
func NewGenerator(m *model.LanguageModel, vocab *corpus.Vocabulary, seed uint64) (*Generator, error) {
	if vocab.Size() != m.Config().VocabSize {
		return nil, fmt.Errorf("vocabulary has %d symbols, model expects %d", vocab.Size(), m.Config().VocabSize)
	}
	return &Generator{
		model:   m,
		vocab:   vocab,
		sampler: logits.NewSampler(logits.SamplerConfig{Seed: seed}),
	}, nil
}

func (g *Generator) Model() *model.LanguageModel { return g.model }
func (g *Generator) Vocab() *corpus.Vocabulary   { return g.vocab }

// Generate continues prompt by n characters. emit, when set, receives each
// decoded character as it is drawn. Generation stops early when ctx is done.
func (g *Generator) Generate(ctx context.Context, prompt string, n int, seed *uint64, emit func(piece string) error) (*Generation, error) {
	ids, err := g.vocab.Encode(prompt)
	if err != nil {
		return nil, newInvalidRequest("prompt", err.Error())
	}

	var sampler model.Sampler
	if seed != nil {
		sampler = logits.NewSampler(logits.SamplerConfig{Seed: *seed})
	} else {
		g.mu.Lock()
		defer g.mu.Unlock()
		sampler = g.sampler
	}

	out, err := g.model.GenerateFunc(ids, n, sampler, func(id int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if emit == nil {
			return nil
		}
		piece, err := g.vocab.Decode([]int{id})
		if err != nil {
			return err
		}
		return emit(piece)
	})
	if err != nil {
		return nil, err
	}
	completion, err := g.vocab.Decode(out[len(ids):])
	if err != nil {
		return nil, err
	}
	return &Generation{PromptTokens: len(ids), Completion: completion}, nil
}
