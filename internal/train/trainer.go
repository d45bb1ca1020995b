// Package train drives optimisation of a model.LanguageModel over a corpus.
package train

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/logger"
	"github.com/samcharles93/charlm/internal/model"
	"github.com/samcharles93/charlm/internal/optim"
)

// Trainer owns the optimizer state and the random source used for batch
// sampling and dropout. It is not safe for concurrent use.
type Trainer struct {
	cfg     Config
	model   *model.LanguageModel
	batches *corpus.Batcher
	opt     *optim.AdamW
	rng     *rand.Rand
	log     logger.Logger
}

// New prepares a trainer for m over data. The dataset must hold more than
// BlockSize tokens in each split.
func New(m *model.LanguageModel, data *corpus.Dataset, cfg Config, log logger.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if data.Vocab.Size() != m.Config().VocabSize {
		return nil, fmt.Errorf("%w: corpus has %d symbols, model expects %d",
			ErrInvalidConfig, data.Vocab.Size(), m.Config().VocabSize)
	}
	batches := corpus.NewBatcher(data, cfg.BatchSize, m.Config().BlockSize)
	if err := batches.Validate(); err != nil {
		return nil, err
	}

	params := make([]optim.Param, 0, len(m.Params()))
	for _, p := range m.Params() {
		params = append(params, p)
	}
	optCfg := optim.DefaultAdamWConfig()
	optCfg.LearningRate = cfg.LearningRate
	optCfg.WeightDecay = cfg.WeightDecay
	opt, err := optim.NewAdamW(params, optCfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Trainer{
		cfg:     cfg,
		model:   m,
		batches: batches,
		opt:     opt,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
		log:     log.With("component", "trainer"),
	}, nil
}

func (t *Trainer) Model() *model.LanguageModel { return t.model }

// Step runs one optimisation step on a fresh training batch and returns the
// batch loss measured before the update.
func (t *Trainer) Step() (float64, error) {
	batch, err := t.batches.GetBatch(corpus.SplitTrain, t.rng)
	if err != nil {
		return 0, err
	}
	t.model.ZeroGrad()
	out, err := t.model.Forward(batch.Inputs, batch.Targets, model.Train, t.rng)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}
	if err := out.Backward(); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	t.opt.Step()
	return out.Loss, nil
}

// EstimateLoss averages the loss of EvalIters batches from each split in
// eval mode. Parameters are not touched.
func (t *Trainer) EstimateLoss() (Losses, error) {
	var l Losses
	losses := make([]float64, t.cfg.EvalIters)
	for _, split := range []corpus.Split{corpus.SplitTrain, corpus.SplitVal} {
		for i := range losses {
			batch, err := t.batches.GetBatch(split, t.rng)
			if err != nil {
				return Losses{}, err
			}
			out, err := t.model.Forward(batch.Inputs, batch.Targets, model.Eval, nil)
			if err != nil {
				return Losses{}, fmt.Errorf("estimate %s loss: %w", split, err)
			}
			losses[i] = out.Loss
		}
		mean := stat.Mean(losses, nil)
		if split == corpus.SplitTrain {
			l.Train = mean
		} else {
			l.Val = mean
		}
	}
	return l, nil
}

// Run trains for MaxIters steps, estimating the loss every EvalInterval
// iterations and once more at the end. Cancellation is observed between
// steps; the partial report is returned together with ctx.Err().
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	t.log.Info("training started",
		"params", t.model.NumParams(),
		"max_iters", t.cfg.MaxIters,
		"batch_size", t.cfg.BatchSize,
		"learning_rate", t.cfg.LearningRate,
	)

	for iter := range t.cfg.MaxIters {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			report.Cancelled = true
			t.log.Warn("training cancelled", "iter", iter)
			return report, err
		}

		if iter%t.cfg.EvalInterval == 0 {
			losses, err := t.EstimateLoss()
			if err != nil {
				return report, err
			}
			ev := Eval{Iter: iter, Losses: losses, Elapsed: time.Since(start)}
			report.Evals = append(report.Evals, ev)
			t.log.Info("eval", "iter", iter, "train_loss", losses.Train, "val_loss", losses.Val, "elapsed", ev.Elapsed)
		}

		loss, err := t.Step()
		if err != nil {
			return report, fmt.Errorf("iter %d: %w", iter, err)
		}
		report.Iters = iter + 1
		t.log.Debug("step", "iter", iter, "loss", loss)
	}

	final, err := t.EstimateLoss()
	if err != nil {
		return report, err
	}
	report.Final = final
	report.Duration = time.Since(start)
	t.log.Info("training finished",
		"iters", report.Iters,
		"train_loss", final.Train,
		"val_loss", final.Val,
		"elapsed", report.Duration,
	)
	return report, nil
}
