package train

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for non-positive counts or rates.
var ErrInvalidConfig = errors.New("train: invalid config")

// Config controls a training run.
type Config struct {
	BatchSize    int     `yaml:"batch_size" json:"batch_size"`
	MaxIters     int     `yaml:"max_iters" json:"max_iters"`
	EvalInterval int     `yaml:"eval_interval" json:"eval_interval"`
	EvalIters    int     `yaml:"eval_iters" json:"eval_iters"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	WeightDecay  float64 `yaml:"weight_decay" json:"weight_decay"`
	Seed         uint64  `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the reference training schedule.
func DefaultConfig() Config {
	return Config{
		BatchSize:    64,
		MaxIters:     5000,
		EvalInterval: 500,
		EvalIters:    200,
		LearningRate: 3e-4,
		WeightDecay:  0.01,
		Seed:         1337,
	}
}

func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, c.BatchSize)
	case c.MaxIters < 0:
		return fmt.Errorf("%w: max iters %d", ErrInvalidConfig, c.MaxIters)
	case c.EvalInterval <= 0:
		return fmt.Errorf("%w: eval interval %d", ErrInvalidConfig, c.EvalInterval)
	case c.EvalIters <= 0:
		return fmt.Errorf("%w: eval iters %d", ErrInvalidConfig, c.EvalIters)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate %g", ErrInvalidConfig, c.LearningRate)
	case c.WeightDecay < 0:
		return fmt.Errorf("%w: weight decay %g", ErrInvalidConfig, c.WeightDecay)
	}
	return nil
}
