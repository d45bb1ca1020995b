package model

import "fmt"

// Config holds the architecture hyperparameters. Every layer receives only
// the fields it needs at construction.
type Config struct {
	VocabSize int     `yaml:"vocab_size" json:"vocab_size"`
	BlockSize int     `yaml:"block_size" json:"block_size"`
	EmbedDim  int     `yaml:"embed_dim" json:"embed_dim"`
	NumHeads  int     `yaml:"num_heads" json:"num_heads"`
	NumLayers int     `yaml:"num_layers" json:"num_layers"`
	Dropout   float64 `yaml:"dropout" json:"dropout"`
	Seed      uint64  `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the reference hyperparameters for a vocabulary of the
// given size.
func DefaultConfig(vocabSize int) Config {
	return Config{
		VocabSize: vocabSize,
		BlockSize: 30,
		EmbedDim:  40,
		NumHeads:  4,
		NumLayers: 3,
		Dropout:   0.2,
		Seed:      1337,
	}
}

// Validate checks the configuration is internally consistent.
func (c Config) Validate() error {
	if c.VocabSize < 1 {
		return fmt.Errorf("%w: vocab_size %d", ErrEmptyVocabulary, c.VocabSize)
	}
	if c.BlockSize < 1 || c.EmbedDim < 1 || c.NumHeads < 1 || c.NumLayers < 1 {
		return fmt.Errorf("%w: block_size=%d embed_dim=%d num_heads=%d num_layers=%d",
			ErrInvalidConfig, c.BlockSize, c.EmbedDim, c.NumHeads, c.NumLayers)
	}
	if c.EmbedDim%c.NumHeads != 0 {
		return fmt.Errorf("%w: embed_dim (%d) %% num_heads (%d) != 0", ErrHeadsNotDivisor, c.EmbedDim, c.NumHeads)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout %v outside [0,1)", ErrInvalidConfig, c.Dropout)
	}
	return nil
}

// HeadDim returns EmbedDim / NumHeads.
func (c Config) HeadDim() int {
	return c.EmbedDim / c.NumHeads
}

// Mode selects training or evaluation behaviour for a single forward call.
type Mode uint8

const (
	// Eval disables dropout and gradient tracking.
	Eval Mode = iota
	// Train enables dropout and records what Backward needs.
	Train
)

func (m Mode) String() string {
	switch m {
	case Eval:
		return "eval"
	case Train:
		return "train"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}
