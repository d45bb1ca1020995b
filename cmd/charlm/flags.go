package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/model"
	"github.com/samcharles93/charlm/internal/train"
)

var (
	configFile string
	corpusPath string

	blockSize int64
	embedDim  int64
	numHeads  int64
	numLayers int64
	dropout   float64
	seed      uint64

	batchSize    int64
	maxIters     int64
	evalInterval int64
	evalIters    int64
	learningRate float64
	weightDecay  float64

	logLevel  string
	logFormat string
	debug     bool
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/charlm/config.yaml)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "path to the UTF-8 training corpus",
			Value:       "input.txt",
			Destination: &corpusPath,
		},
	}
}

func modelFlags() []cli.Flag {
	def := model.DefaultConfig(1)
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "block-size",
			Usage:       "context length in characters",
			Value:       int64(def.BlockSize),
			Destination: &blockSize,
		},
		&cli.Int64Flag{
			Name:        "embed-dim",
			Usage:       "embedding width",
			Value:       int64(def.EmbedDim),
			Destination: &embedDim,
		},
		&cli.Int64Flag{
			Name:        "heads",
			Usage:       "attention heads per layer (must divide embed-dim)",
			Value:       int64(def.NumHeads),
			Destination: &numHeads,
		},
		&cli.Int64Flag{
			Name:        "layers",
			Usage:       "number of transformer blocks",
			Value:       int64(def.NumLayers),
			Destination: &numLayers,
		},
		&cli.Float64Flag{
			Name:        "dropout",
			Usage:       "dropout rate applied while training",
			Value:       def.Dropout,
			Destination: &dropout,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "seed for initialisation, batching and sampling",
			Value:       def.Seed,
			Destination: &seed,
		},
	}
}

func trainFlags() []cli.Flag {
	def := train.DefaultConfig()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "batch-size",
			Usage:       "sequences per optimisation step",
			Value:       int64(def.BatchSize),
			Destination: &batchSize,
		},
		&cli.Int64Flag{
			Name:        "max-iters",
			Usage:       "optimisation steps",
			Value:       int64(def.MaxIters),
			Destination: &maxIters,
		},
		&cli.Int64Flag{
			Name:        "eval-interval",
			Usage:       "steps between loss estimates",
			Value:       int64(def.EvalInterval),
			Destination: &evalInterval,
		},
		&cli.Int64Flag{
			Name:        "eval-iters",
			Usage:       "batches averaged per loss estimate",
			Value:       int64(def.EvalIters),
			Destination: &evalIters,
		},
		&cli.Float64Flag{
			Name:        "learning-rate",
			Aliases:     []string{"lr"},
			Usage:       "AdamW learning rate",
			Value:       def.LearningRate,
			Destination: &learningRate,
		},
		&cli.Float64Flag{
			Name:        "weight-decay",
			Usage:       "AdamW decoupled weight decay",
			Value:       def.WeightDecay,
			Destination: &weightDecay,
		},
	}
}

func pipelineFlags() []cli.Flag {
	flags := corpusFlags()
	flags = append(flags, modelFlags()...)
	return append(flags, trainFlags()...)
}

func modelConfig(vocabSize int) model.Config {
	return model.Config{
		VocabSize: vocabSize,
		BlockSize: int(blockSize),
		EmbedDim:  int(embedDim),
		NumHeads:  int(numHeads),
		NumLayers: int(numLayers),
		Dropout:   dropout,
		Seed:      seed,
	}
}

func trainConfig() train.Config {
	return train.Config{
		BatchSize:    int(batchSize),
		MaxIters:     int(maxIters),
		EvalInterval: int(evalInterval),
		EvalIters:    int(evalIters),
		LearningRate: learningRate,
		WeightDecay:  weightDecay,
		Seed:         seed,
	}
}
