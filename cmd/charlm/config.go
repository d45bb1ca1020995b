package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config mirrors ~/.config/charlm/config.yaml. Pointer fields distinguish
// "not set" from zero values.
type Config struct {
	Input *string `yaml:"input"`

	Model struct {
		BlockSize *int64   `yaml:"block_size"`
		EmbedDim  *int64   `yaml:"embed_dim"`
		NumHeads  *int64   `yaml:"num_heads"`
		NumLayers *int64   `yaml:"num_layers"`
		Dropout   *float64 `yaml:"dropout"`
		Seed      *uint64  `yaml:"seed"`
	} `yaml:"model"`

	Train struct {
		BatchSize    *int64   `yaml:"batch_size"`
		MaxIters     *int64   `yaml:"max_iters"`
		EvalInterval *int64   `yaml:"eval_interval"`
		EvalIters    *int64   `yaml:"eval_iters"`
		LearningRate *float64 `yaml:"learning_rate"`
		WeightDecay  *float64 `yaml:"weight_decay"`
	} `yaml:"train"`

	Server struct {
		Address       *string  `yaml:"address"`
		MaxNewTokens  *int64   `yaml:"max_new_tokens"`
		RatePerSecond *float64 `yaml:"rate_per_second"`
		Burst         *int64   `yaml:"burst"`
	} `yaml:"server"`

	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "charlm", "config.yaml")
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file yields a zero Config; a missing explicit file or a
// malformed one is an error.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func setIfUnset[T any](c *cli.Command, flag string, dst *T, v *T) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}

// applyRootConfig applies logging settings from the config file.
func applyRootConfig(c *cli.Command, cfg Config) {
	setIfUnset(c, "log-level", &logLevel, cfg.LogLevel)
	setIfUnset(c, "log-format", &logFormat, cfg.LogFormat)
}

// applyPipelineConfig applies corpus, model and training settings from the
// config file where the corresponding flag was not given.
func applyPipelineConfig(c *cli.Command, cfg Config) {
	setIfUnset(c, "input", &corpusPath, cfg.Input)

	setIfUnset(c, "block-size", &blockSize, cfg.Model.BlockSize)
	setIfUnset(c, "embed-dim", &embedDim, cfg.Model.EmbedDim)
	setIfUnset(c, "heads", &numHeads, cfg.Model.NumHeads)
	setIfUnset(c, "layers", &numLayers, cfg.Model.NumLayers)
	setIfUnset(c, "dropout", &dropout, cfg.Model.Dropout)
	setIfUnset(c, "seed", &seed, cfg.Model.Seed)

	setIfUnset(c, "batch-size", &batchSize, cfg.Train.BatchSize)
	setIfUnset(c, "max-iters", &maxIters, cfg.Train.MaxIters)
	setIfUnset(c, "eval-interval", &evalInterval, cfg.Train.EvalInterval)
	setIfUnset(c, "eval-iters", &evalIters, cfg.Train.EvalIters)
	setIfUnset(c, "learning-rate", &learningRate, cfg.Train.LearningRate)
	setIfUnset(c, "weight-decay", &weightDecay, cfg.Train.WeightDecay)
}

// applyServeConfig applies server settings from the config file.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxNew *int64, ratePerSecond *float64, burst *int64) {
	setIfUnset(c, "addr", addr, cfg.Server.Address)
	setIfUnset(c, "max-new-tokens", maxNew, cfg.Server.MaxNewTokens)
	setIfUnset(c, "rate", ratePerSecond, cfg.Server.RatePerSecond)
	setIfUnset(c, "burst", burst, cfg.Server.Burst)
}
