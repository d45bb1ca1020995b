package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/logger"
	"github.com/samcharles93/charlm/internal/model"
	"github.com/samcharles93/charlm/internal/train"
)

// trained is the in-memory result of a training run. Models are never
// written to disk, so every command that samples trains first.
type trained struct {
	data   *corpus.Dataset
	model  *model.LanguageModel
	report *train.Report
}

func trainFromFlags(ctx context.Context, cmd *cli.Command) (*trained, error) {
	log := logger.FromContext(ctx)
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyPipelineConfig(cmd, cfg)

	data, err := corpus.LoadDataset(corpusPath)
	if err != nil {
		return nil, err
	}
	log.Info("corpus loaded",
		"path", corpusPath,
		"vocab_size", data.Vocab.Size(),
		"train_tokens", len(data.Train),
		"val_tokens", len(data.Val),
	)

	m, err := model.New(modelConfig(data.Vocab.Size()))
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	tr, err := train.New(m, data, trainConfig(), log)
	if err != nil {
		return nil, err
	}
	report, err := tr.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &trained{data: data, model: m, report: report}, nil
}

// seedIDs encodes prompt, or returns BlockSize zero ids when it is empty.
func seedIDs(vocab *corpus.Vocabulary, cfg model.Config, prompt string) ([]int, error) {
	if prompt == "" {
		return make([]int, cfg.BlockSize), nil
	}
	return vocab.Encode(prompt)
}
