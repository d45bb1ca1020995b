package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/model"
)

func TestLoadConfig(t *testing.T) {
	t.Run("parses nested sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := `input: shakespeare.txt
log_format: json
model:
  block_size: 64
  dropout: 0.1
  seed: 7
train:
  max_iters: 100
  learning_rate: 0.001
server:
  address: 0.0.0.0:9000
  burst: 3
`
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Input == nil || *cfg.Input != "shakespeare.txt" {
			t.Fatalf("input: %v", cfg.Input)
		}
		if cfg.Model.BlockSize == nil || *cfg.Model.BlockSize != 64 || *cfg.Model.Dropout != 0.1 || *cfg.Model.Seed != 7 {
			t.Fatalf("unexpected model section %+v", cfg.Model)
		}
		if cfg.Model.EmbedDim != nil {
			t.Fatal("unset field should stay nil")
		}
		if *cfg.Train.MaxIters != 100 || *cfg.Train.LearningRate != 0.001 {
			t.Fatalf("unexpected train section %+v", cfg.Train)
		}
		if *cfg.Server.Address != "0.0.0.0:9000" || *cfg.Server.Burst != 3 || *cfg.LogFormat != "json" {
			t.Fatalf("unexpected server section %+v", cfg.Server)
		}
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("expected error for missing explicit config")
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("model: [unclosed"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := loadConfig(path); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		cfg, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Input != nil || cfg.Model.BlockSize != nil {
			t.Fatalf("expected zero config, got %+v", cfg)
		}
	})
}

func TestSeedIDs(t *testing.T) {
	t.Parallel()
	vocab, err := corpus.BuildVocabulary("abc")
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	cfg := model.DefaultConfig(vocab.Size())

	ids, err := seedIDs(vocab, cfg, "")
	if err != nil {
		t.Fatalf("seedIDs: %v", err)
	}
	if len(ids) != cfg.BlockSize || slices.ContainsFunc(ids, func(id int) bool { return id != 0 }) {
		t.Fatalf("expected %d zero ids, got %v", cfg.BlockSize, ids)
	}

	ids, err = seedIDs(vocab, cfg, "cab")
	if err != nil {
		t.Fatalf("seedIDs: %v", err)
	}
	if !slices.Equal(ids, []int{2, 0, 1}) {
		t.Fatalf("got %v", ids)
	}

	if _, err := seedIDs(vocab, cfg, "z"); err == nil {
		t.Fatal("expected error for unknown character")
	}
}
