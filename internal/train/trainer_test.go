package train

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/charlm/internal/corpus"
	"github.com/samcharles93/charlm/internal/logger"
	"github.com/samcharles93/charlm/internal/model"
)

func testDataset(t *testing.T) *corpus.Dataset {
	t.Helper()
	data, err := corpus.NewDataset(strings.Repeat("ab", 200))
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return data
}

func testModel(t *testing.T, vocab int) *model.LanguageModel {
	t.Helper()
	m, err := model.New(model.Config{
		VocabSize: vocab,
		BlockSize: 8,
		EmbedDim:  8,
		NumHeads:  2,
		NumLayers: 1,
		Dropout:   0,
		Seed:      3,
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return m
}

func testConfig() Config {
	return Config{
		BatchSize:    8,
		MaxIters:     60,
		EvalInterval: 20,
		EvalIters:    4,
		LearningRate: 1e-2,
		WeightDecay:  0,
		Seed:         5,
	}
}

func newTestTrainer(t *testing.T, cfg Config, log logger.Logger) *Trainer {
	t.Helper()
	data := testDataset(t)
	tr, err := New(testModel(t, data.Vocab.Size()), data, cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestRunReducesLossOnRepetitiveCorpus(t *testing.T) {
	t.Parallel()
	tr := newTestTrainer(t, testConfig(), nil)
	report, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Iters != 60 {
		t.Fatalf("iters: got %d want 60", report.Iters)
	}
	if got := len(report.Evals); got != 3 {
		t.Fatalf("evals: got %d want 3", got)
	}
	for i, ev := range report.Evals {
		if ev.Iter != i*20 {
			t.Fatalf("eval %d at iter %d", i, ev.Iter)
		}
	}
	first := report.Evals[0]
	if report.FinalVal() >= 0.5*first.Val || report.FinalTrain() >= 0.5*first.Train {
		t.Fatalf("loss did not fall: first %+v final %+v", first.Losses, report.Final)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxIters = 10
	cfg.EvalInterval = 5
	a, err := newTestTrainer(t, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := newTestTrainer(t, cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Final != b.Final {
		t.Fatalf("final losses differ: %+v vs %+v", a.Final, b.Final)
	}
	for i := range a.Evals {
		if a.Evals[i].Losses != b.Evals[i].Losses {
			t.Fatalf("eval %d differs", i)
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()
	tr := newTestTrainer(t, testConfig(), nil)
	before := slices.Clone(tr.Model().Params()[0].W.Data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Iters != 0 || !report.Cancelled {
		t.Fatalf("unexpected report %+v", report)
	}
	if !slices.Equal(before, tr.Model().Params()[0].W.Data) {
		t.Fatal("parameters changed after cancellation")
	}
}

func TestEstimateLossLeavesParameters(t *testing.T) {
	t.Parallel()
	tr := newTestTrainer(t, testConfig(), nil)
	before := slices.Clone(tr.Model().Params()[0].W.Data)
	l, err := tr.EstimateLoss()
	if err != nil {
		t.Fatalf("EstimateLoss: %v", err)
	}
	if l.Train <= 0 || l.Val <= 0 {
		t.Fatalf("expected positive losses, got %+v", l)
	}
	if !slices.Equal(before, tr.Model().Params()[0].W.Data) {
		t.Fatal("EstimateLoss modified parameters")
	}
}

func TestRunLogsEvaluations(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.MaxIters = 2
	tr := newTestTrainer(t, cfg, logger.JSON(&buf, slog.LevelInfo))
	if _, err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"eval"`, `"train_loss"`, `"val_loss"`, `"component":"trainer"`, `"msg":"training finished"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output:\n%s", want, out)
		}
	}
}

func TestReportWriteJSON(t *testing.T) {
	t.Parallel()
	r := &Report{
		Evals: []Eval{{Iter: 0, Losses: Losses{Train: 1.5, Val: 1.6}}},
		Final: Losses{Train: 0.5, Val: 0.6},
		Iters: 10,
	}
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded struct {
		Evals []struct {
			Iter  int     `json:"iter"`
			Train float64 `json:"train_loss"`
		} `json:"evals"`
		Final struct {
			Val float64 `json:"val_loss"`
		} `json:"final"`
		Iters int `json:"iters"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if len(decoded.Evals) != 1 || decoded.Evals[0].Train != 1.5 || decoded.Final.Val != 0.6 || decoded.Iters != 10 {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()
	data := testDataset(t)
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero eval interval", func(c *Config) { c.EvalInterval = 0 }},
		{"zero eval iters", func(c *Config) { c.EvalIters = 0 }},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"negative decay", func(c *Config) { c.WeightDecay = -1 }},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if _, err := New(testModel(t, data.Vocab.Size()), data, cfg, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}

	if _, err := New(testModel(t, 7), data, testConfig(), nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("vocab mismatch: expected ErrInvalidConfig, got %v", err)
	}

	short, err := corpus.NewDataset("abababab")
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	if _, err := New(testModel(t, 2), short, testConfig(), nil); !errors.Is(err, corpus.ErrSplitTooShort) {
		t.Fatalf("expected ErrSplitTooShort, got %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
