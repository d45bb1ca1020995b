package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/logits"
	"github.com/samcharles93/charlm/internal/train"
)

func trainCmd() *cli.Command {
	var (
		reportPath string
		sampleLen  int64
		prompt     string
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model on the corpus and print a sample",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write the loss report as JSON to this path (- for stdout)",
				Destination: &reportPath,
			},
			&cli.Int64Flag{
				Name:        "sample",
				Usage:       "characters to generate after training (0 disables)",
				Value:       1000,
				Destination: &sampleLen,
			},
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "text to continue when sampling (default: block-size zero tokens)",
				Destination: &prompt,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := trainFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			if reportPath != "" {
				if err := writeReport(reportPath, t.report); err != nil {
					return err
				}
			}
			if sampleLen <= 0 {
				return nil
			}

			ids, err := seedIDs(t.data.Vocab, t.model.Config(), prompt)
			if err != nil {
				return err
			}
			sampler := logits.NewSampler(logits.SamplerConfig{Seed: seed})
			out, err := t.model.Generate(ids, int(sampleLen), sampler)
			if err != nil {
				return err
			}
			text, err := t.data.Vocab.Decode(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, text)
			return err
		},
	}
}

func writeReport(path string, report *train.Report) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return report.WriteJSON(w)
}
