package main

import (
	"bufio"
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/logits"
)

func generateCmd() *cli.Command {
	var (
		maxNewTokens int64
		prompt       string
		sampleSeed   uint64
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Train, then stream generated text to stdout",
		Flags: append(pipelineFlags(),
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Aliases:     []string{"n"},
				Usage:       "characters to generate",
				Value:       1000,
				Destination: &maxNewTokens,
			},
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "text to continue (default: block-size zero tokens)",
				Destination: &prompt,
			},
			&cli.Uint64Flag{
				Name:        "sample-seed",
				Usage:       "seed for sampling (default: --seed)",
				Destination: &sampleSeed,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := trainFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			if !cmd.IsSet("sample-seed") {
				sampleSeed = seed
			}

			ids, err := seedIDs(t.data.Vocab, t.model.Config(), prompt)
			if err != nil {
				return err
			}
			out := bufio.NewWriter(os.Stdout)
			defer func() { _ = out.Flush() }()

			head, err := t.data.Vocab.Decode(ids)
			if err != nil {
				return err
			}
			if _, err := out.WriteString(head); err != nil {
				return err
			}

			sampler := logits.NewSampler(logits.SamplerConfig{Seed: sampleSeed})
			_, err = t.model.GenerateFunc(ids, int(maxNewTokens), sampler, func(id int) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				piece, err := t.data.Vocab.Decode([]int{id})
				if err != nil {
					return err
				}
				if _, err := out.WriteString(piece); err != nil {
					return err
				}
				if piece == "\n" {
					return out.Flush()
				}
				return nil
			})
			if err != nil {
				return err
			}
			return out.WriteByte('\n')
		},
	}
}
