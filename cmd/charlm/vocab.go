package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charlm/internal/corpus"
)

func vocabCmd() *cli.Command {
	return &cli.Command{
		Name:  "vocab",
		Usage: "Print the corpus vocabulary and split sizes",
		Flags: corpusFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			setIfUnset(cmd, "input", &corpusPath, cfg.Input)

			data, err := corpus.LoadDataset(corpusPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "vocab size:   %d\n", data.Vocab.Size())
			fmt.Fprintf(os.Stdout, "characters:   %q\n", data.Vocab.Chars())
			fmt.Fprintf(os.Stdout, "train tokens: %d\n", len(data.Train))
			fmt.Fprintf(os.Stdout, "val tokens:   %d\n", len(data.Val))
			return nil
		},
	}
}
