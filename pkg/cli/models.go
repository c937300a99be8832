package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func modelsCommand() *cli.Command {
	var (
		cfg config
		all bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "all",
			Aliases:     []string{"a"},
			Usage:       "Include embedding models and print the model type",
			Destination: &all,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:   "models",
		Usage:  "List models known to the LLM backend",
		Flags:  flags,
		Before: cfg.before,
		Action: func(ctx context.Context, c *cli.Command) error {
			llm, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}

			models, err := llm.ListModels(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list models", goerr.V("provider", cfg.llmProvider))
			}

			w := c.Root().Writer
			for _, m := range models {
				switch {
				case all:
					fmt.Fprintf(w, "%s\t%s\n", m.Type, m.ID)
				case m.Type == model.ModelTypeLLM:
					fmt.Fprintln(w, m.ID)
				}
			}
			return nil
		},
	}
}
