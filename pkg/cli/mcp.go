package cli

import (
	"context"

	"github.com/m-mizutani/docent/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, sessionFlags(&cfg)...)

	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve summarize and chat tools over MCP on stdin/stdout",
		Flags:  flags,
		Before: cfg.before,
		Action: func(ctx context.Context, c *cli.Command) error {
			sys, err := cfg.newSystem(ctx)
			if err != nil {
				return err
			}
			defer sys.Close(context.WithoutCancel(ctx))

			go sys.registry.Run(ctx)

			return mcp.NewServer(sys.uc, Version).RunStdio(ctx)
		},
	}
}
