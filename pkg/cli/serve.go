package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/docent/pkg/server"
	"github.com/m-mizutani/docent/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg         config
		addr        string
		corsOrigins []string
		enableMCP   bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       ":8000",
			Sources:     cli.EnvVars("DOCENT_ADDR"),
			Destination: &addr,
		},
		&cli.StringSliceFlag{
			Name:        "cors-origin",
			Usage:       "Origin allowed to call the API from a browser (repeatable)",
			Value:       server.DefaultCORSOrigins,
			Sources:     cli.EnvVars("DOCENT_CORS_ORIGIN"),
			Destination: &corsOrigins,
		},
		&cli.BoolFlag{
			Name:        "mcp",
			Usage:       "Also serve MCP over streamable HTTP at /mcp",
			Sources:     cli.EnvVars("DOCENT_MCP"),
			Destination: &enableMCP,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, sessionFlags(&cfg)...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Flags:  flags,
		Before: cfg.before,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			sys, err := cfg.newSystem(ctx)
			if err != nil {
				return err
			}
			defer sys.Close(context.WithoutCancel(ctx))

			go sys.registry.Run(ctx)

			opts := []server.Option{server.WithCORSOrigins(corsOrigins...)}
			if enableMCP {
				opts = append(opts, server.WithMCP(mcp.NewServer(sys.uc, Version).Handler()))
			}

			return server.New(sys.uc, opts...).Run(ctx, addr)
		},
	}
}
