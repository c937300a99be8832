package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Version is set at build time
var Version = "dev"

type Error struct {
	Code    int
	Message string
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "docent",
		Usage:   "Summarize documents and chat about them, grounded in their content",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
			modelsCommand(),
			mcpCommand(),
		},
	}
}

func Run(ctx context.Context, argv []string) *Error {
	if err := newRootCommand().Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
