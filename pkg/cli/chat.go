package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/usecase/document"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg         config
		file        string
		rawURL      string
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "PDF file to chat about",
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "url",
			Aliases:     []string{"u"},
			Usage:       "URL whose content to chat about",
			Destination: &rawURL,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File to keep readline input history",
			Sources:     cli.EnvVars("DOCENT_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, sessionFlags(&cfg)...)

	return &cli.Command{
		Name:   "chat",
		Usage:  "Summarize a PDF or URL and chat about it in the terminal",
		Flags:  flags,
		Before: cfg.before,
		Action: func(ctx context.Context, c *cli.Command) error {
			if (file == "") == (rawURL == "") {
				return goerr.New("exactly one of --file or --url is required")
			}

			sys, err := cfg.newSystem(ctx)
			if err != nil {
				return err
			}
			defer sys.Close(context.WithoutCancel(ctx))

			w := c.Root().Writer
			var summary *document.SummaryResult
			err = withSpinner(w, " Reading the document...", func() error {
				var err error
				summary, err = startSession(ctx, sys.uc, file, rawURL)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "%s\n\n", summary.Summary)
			fmt.Fprintf(w, "Session %s started. Type 'exit' to quit.\n", summary.SessionID)

			rlConfig := &readline.Config{
				Prompt:      "> ",
				Stdin:       io.NopCloser(c.Root().Reader),
				Stdout:      w,
				HistoryFile: historyFile,
			}
			if c.Root().Reader != os.Stdin {
				// piped input has no terminal to put into raw mode
				rlConfig.FuncIsTerminal = func() bool { return false }
				rlConfig.FuncMakeRaw = func() error { return nil }
				rlConfig.FuncExitRaw = func() error { return nil }
			}

			rl, err := readline.NewEx(rlConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				var resp *document.ChatResult
				err = withSpinner(w, " Thinking...", func() error {
					var err error
					resp, err = sys.uc.Chat(ctx, summary.SessionID, message)
					return err
				})
				if err != nil {
					fmt.Fprintf(w, "Error: %s\n", err.Error())
					continue
				}
				fmt.Fprintf(w, "%s\n\n", resp.Response)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}

func startSession(ctx context.Context, uc *document.UseCase, file, rawURL string) (*document.SummaryResult, error) {
	if rawURL != "" {
		return uc.SummarizeURL(ctx, rawURL)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction, goerr.Wrap(err, "failed to open file", goerr.V("path", file)))
	}
	defer f.Close()

	path, err := uc.Upload(ctx, filepath.Base(file), f)
	if err != nil {
		return nil, err
	}
	return uc.Summarize(ctx, path)
}

func withSpinner(w io.Writer, suffix string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(w),
		spinner.WithSuffix(suffix),
	)
	s.Start()
	defer s.Stop()
	return fn()
}
