package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/connet-dev/dirserve"
	"github.com/connet-dev/dirserve/pkg/statusc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell [dir]",
		Short: "interactively pick, start and stop directories to serve",
		Args:  cobra.MaximumNArgs(1),
	}

	filenames, flagsConfig := configFlags(cmd)

	cmd.RunE = wrapErr("run shell", func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(*filenames, *flagsConfig)
		if err != nil {
			return err
		}

		statusAddr, err := cfg.Server.statusAddr()
		if err != nil {
			return err
		}

		c, err := dirserve.NewController(cfg.Server.options(logger)...)
		if err != nil {
			return err
		}

		var initial string
		if len(args) > 0 {
			initial = args[0]
		}

		var open func(string)
		if cfg.Server.openBrowser() {
			open = func(url string) { openBrowser(logger, url) }
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		if statusAddr != nil {
			g.Go(func() error {
				return statusc.Run(ctx, statusAddr, func(ctx context.Context) (dirserve.Status, error) {
					return c.Status(), nil
				})
			})
		}
		g.Go(func() error {
			// the status server runs only as long as the shell does
			defer cancel()
			return shellRun(ctx, c, initial, open, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		})
		return g.Wait()
	})

	return cmd
}

var errQuit = errors.New("quit")

// shellRun drives c from lines read from in until quit, end of input or ctx
// is done. A running server is stopped before it returns.
func shellRun(ctx context.Context, c *dirserve.Controller, initial string, open func(string), in io.Reader, out io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(ctx)
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Debug("cannot read input", "err", err)
		}
	}()

	g.Go(func() error {
		defer cancel()

		if initial != "" {
			if err := c.Select(ctx, initial); err != nil {
				printError(out, err)
			}
		}
		printStatus(out, c.Status())

		for {
			fmt.Fprint(out, "> ")
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				switch err := shellExec(ctx, c, line, open, out); {
				case errors.Is(err, errQuit):
					return nil
				case err != nil:
					printError(out, err)
				}
			}
		}
	})

	return g.Wait()
}

func shellExec(ctx context.Context, c *dirserve.Controller, line string, open func(string), out io.Writer) error {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch name {
	case "":
		return nil
	case "open", "select":
		if arg == "" {
			return fmt.Errorf("%s needs a directory", name)
		}
		err = c.Select(ctx, expandHome(arg))
	case "start":
		err = c.Start(ctx)
	case "stop":
		err = c.Stop(ctx)
	case "toggle":
		err = c.Toggle(ctx)
	case "status":
	case "help":
		fmt.Fprintln(out, "commands: open <dir>, start, stop, toggle, status, quit")
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command '%s', try help", name)
	}
	if err != nil {
		return err
	}

	status := c.Status()
	printStatus(out, status)
	if open != nil && status.State == statusc.Running && (name == "start" || name == "toggle") {
		open(status.URL)
	}
	return nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + string(os.PathSeparator) + rest
		}
	}
	return path
}
