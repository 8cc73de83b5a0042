package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/connet-dev/dirserve"
	"github.com/connet-dev/dirserve/pkg/statusc"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "serve a directory until interrupted",
		Args:  cobra.ExactArgs(1),
	}

	filenames, flagsConfig := configFlags(cmd)

	cmd.RunE = wrapErr("serve directory", func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(*filenames, *flagsConfig)
		if err != nil {
			return err
		}

		return serveRun(cmd.Context(), args[0], cfg.Server, logger, cmd.OutOrStdout())
	})

	return cmd
}

func serveRun(ctx context.Context, root string, cfg ServerConfig, logger *slog.Logger, out io.Writer) error {
	opts := cfg.options(logger)
	statusAddr, err := cfg.statusAddr()
	if err != nil {
		return err
	}

	h, err := dirserve.Start(root, opts...)
	if err != nil {
		return err
	}
	printStatus(out, h.Status())
	if cfg.openBrowser() {
		openBrowser(logger, h.URL())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if statusAddr != nil {
		g.Go(func() error {
			logger.Debug("running status server", "addr", statusAddr)
			return statusc.Run(ctx, statusAddr, func(ctx context.Context) (dirserve.Status, error) {
				return h.Status(), nil
			})
		})
	}

	g.Go(func() error {
		defer cancel()

		select {
		case <-ctx.Done():
		case <-h.Done():
		}
		err := h.Stop()
		idleColor.Fprintf(out, "stopped serving %s\n", h.Root())
		return err
	})

	return g.Wait()
}

func printStatus(out io.Writer, s dirserve.Status) {
	switch s.State {
	case statusc.Running:
		runningColor.Fprintf(out, "running at %s", s.URL)
		fmt.Fprintf(out, " serving %s\n", s.Root)
	case statusc.Idle:
		if s.Root == "" {
			idleColor.Fprintln(out, "idle, no directory selected (use: open <dir>)")
		} else {
			idleColor.Fprintf(out, "idle, selected %s\n", s.Root)
		}
	default:
		fmt.Fprintf(out, "%s %s\n", s.State, s.Root)
	}
}

func openBrowser(logger *slog.Logger, url string) {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("cannot open browser", "url", url, "err", err)
	}
}
