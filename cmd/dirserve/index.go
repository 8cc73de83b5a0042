package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/connet-dev/dirserve"
	"github.com/connet-dev/dirserve/pkg/dirindex"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type indexReport struct {
	Root     string      `json:"root" yaml:"root"`
	HasIndex bool        `json:"has_index" yaml:"has_index"`
	Files    []indexFile `json:"files" yaml:"files"`
}

type indexFile struct {
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url" yaml:"url"`
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "print what serving a directory would list, without serving it",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().SortFlags = false

	format := cmd.Flags().String("format", "text", "output format (text|json|yaml)")
	baseURL := cmd.Flags().String("base-url", "", "base url of the links (default from --port)")
	port := cmd.Flags().Int("port", 0, "port the links point to")

	cmd.RunE = wrapErr("index directory", func(cmd *cobra.Command, args []string) error {
		base := *baseURL
		if base == "" {
			base = ServerConfig{Port: *port}.baseURL()
		}

		report, err := buildIndexReport(args[0], base)
		if err != nil {
			return err
		}
		return writeIndexReport(cmd.OutOrStdout(), report, *format)
	})

	return cmd
}

func buildIndexReport(root string, baseURL string) (indexReport, error) {
	root, err := dirserve.ResolveRoot(root)
	if err != nil {
		return indexReport{}, err
	}

	hasIndex, err := dirindex.HasIndex(root)
	if err != nil {
		return indexReport{}, fmt.Errorf("%w: %w", dirserve.ErrIndexRead, err)
	}

	listing, err := dirindex.BuildListing(root, baseURL)
	if err != nil {
		return indexReport{}, err
	}

	report := indexReport{
		Root:     root,
		HasIndex: hasIndex,
		Files:    make([]indexFile, len(listing.Entries)),
	}
	for i, entry := range listing.Entries {
		report.Files[i] = indexFile{Path: entry, URL: listing.Href(entry)}
	}
	return report, nil
}

func writeIndexReport(w io.Writer, report indexReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if report.HasIndex {
			fmt.Fprintf(w, "%s has an index.html, it is served at /\n", report.Root)
		} else {
			fmt.Fprintf(w, "%s has no index.html, / lists %d files\n", report.Root, len(report.Files))
		}
		for _, f := range report.Files {
			if _, err := fmt.Fprintln(w, f.URL); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("invalid format '%s' (text|json|yaml)", format)
	}
}
