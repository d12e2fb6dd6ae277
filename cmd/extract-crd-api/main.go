package main

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/bakito/crd-explain/internal/source"
)

var (
	excludeFlags []string
	includeFlags []string
	module       string
	path         string
	target       string
	clearTarget  bool
	useGit       bool
	crdsOnly     bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "extract-crd-api",
		Short:        "Extract CRD manifests or API files from a Go module",
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.StringSliceVarP(&excludeFlags, "exclude", "e", nil,
		"Regex pattern for file excludes (not considered if includes are defined)")
	f.StringSliceVarP(&includeFlags, "include", "i", nil, "Regex pattern for file includes")
	f.StringVarP(&module, "module", "m", "", "The go module to get the files from")
	f.StringVarP(&path, "path", "p", "", "The path within the module to the files")
	f.StringVarP(&target, "target", "t", "", "The target directory to copy the files to")
	f.BoolVarP(&clearTarget, "clear", "c", false, "Clear target dir")
	f.BoolVarP(&useGit, "use-git", "g", false, "Use git instead of go mod (if module is not properly versioned)")
	f.BoolVar(&crdsOnly, "crds-only", false, "Copy only files containing a CustomResourceDefinition")

	_ = cmd.MarkFlagRequired("module")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	opts := source.ExtractOptions{
		Module:   module,
		Path:     path,
		Target:   target,
		Clear:    clearTarget,
		UseGit:   useGit,
		CRDsOnly: crdsOnly,
	}
	l := slog.With("target", target, "path", path, "module", module,
		"clear", clearTarget, "use-git", useGit, "crds-only", crdsOnly)

	var err error
	if len(includeFlags) > 0 {
		if opts.Filter.Includes, err = compile(includeFlags); err != nil {
			return err
		}
		l = l.With("include", includeFlags)
	} else {
		if opts.Filter.Excludes, err = compile(excludeFlags); err != nil {
			return err
		}
		l = l.With("exclude", excludeFlags)
	}

	l.InfoContext(cmd.Context(), "extract-crd-api")

	files, err := source.Extract(cmd.Context(), opts)
	if err != nil {
		return err
	}
	var definitions int
	for _, f := range files {
		definitions += len(f.Definitions)
	}
	slog.With("files", len(files), "definitions", definitions).InfoContext(cmd.Context(), "Extracted files")
	return nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}
