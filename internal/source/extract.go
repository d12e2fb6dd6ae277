package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/bakito/crd-explain/internal/openapi"
)

// ExtractOptions selects the files Extract copies.
type ExtractOptions struct {
	// Module is a Go module or repository, optionally with a version: "github.com/org/repo@v1.2.3".
	Module string
	// Path is the directory within the module holding the files.
	Path   string
	Target string
	Clear  bool
	// UseGit clones the repository instead of downloading the Go module.
	UseGit bool
	// CRDsOnly skips files that contain no CustomResourceDefinition.
	CRDsOnly bool
	Filter   Filter
}

// Extract fetches the module and copies the matching files of opts.Path into opts.Target.
func Extract(ctx context.Context, opts ExtractOptions) ([]File, error) {
	tmp, err := os.MkdirTemp("", "extract-crd-api")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	var moduleRoot string
	if opts.UseGit {
		moduleRoot, err = cloneModule(ctx, opts.Module, tmp)
	} else {
		moduleRoot, err = downloadModule(ctx, opts.Module, tmp)
	}
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Module downloaded successfully!")

	if opts.Clear {
		_ = os.RemoveAll(opts.Target)
	}
	return CopyFiles(ctx, filepath.Join(moduleRoot, opts.Path), opts.Target, opts.Filter, opts.CRDsOnly)
}

// SplitModule splits "module@version" into its parts.
func SplitModule(module string) (name, version string) {
	name, version, _ = strings.Cut(module, "@")
	return name, version
}

func cloneModule(ctx context.Context, module, dir string) (string, error) {
	slog.With("module", module, "tmp", dir).InfoContext(ctx, "Cloning module")
	name, version := SplitModule(module)

	var out bytes.Buffer
	r, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      repositoryURL(name),
		Progress: &out,
	})
	slog.DebugContext(ctx, "Git clone output", "output", out.String())
	if err != nil {
		return "", fmt.Errorf("failed to clone module: %w", err)
	}
	if version != "" {
		if err := checkoutTag(r, version); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func checkoutTag(r *git.Repository, tag string) error {
	w, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewTagReferenceName(tag),
	})
	if err != nil {
		return fmt.Errorf("failed to checkout tag %s: %w", tag, err)
	}
	return nil
}

func repositoryURL(name string) string {
	if strings.Contains(name, "://") || filepath.IsAbs(name) {
		return name
	}
	return "https://" + name
}

func downloadModule(ctx context.Context, module, dir string) (string, error) {
	slog.With("module", module, "tmp", dir).InfoContext(ctx, "Downloading")
	env := append(os.Environ(), "GOMODCACHE="+dir)
	if err := runCommand(ctx, env, "go", "mod", "download", module); err != nil {
		return "", fmt.Errorf("failed to download module: %w", err)
	}
	// the module cache is read-only
	if err := runCommand(ctx, nil, "chmod", "+w", "-R", dir); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	return filepath.Join(dir, module), nil
}

func runCommand(ctx context.Context, env []string, name string, args ...string) error {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	slog.DebugContext(ctx, "Command output", "command", name, "output", stdout.String())
	if err != nil {
		return fmt.Errorf("%w\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())
	}
	return nil
}

// File is an extracted file with the names of the CRD definitions it contains.
type File struct {
	Path        string
	Definitions []string
}

// CopyFiles copies the files of srcDir kept by the filters into target.
// Manifests are decoded to list the CRD definitions they hold. With crdsOnly,
// files without a CustomResourceDefinition are not copied.
func CopyFiles(ctx context.Context, srcDir, target string, filter Filter, crdsOnly bool) ([]File, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read api path %s: %w", srcDir, err)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target dir %s: %w", target, err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !filter.Keep(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", e.Name(), err)
		}

		f := File{Path: filepath.Join(target, e.Name()), Definitions: crdDefinitionNames(ctx, e.Name(), data)}
		if crdsOnly && len(f.Definitions) == 0 {
			slog.With("file", e.Name()).DebugContext(ctx, "Skipping file without CRDs")
			continue
		}
		if err := os.WriteFile(f.Path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to copy file %s: %w", e.Name(), err)
		}
		slog.With("file", f.Path, "definitions", f.Definitions).InfoContext(ctx, "Copied file")
		files = append(files, f)
	}
	return files, nil
}

func crdDefinitionNames(ctx context.Context, name string, data []byte) []string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}
	defs, err := openapi.ParseCRD(data, "")
	if err != nil {
		slog.With("file", name, "error", err).DebugContext(ctx, "No CRD found")
		return nil
	}
	return defs.Names()
}

// Filter selects files by name. If Includes are set, a name must match one of
// them; otherwise it must match none of the Excludes.
type Filter struct {
	Includes []*regexp.Regexp
	Excludes []*regexp.Regexp
}

// Keep reports whether name passes the filter.
func (f Filter) Keep(name string) bool {
	matches := func(re *regexp.Regexp) bool { return re.MatchString(name) }
	if len(f.Includes) > 0 {
		return slices.ContainsFunc(f.Includes, matches)
	}
	return !slices.ContainsFunc(f.Excludes, matches)
}
