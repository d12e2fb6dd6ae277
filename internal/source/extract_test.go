package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Keep(t *testing.T) {
	yaml := regexp.MustCompile(`\.yaml$`)
	kustomize := regexp.MustCompile(`^kustomization`)

	testCases := []struct {
		name   string
		file   string
		filter Filter
		want   bool
	}{
		{name: "no_filters", file: "a.go", want: true},
		{name: "included", file: "a.yaml", filter: Filter{Includes: []*regexp.Regexp{yaml}}, want: true},
		{name: "not_included", file: "a.go", filter: Filter{Includes: []*regexp.Regexp{yaml}}, want: false},
		{name: "excluded", file: "kustomization.yaml", filter: Filter{Excludes: []*regexp.Regexp{kustomize}}, want: false},
		{name: "not_excluded", file: "a.yaml", filter: Filter{Excludes: []*regexp.Regexp{kustomize}}, want: true},
		{
			name: "excludes_ignored_with_includes",
			file: "kustomization.yaml",
			filter: Filter{
				Includes: []*regexp.Regexp{yaml},
				Excludes: []*regexp.Regexp{kustomize},
			},
			want: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Keep(tc.file))
		})
	}
}

func TestCopyFiles(t *testing.T) {
	widgets, err := os.ReadFile(filepath.Join("..", "..", "testdata", "widgets.example.com.yaml"))
	require.NoError(t, err)

	src := t.TempDir()
	files := map[string][]byte{
		"widgets.yaml":       widgets,
		"b.yaml":             []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: b\n"),
		"kustomization.yaml": []byte("resources:\n  - widgets.yaml\n"),
		"README.md":          []byte("# CRDs"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), data, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub.yaml"), 0o755))
	filter := Filter{Excludes: []*regexp.Regexp{regexp.MustCompile(`^kustomization`)}}

	t.Run("all", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "out")
		copied, err := CopyFiles(context.Background(), src, target, filter, false)
		require.NoError(t, err)

		assert.Equal(t, []File{
			{Path: filepath.Join(target, "README.md")},
			{Path: filepath.Join(target, "b.yaml")},
			{Path: filepath.Join(target, "widgets.yaml"), Definitions: []string{"com.example.v1.Widget"}},
		}, copied)
		data, err := os.ReadFile(filepath.Join(target, "b.yaml"))
		require.NoError(t, err)
		assert.Equal(t, files["b.yaml"], data)
		assert.NoFileExists(t, filepath.Join(target, "kustomization.yaml"))
	})

	t.Run("crds_only", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "out")
		copied, err := CopyFiles(context.Background(), src, target, filter, true)
		require.NoError(t, err)

		require.Len(t, copied, 1)
		assert.Equal(t, filepath.Join(target, "widgets.yaml"), copied[0].Path)
		assert.NoFileExists(t, filepath.Join(target, "b.yaml"))
		assert.NoFileExists(t, filepath.Join(target, "README.md"))
	})

	t.Run("missing_source", func(t *testing.T) {
		_, err := CopyFiles(context.Background(), filepath.Join(src, "missing"), t.TempDir(), Filter{}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read api path")
	})
}

func TestRunCommand(t *testing.T) {
	require.NoError(t, runCommand(context.Background(), nil, "true"))

	err := runCommand(context.Background(), nil, "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stderr: broken")
}

func TestSplitModule(t *testing.T) {
	name, version := SplitModule("github.com/org/repo@v1.2.3")
	assert.Equal(t, "github.com/org/repo", name)
	assert.Equal(t, "v1.2.3", version)

	name, version = SplitModule("github.com/org/repo")
	assert.Equal(t, "github.com/org/repo", name)
	assert.Empty(t, version)
}

func TestRepositoryURL(t *testing.T) {
	assert.Equal(t, "https://github.com/org/repo", repositoryURL("github.com/org/repo"))
	assert.Equal(t, "ssh://git@example.com/repo", repositoryURL("ssh://git@example.com/repo"))
	assert.Equal(t, "/tmp/repo", repositoryURL("/tmp/repo"))
}

func TestCheckoutTag(t *testing.T) {
	dir := t.TempDir()
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := r.Worktree()
	require.NoError(t, err)

	commit := func(content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "crd.yaml"), []byte(content), 0o644))
		_, err := w.Add("crd.yaml")
		require.NoError(t, err)
		_, err = w.Commit(content, &git.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)
	}

	commit("v1")
	head, err := r.Head()
	require.NoError(t, err)
	_, err = r.CreateTag("v1.0.0", head.Hash(), nil)
	require.NoError(t, err)
	commit("v2")

	require.NoError(t, checkoutTag(r, "v1.0.0"))
	data, err := os.ReadFile(filepath.Join(dir, "crd.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	err = checkoutTag(r, "v9.9.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to checkout tag v9.9.9")
}
