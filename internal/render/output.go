package render

import (
	"bytes"
	_ "embed"
	stdjson "encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/bakito/crd-explain/internal/flatten"
	"github.com/bakito/crd-explain/internal/openapi"
)

var (
	//go:embed explain.md.tpl
	explainTpl string
	//go:embed index.md.tpl
	indexTpl string

	funcs = template.FuncMap{
		"cell": cell,
	}
	explainTemplate = template.Must(template.New("explain.md.tpl").Funcs(funcs).Parse(explainTpl))
	indexTemplate   = template.Must(template.New("index.md.tpl").Parse(indexTpl))
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatYAML}

// ParseFormat validates a format name. "md" and "yml" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q, must be one of %v", s, Formats)
}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "md"
	}
}

// TypeNamer derives the type label of a field.
type TypeNamer interface {
	TypeName(s *openapi.Schema) string
}

// Field is one flattened path of a definition.
type Field struct {
	Path        string `json:"path"                  yaml:"path"`
	Type        string `json:"type,omitempty"        yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Ref         string `json:"ref,omitempty"         yaml:"ref,omitempty"`
}

// Explain is the rendered documentation of one definition.
type Explain struct {
	Name        string  `json:"name"                  yaml:"name"`
	Group       string  `json:"group,omitempty"       yaml:"group,omitempty"`
	Version     string  `json:"version,omitempty"     yaml:"version,omitempty"`
	Kind        string  `json:"kind"                  yaml:"kind"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields"                yaml:"fields"`
}

// NewExplain builds the explain document of the definition name from its flattened paths.
// If gvk is empty, the last segment of the name is used as kind.
func NewExplain(
	name string,
	gvk schema.GroupVersionKind,
	root *openapi.Schema,
	paths *flatten.Paths,
	namer TypeNamer,
) *Explain {
	e := &Explain{
		Name:    name,
		Group:   gvk.Group,
		Version: gvk.Version,
		Kind:    gvk.Kind,
		Fields:  make([]Field, 0, paths.Len()),
	}
	if e.Kind == "" {
		e.Kind = name[strings.LastIndex(name, ".")+1:]
	}
	if root != nil {
		e.Description = root.Description
	}

	for key, leaf := range paths.All() {
		f := Field{
			Path:        key,
			Type:        leaf.Type,
			Description: leaf.Description,
		}
		if leaf.IsRef() || leaf.IsArray() {
			f.Type = namer.TypeName(leaf)
		}
		if leaf.IsRef() {
			f.Ref = leaf.RefName()
		}
		e.Fields = append(e.Fields, f)
	}
	return e
}

// Write renders e to w.
func Write(w io.Writer, e *Explain, format Format) error {
	switch format {
	case FormatJSON:
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("error marshalling %s: %w", e.Name, err)
		}
		var out bytes.Buffer
		if err := stdjson.Indent(&out, b, "", "  "); err != nil {
			return err
		}
		out.WriteString("\n")
		_, err = out.WriteTo(w)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("error marshalling %s: %w", e.Name, err)
		}
		return enc.Close()
	default:
		return explainTemplate.Execute(w, e)
	}
}

// WriteFiles writes one file per explain document to
// <targetDir>/<group>/<version>/<kind>.<ext>. For markdown an index.md linking
// all documents is added.
func WriteFiles(explains []*Explain, targetDir string, format Format) error {
	var files []outFile
	for _, e := range explains {
		var sb strings.Builder
		if err := Write(&sb, e, format); err != nil {
			return fmt.Errorf("error generating content: %w", err)
		}

		outputFile := filepath.Join(targetDir, filepath.FromSlash(relPath(e, format)))
		files = append(files, outFile{
			name:       outputFile,
			content:    sb.String(),
			successMsg: "Successfully generated explain document",
			successArgs: []any{
				"group", e.Group,
				"version", e.Version,
				"kind", e.Kind,
				"file", outputFile,
			},
		})
	}

	if format == FormatMarkdown && len(explains) > 0 {
		index, err := generateIndex(explains, format)
		if err != nil {
			return fmt.Errorf("error generating index.md: %w", err)
		}
		outputFile := filepath.Join(targetDir, "index.md")
		files = append(files, outFile{
			name:        outputFile,
			content:     index,
			successMsg:  "Successfully generated index",
			successArgs: []any{"documents", len(explains), "file", outputFile},
		})
	}

	return writeFiles(files)
}

func writeFiles(files []outFile) error {
	for _, f := range files {
		dir := filepath.Dir(f.name)

		// Create the directory if it doesn't exist
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}

		if err := os.WriteFile(f.name, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("error writing output file: %w", err)
		}

		slog.With(f.successArgs...).Info(f.successMsg)
	}
	return nil
}

type outFile struct {
	name        string
	content     string
	successMsg  string
	successArgs []any
}

func relPath(e *Explain, format Format) string {
	group, version := e.Group, e.Version
	if group == "" {
		group = "ungrouped"
	}
	if version == "" {
		version = "unversioned"
	}
	return path.Join(group, version, e.Kind+"."+format.Ext())
}

type indexEntry struct {
	Kind string
	File string
}

type indexVersion struct {
	Name    string
	Entries []indexEntry
}

type indexGroup struct {
	Name     string
	Versions []*indexVersion
}

func generateIndex(explains []*Explain, format Format) (string, error) {
	sorted := slices.Clone(explains)
	slices.SortFunc(sorted, func(a, b *Explain) int {
		return strings.Compare(relPath(a, format), relPath(b, format))
	})

	var groups []*indexGroup
	for _, e := range sorted {
		file := relPath(e, format)
		parts := strings.Split(file, "/")
		if len(groups) == 0 || groups[len(groups)-1].Name != parts[0] {
			groups = append(groups, &indexGroup{Name: parts[0]})
		}
		g := groups[len(groups)-1]
		if len(g.Versions) == 0 || g.Versions[len(g.Versions)-1].Name != parts[1] {
			g.Versions = append(g.Versions, &indexVersion{Name: parts[1]})
		}
		v := g.Versions[len(g.Versions)-1]
		v.Entries = append(v.Entries, indexEntry{Kind: e.Kind, File: file})
	}

	var sb strings.Builder
	if err := indexTemplate.Execute(&sb, map[string]any{"Groups": groups}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// cell makes text safe for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}
