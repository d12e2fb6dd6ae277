package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/bakito/crd-explain/internal/flatten"
	"github.com/bakito/crd-explain/internal/gvk"
	"github.com/bakito/crd-explain/internal/openapi"
)

const service = "io.k8s.api.core.v1.Service"

func serviceExplain(t *testing.T) *Explain {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	doc, err := openapi.LoadFile(filepath.Join(wd, "..", "..", "testdata", "service-spec.json"))
	require.NoError(t, err)

	resolver := gvk.NewResolver(gvk.DefaultRules())
	f := flatten.New(doc.Definitions, resolver)
	paths, err := f.FlattenDefinition(service, flatten.Auto())
	require.NoError(t, err)

	return NewExplain(service, resolver.Classify(service), doc.Definitions[service], paths, f)
}

func field(t *testing.T, e *Explain, path string) Field {
	t.Helper()
	for _, f := range e.Fields {
		if f.Path == path {
			return f
		}
	}
	require.Failf(t, "field not found", "path %s", path)
	return Field{}
}

func TestNewExplain(t *testing.T) {
	e := serviceExplain(t)

	assert.Equal(t, "core", e.Group)
	assert.Equal(t, "v1", e.Version)
	assert.Equal(t, "Service", e.Kind)
	assert.Len(t, e.Fields, 14)
	assert.Equal(t, ".apiVersion", e.Fields[0].Path)

	assert.Equal(t, Field{
		Path:        ".metadata",
		Type:        "ObjectMeta",
		Description: "Standard object's metadata.",
		Ref:         "io.k8s.apimachinery.pkg.apis.meta.v1.ObjectMeta",
	}, field(t, e, ".metadata"))
	assert.Equal(t, "ServicePort array", field(t, e, ".spec.ports").Type)
	assert.Equal(t, "string array", field(t, e, ".spec.externalIPs").Type)
	assert.Equal(t, "object (string)", field(t, e, ".spec.selector").Type)
	assert.Equal(t, "object", field(t, e, ".spec").Type)
}

func TestNewExplain_Unclassified(t *testing.T) {
	paths, err := flatten.New(openapi.Definitions{"x.Thing": {Type: "string"}}, gvk.NewResolver(nil)).
		FlattenDefinition("x.Thing", flatten.Never())
	require.NoError(t, err)

	e := NewExplain("x.Thing", gvk.NewResolver(nil).Classify("x.Thing"), nil, paths, nil)
	assert.Equal(t, "Thing", e.Kind)
	assert.Empty(t, e.Fields)
}

func TestWrite(t *testing.T) {
	e := serviceExplain(t)

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, e, FormatMarkdown))
		out := buf.String()
		assert.Contains(t, out, "# Service\n")
		assert.Contains(t, out, "| `core` | `v1` | `io.k8s.api.core.v1.Service` |")
		assert.Contains(t, out, "| `.spec.selector` | object (string) | Route service traffic")
		assert.Contains(t, out,
			"| `.metadata` | ObjectMeta (`io.k8s.apimachinery.pkg.apis.meta.v1.ObjectMeta`) | Standard object's metadata. |")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, e, FormatJSON))

		var decoded Explain
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, e, &decoded)
		assert.Contains(t, buf.String(), "\n  \"name\": ")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, e, FormatYAML))

		var decoded Explain
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, e, &decoded)
		assert.Contains(t, buf.String(), "- path: .spec.clusterIP")
	})
}

func TestWriteFiles(t *testing.T) {
	e := serviceExplain(t)
	other := &Explain{Name: "com.example.v1.Widget", Group: "example.com", Version: "v1", Kind: "Widget"}

	testCases := []struct {
		name          string
		format        Format
		expectedFiles []string
		missingFiles  []string
	}{
		{
			name:          "markdown",
			format:        FormatMarkdown,
			expectedFiles: []string{"core/v1/Service.md", "example.com/v1/Widget.md", "index.md"},
		},
		{
			name:          "json",
			format:        FormatJSON,
			expectedFiles: []string{"core/v1/Service.json", "example.com/v1/Widget.json"},
			missingFiles:  []string{"index.md"},
		},
		{
			name:          "yaml",
			format:        FormatYAML,
			expectedFiles: []string{"core/v1/Service.yaml", "example.com/v1/Widget.yaml"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			targetDir := t.TempDir()
			require.NoError(t, WriteFiles([]*Explain{other, e}, targetDir, tc.format))

			for _, file := range tc.expectedFiles {
				assert.FileExists(t, filepath.Join(targetDir, file))
			}
			for _, file := range tc.missingFiles {
				assert.NoFileExists(t, filepath.Join(targetDir, file))
			}
		})
	}
}

func TestWriteFiles_Index(t *testing.T) {
	targetDir := t.TempDir()
	require.NoError(t, WriteFiles([]*Explain{
		{Name: "com.example.v1.Widget", Group: "example.com", Version: "v1", Kind: "Widget"},
		{Name: "com.example.v1alpha1.Widget", Group: "example.com", Version: "v1alpha1", Kind: "Widget"},
		{Name: "com.example.v1.Gadget", Group: "example.com", Version: "v1", Kind: "Gadget"},
		{Name: "x.Thing", Kind: "Thing"},
	}, targetDir, FormatMarkdown))

	index, err := os.ReadFile(filepath.Join(targetDir, "index.md"))
	require.NoError(t, err)
	assert.Equal(t, `# API Reference

## example.com

### v1

- [Gadget](example.com/v1/Gadget.md)
- [Widget](example.com/v1/Widget.md)

### v1alpha1

- [Widget](example.com/v1alpha1/Widget.md)

## ungrouped

### unversioned

- [Thing](ungrouped/unversioned/Thing.md)
`, string(index))
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		in         string
		want       Format
		wantErrMsg string
	}{
		{in: "markdown", want: FormatMarkdown},
		{in: "md", want: FormatMarkdown},
		{in: "JSON", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "html", wantErrMsg: `unsupported format "html"`},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			f, err := ParseFormat(tc.in)
			if tc.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestCell(t *testing.T) {
	assert.Equal(t, `a \| b<br>c`, cell("a | b\nc"))
}
