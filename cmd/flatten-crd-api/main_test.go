package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenCrdApiE2E(t *testing.T) {
	tempDir := t.TempDir()

	wd, err := os.Getwd()
	require.NoError(t, err)
	testdata := filepath.Join(wd, "..", "..", "testdata")

	configYAML := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configYAML, []byte("format: yaml\n"), 0o644))
	invalidRules := filepath.Join(tempDir, "rules.yaml")
	require.NoError(t, os.WriteFile(invalidRules, []byte("- rule: a\n  match: (?P<group>a)\n"), 0o644))

	serviceSpec := filepath.Join(testdata, "service-spec.json")
	imageSpec := filepath.Join(testdata, "image-spec.yaml")

	testCases := []struct {
		name              string
		args              []string
		toTarget          bool
		wantErrMsg        string
		expectedFiles     []string
		fileContentChecks map[string][]string
		stdoutChecks      []string
		stdoutMissing     []string
	}{
		{
			name:       "no_sources_defined",
			args:       []string{},
			wantErrMsg: "at least one of --spec, --crd, --cluster or --cluster-crds must be defined",
		},
		{
			name:       "no_definition_selected",
			args:       []string{"--spec", serviceSpec},
			wantErrMsg: "no definition selected",
		},
		{
			name:       "unknown_definition",
			args:       []string{"--spec", serviceSpec, "--definition", "io.k8s.api.core.v1.Servic"},
			wantErrMsg: "did you mean: io.k8s.api.core.v1.Service",
		},
		{
			name:       "unknown_kind",
			args:       []string{"--spec", serviceSpec, "--kind", "Pod"},
			wantErrMsg: `no definition with kind "Pod"`,
		},
		{
			name:       "invalid_format",
			args:       []string{"--spec", serviceSpec, "--all", "--format", "html"},
			wantErrMsg: `unsupported format "html"`,
		},
		{
			name:       "invalid_rules",
			args:       []string{"--spec", serviceSpec, "--all", "--rules", invalidRules},
			wantErrMsg: `match has no named group "version"`,
		},
		{
			name:       "invalid_crd",
			args:       []string{"--crd", serviceSpec},
			wantErrMsg: "failed to parse CRDs",
		},
		{
			name: "definition_to_stdout",
			args: []string{"--spec", serviceSpec, "--definition", "io.k8s.api.core.v1.Service"},
			stdoutChecks: []string{
				"# Service",
				"| `.spec.clusterIP` | string |",
				"| `.spec.ports[]` | ServicePort (`io.k8s.api.core.v1.ServicePort`) |",
				"| `.status.loadBalancer.ingress` | LoadBalancerIngress array |",
			},
		},
		{
			name:         "kind_json",
			args:         []string{"--spec", serviceSpec, "--kind", "service", "--format", "json"},
			stdoutChecks: []string{`"path": ".spec.selector"`, `"type": "object (string)"`},
		},
		{
			name:          "resolve_none",
			args:          []string{"--spec", serviceSpec, "-d", "io.k8s.api.core.v1.Service", "--resolve", "none"},
			stdoutChecks:  []string{"| `.spec` | ServiceSpec (`io.k8s.api.core.v1.ServiceSpec`) |"},
			stdoutMissing: []string{".spec.clusterIP"},
		},
		{
			name: "resolve_other_group",
			args: []string{
				"--spec", imageSpec, "-d", "com.github.openshift.api.image.v1.ImageStreamLayers",
				"--resolve", "apps.openshift.io",
			},
			stdoutMissing: []string{".blobs{}.size"},
		},
		{
			name: "resolve_by_definition",
			args: []string{
				"--spec", imageSpec, "-d", "com.github.openshift.api.image.v1.ImageStreamLayers",
				"--resolve", "com.github.openshift.api.image.v1.Image",
			},
			stdoutChecks: []string{"| `.blobs{}.size` |"},
		},
		{
			name: "related",
			args: []string{
				"--spec", imageSpec, "-d", "com.github.openshift.api.image.v1.ImageStreamLayers", "--related",
			},
			stdoutChecks: []string{
				"com.github.openshift.api.image.v1.ImageStreamLayers:\n" +
					"  - com.github.openshift.api.image.v1.ImageLayerData\n" +
					"  - com.github.openshift.api.image.v1.ImageBlobReferences\n" +
					"  - io.k8s.apimachinery.pkg.apis.meta.v1.ObjectMeta\n",
			},
		},
		{
			name:         "config_file",
			args:         []string{"--config", configYAML, "--spec", serviceSpec, "-d", "io.k8s.api.core.v1.Service"},
			stdoutChecks: []string{"- path: .apiVersion"},
		},
		{
			name:     "all_to_target",
			args:     []string{"--spec", serviceSpec, "--spec", imageSpec, "--all"},
			toTarget: true,
			expectedFiles: []string{
				"index.md",
				"core/v1/Service.md",
				"image.openshift.io/v1/Image.md",
				"image.openshift.io/v1/ImageStreamLayers.md",
			},
			fileContentChecks: map[string][]string{
				"index.md": {"- [ImageStreamLayers](image.openshift.io/v1/ImageStreamLayers.md)"},
			},
		},
		{
			name:     "crd_to_target",
			args:     []string{"--crd", filepath.Join(testdata, "widgets.example.com.yaml")},
			toTarget: true,
			expectedFiles: []string{
				"example.com/v1/Widget.md",
			},
			fileContentChecks: map[string][]string{
				"example.com/v1/Widget.md": {"| `.spec.labels` | object (string) | Labels attached to the widget. |"},
			},
		},
		{
			name:          "crd_version",
			args:          []string{"--crd", filepath.Join(testdata, "widgets.example.com.yaml"), "--crd-version", "v1alpha1"},
			stdoutChecks:  []string{"| `com.example.v1alpha1.Widget` |", "| `.spec.size` | integer |"},
			stdoutMissing: []string{".spec.color"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			targetDir := filepath.Join(tempDir, tc.name)
			require.NoError(t, os.Mkdir(targetDir, 0o755))

			rootCmd := newRootCmd()
			stdout := new(bytes.Buffer)
			stderr := new(bytes.Buffer)
			rootCmd.SetOut(stdout)
			rootCmd.SetErr(stderr)

			finalArgs := tc.args
			if tc.toTarget {
				finalArgs = append(finalArgs, "--target", targetDir)
			}
			if !containsArg(finalArgs, "--config") {
				finalArgs = append(finalArgs, "--config", filepath.Join(targetDir, "missing.yaml"))
			}
			rootCmd.SetArgs(finalArgs)

			err := rootCmd.Execute()

			if tc.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErrMsg)
				return
			}
			require.NoError(t, err, stderr.String())

			for _, file := range tc.expectedFiles {
				assert.FileExists(t, filepath.Join(targetDir, file))
			}
			for file, contents := range tc.fileContentChecks {
				data, err := os.ReadFile(filepath.Join(targetDir, file))
				require.NoError(t, err)
				for _, content := range contents {
					assert.Contains(t, string(data), content)
				}
			}
			for _, content := range tc.stdoutChecks {
				assert.Contains(t, stdout.String(), content)
			}
			for _, content := range tc.stdoutMissing {
				assert.NotContains(t, stdout.String(), content)
			}
		})
	}
}

func containsArg(args []string, arg string) bool {
	for _, a := range args {
		if a == arg {
			return true
		}
	}
	return false
}
