package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bakito/crd-explain/internal/config"
	"github.com/bakito/crd-explain/internal/flags"
	"github.com/bakito/crd-explain/internal/flatten"
	"github.com/bakito/crd-explain/internal/gvk"
	"github.com/bakito/crd-explain/internal/openapi"
	"github.com/bakito/crd-explain/internal/render"
	"github.com/bakito/crd-explain/internal/search"
	"github.com/bakito/crd-explain/internal/source"
)

const suggestions = 3

var (
	configFile  string
	specs       []string
	crds        []string
	crdVersion  string
	cluster     bool
	clusterCRDs bool
	kubeconfig  string
	kubeContext string
	definitions []string
	kinds       []string
	all         bool
	resolve     flags.Scope
	related     bool
	rulesFile   string
	maxDepth    int
	format      string
	target      string
	verbose     bool
)

func newRootCmd() *cobra.Command {
	resolve = flags.Scope{}
	cmd := &cobra.Command{
		Use:          "flatten-crd-api",
		Short:        "Flatten OpenAPI definitions and CRD schemas into explain documents",
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", config.DefaultPath(), "Configuration file")
	f.StringSliceVar(&specs, "spec", nil, "Swagger document (JSON or YAML) to read definitions from")
	f.StringSliceVar(&crds, "crd", nil, "CRD manifest to read definitions from")
	f.StringVar(&crdVersion, "crd-version", "", "CRD version to use (default: the storage version)")
	f.BoolVar(&cluster, "cluster", false, "Read definitions from the OpenAPI document of the current cluster")
	f.BoolVar(&clusterCRDs, "cluster-crds", false, "Read definitions from the CRDs of the current cluster")
	f.StringVar(&kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	f.StringVar(&kubeContext, "context", "", "The name of the kubeconfig context to use")
	f.StringSliceVarP(&definitions, "definition", "d", nil, "Fully qualified definition name to flatten")
	f.StringSliceVarP(&kinds, "kind", "k", nil, "Kind to flatten, all definitions with this kind are used")
	f.BoolVarP(&all, "all", "a", false, "Flatten all definitions carrying a group/version/kind")
	f.Var(&resolve, "resolve",
		"API group or definition name whose references are inlined, 'none' to inline nothing (default: the group of each definition)")
	f.BoolVar(&related, "related", false, "Print the definitions referenced by each definition instead of flattening")
	f.StringVar(&rulesFile, "rules", "", "GVK rule table replacing the built-in rules")
	f.IntVar(&maxDepth, "max-depth", 0, "Maximum nesting depth (default 128)")
	f.StringVarP(&format, "format", "f", "", "Output format: markdown, json or yaml (default markdown)")
	f.StringVarP(&target, "target", "t", "", "Target directory, stdout if empty")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	outFormat, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	rules := gvk.DefaultRules()
	if cfg.Rules != "" {
		if rules, err = gvk.LoadRules(cfg.Rules); err != nil {
			return err
		}
	}
	resolver := gvk.NewResolver(rules)

	defs, err := loadDefinitions(ctx, cfg)
	if err != nil {
		return err
	}

	names, err := selectDefinitions(defs)
	if err != nil {
		return err
	}

	f := flatten.New(defs, resolver, flatten.WithMaxDepth(cfg.MaxDepth))
	scope := resolve.Value()
	if _, ok := defs[resolve.Raw()]; ok {
		scope = f.ScopeOf(resolve.Raw())
	}

	slog.With("definitions", len(names), "scope", scope.String(), "format", outFormat).
		InfoContext(ctx, "flatten-crd-api")

	if related {
		return printRelated(cmd.OutOrStdout(), f, names)
	}

	explains := make([]*render.Explain, 0, len(names))
	for _, name := range names {
		paths, err := f.FlattenDefinition(name, scope)
		if err != nil {
			return fmt.Errorf("failed to flatten: %w", err)
		}
		g := groupVersionKind(resolver, name, defs[name])
		slog.DebugContext(ctx, "Flattened definition", "definition", name, "gvk", gvk.Key(g), "paths", paths.Len())
		explains = append(explains, render.NewExplain(name, g, defs[name], paths, f))
	}

	if target == "" {
		for _, e := range explains {
			if err := render.Write(cmd.OutOrStdout(), e, outFormat); err != nil {
				return err
			}
		}
		return nil
	}
	return render.WriteFiles(explains, target, outFormat)
}

func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	ctrllog.SetLogger(logr.FromSlogHandler(handler))
}

// loadConfig reads the config file and applies the flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("rules") {
		cfg.Rules = rulesFile
	}
	if changed("max-depth") {
		cfg.MaxDepth = maxDepth
	}
	if changed("format") {
		cfg.Format = format
	}
	if changed("kubeconfig") {
		cfg.Kubeconfig = kubeconfig
	}
	if changed("context") {
		cfg.Context = kubeContext
	}
	return cfg, nil
}

func loadDefinitions(ctx context.Context, cfg *config.Config) (openapi.Definitions, error) {
	if len(specs) == 0 && len(crds) == 0 && !cluster && !clusterCRDs {
		return nil, errors.New("at least one of --spec, --crd, --cluster or --cluster-crds must be defined")
	}

	defs := openapi.Definitions{}
	for _, path := range specs {
		doc, err := openapi.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse spec: %w", err)
		}
		defs.Merge(doc.Definitions)
	}
	for _, path := range crds {
		crdDefs, err := openapi.LoadCRDFile(path, crdVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CRDs: %w", err)
		}
		defs.Merge(crdDefs)
	}

	if cluster || clusterCRDs {
		restConfig, err := source.NewRESTConfig(cfg.Kubeconfig, cfg.Context)
		if err != nil {
			return nil, err
		}
		if cluster {
			doc, err := source.FetchOpenAPI(ctx, restConfig)
			if err != nil {
				return nil, err
			}
			defs.Merge(doc.Definitions)
		}
		if clusterCRDs {
			c, err := source.NewClient(restConfig)
			if err != nil {
				return nil, err
			}
			crdDefs, err := source.CRDDefinitions(ctx, c, crdVersion)
			if err != nil {
				return nil, err
			}
			defs.Merge(crdDefs)
		}
	}
	return defs, nil
}

// selectDefinitions returns the definitions selected by --definition, --kind and --all.
// If only CRDs are read and nothing is selected, all of them are used.
func selectDefinitions(defs openapi.Definitions) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, name := range definitions {
		if _, ok := defs[name]; !ok {
			return nil, notFound(fmt.Errorf("%w: %s", flatten.ErrUnknownDefinition, name), name, defs)
		}
		add(name)
	}
	for _, kind := range kinds {
		matched := search.FindKind(kind, defs.Names())
		if len(matched) == 0 {
			return nil, notFound(fmt.Errorf("no definition with kind %q", kind), kind, defs)
		}
		for _, name := range matched {
			add(name)
		}
	}
	if all || (len(names) == 0 && len(specs) == 0 && !cluster) {
		for _, name := range flatten.Kinds(defs) {
			add(name)
		}
	}

	if len(names) == 0 {
		return nil, errors.New("no definition selected, use --definition, --kind or --all")
	}
	return names, nil
}

func notFound(err error, query string, defs openapi.Definitions) error {
	if s := search.Suggest(query, defs.Names(), suggestions); len(s) > 0 {
		return fmt.Errorf("%w, did you mean: %s", err, strings.Join(s, ", "))
	}
	return err
}

func groupVersionKind(resolver *gvk.Resolver, name string, def *openapi.Schema) schema.GroupVersionKind {
	if g := resolver.Classify(name); !g.Empty() {
		return g
	}
	if def != nil && len(def.GroupVersionKinds) > 0 {
		return def.GroupVersionKinds[0]
	}
	return schema.GroupVersionKind{}
}

func printRelated(w io.Writer, f *flatten.Flattener, names []string) error {
	out := yaml.Node{Kind: yaml.MappingNode}
	for _, name := range names {
		refs, err := f.Related(name)
		if err != nil {
			return fmt.Errorf("failed to list related definitions: %w", err)
		}
		value := &yaml.Node{Kind: yaml.SequenceNode}
		for _, ref := range refs {
			value.Content = append(value.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: ref})
		}
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, value)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return err
	}
	return enc.Close()
}
