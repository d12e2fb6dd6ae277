// Package source loads definitions from places other than local files: a
// running cluster and remote Go modules or git repositories.
package source

import (
	"context"
	"fmt"
	"log/slog"

	apiv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/scheme"

	"github.com/bakito/crd-explain/internal/openapi"
)

// OpenAPIPath is the path of the swagger document served by the API server.
const OpenAPIPath = "/openapi/v2"

// NewRESTConfig loads the rest config from kubeconfig, or the default loading
// rules if empty, using the given context if set.
func NewRESTConfig(kubeconfig, context string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}

	configOverrides := &clientcmd.ConfigOverrides{}
	if context != "" {
		configOverrides.CurrentContext = context
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return restConfig, nil
}

// FetchOpenAPI downloads and parses the swagger document of the cluster.
func FetchOpenAPI(ctx context.Context, cfg *rest.Config) (*openapi.Document, error) {
	dc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	slog.With("host", cfg.Host, "path", OpenAPIPath).InfoContext(ctx, "Fetching OpenAPI document")
	data, err := dc.RESTClient().Get().
		AbsPath(OpenAPIPath).
		SetHeader("Accept", "application/json").
		Do(ctx).
		Raw()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", OpenAPIPath, err)
	}
	return openapi.Parse(data)
}

// NewScheme returns a scheme knowing the CustomResourceDefinition types.
func NewScheme() (*runtime.Scheme, error) {
	builder := &scheme.Builder{GroupVersion: apiv1.SchemeGroupVersion}
	builder.Register(&apiv1.CustomResourceDefinition{}, &apiv1.CustomResourceDefinitionList{})
	return builder.Build()
}

// NewClient returns a client able to read CustomResourceDefinitions.
func NewClient(cfg *rest.Config) (client.Client, error) {
	s, err := NewScheme()
	if err != nil {
		return nil, fmt.Errorf("failed to build scheme: %w", err)
	}
	c, err := client.New(cfg, client.Options{Scheme: s})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// CRDDefinitions lists the CustomResourceDefinitions of the cluster and
// converts the desired version of each. CRDs without that version are skipped.
func CRDDefinitions(ctx context.Context, c client.Reader, desiredVersion string) (openapi.Definitions, error) {
	var list apiv1.CustomResourceDefinitionList
	if err := c.List(ctx, &list); err != nil {
		return nil, fmt.Errorf("failed to list CRDs: %w", err)
	}

	defs := openapi.Definitions{}
	for i := range list.Items {
		crdDefs, err := openapi.CRDDefinitions(&list.Items[i], desiredVersion)
		if err != nil {
			slog.With("crd", list.Items[i].Name, "error", err).WarnContext(ctx, "Skipping CRD")
			continue
		}
		defs.Merge(crdDefs)
	}
	slog.With("crds", len(list.Items), "definitions", len(defs)).DebugContext(ctx, "Loaded CRDs from cluster")
	return defs, nil
}
