//go:build generate
// +build generate

// fetch the CRD manifests of a released module
//go:generate go run ./cmd/extract-crd-api --module "github.com/cert-manager/cert-manager@v1.17.2" --use-git --clear --path deploy/crds --target testdata/crds --include ^crd-certificates\.yaml$ --include ^crd-issuers\.yaml$

// render the explain documents
//go:generate go run ./cmd/flatten-crd-api --config "" --crd testdata/widgets.example.com.yaml --target docs/example
//go:generate go run ./cmd/flatten-crd-api --config "" --spec testdata/image-spec.yaml --all --target docs/openshift

package gen
