package cloud

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"k8s.io/client-go/kubernetes"
)

// Provider is implemented by cloud providers capable of returning metadata for
// a given node/instance identifier. Every Provider is a core.Fetcher.
type Provider interface {
	Node(ctx context.Context, id string) (*core.Node, error)
}

// DefaultTagKey is the instance tag / label holding a node's group tag.
const DefaultTagKey = "group"

// Options configures providers created through the registry.
type Options struct {
	// TagKey names the instance tag or label that carries the node tag.
	TagKey string
	// Cluster is the organization id reported for Kubernetes nodes.
	Cluster string
	// Region overrides the AWS region from the shared config.
	Region string
	// Catalog supplies image default credentials. Nil means DefaultImageCatalog.
	Catalog *ImageCatalog
	// Kube is required by the kube provider.
	Kube kubernetes.Interface
	// Logger defaults to the logrus standard logger.
	Logger log.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.TagKey == "" {
		o.TagKey = DefaultTagKey
	}
	if o.Catalog == nil {
		o.Catalog = DefaultImageCatalog()
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
	return o
}

// ProviderFactory creates a new Provider instance.
type ProviderFactory func(ctx context.Context, opts Options) (Provider, error)

// Provider names used by util.ParseProviderID and callers.
const (
	ProviderAWS  = "aws"
	ProviderGCE  = "gce"
	ProviderKube = "kube"
)

var providerRegistry = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory under the given name.
// It is typically called from init() functions in provider-specific files.
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// NewProvider builds the Provider registered under name.
func NewProvider(ctx context.Context, name string, opts Options) (Provider, error) {
	factory, ok := providerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", core.ErrInvalidArgument, name)
	}
	return factory(ctx, opts.withDefaults())
}

// ProviderNames returns the registered provider names, sorted.
func ProviderNames() []string {
	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
