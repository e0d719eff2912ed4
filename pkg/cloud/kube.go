package cloud

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	labelZone       = "topology.kubernetes.io/zone"
	labelZoneLegacy = "failure-domain.beta.kubernetes.io/zone"
)

// kubeProvider implements Provider for Kubernetes nodes. The organization of
// a node is the configured cluster name.
type kubeProvider struct {
	client  kubernetes.Interface
	cluster string
	tagKey  string
	catalog *ImageCatalog
	logger  log.FieldLogger
}

// NewKubeProvider returns a Provider reading Node objects through client.
func NewKubeProvider(client kubernetes.Interface, opts Options) Provider {
	opts = opts.withDefaults()
	return &kubeProvider{
		client:  client,
		cluster: opts.Cluster,
		tagKey:  opts.TagKey,
		catalog: opts.Catalog,
		logger:  opts.Logger,
	}
}

// Node fetches the Kubernetes node named id.
func (p *kubeProvider) Node(ctx context.Context, id string) (*core.Node, error) {
	n, err := p.client.CoreV1().Nodes().Get(ctx, id, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("get node %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}

	node := &core.Node{
		ID:       n.Name,
		Name:     n.Name,
		Provider: ProviderKube,
		Tag:      n.Labels[p.tagKey],
		Location: p.location(n),
	}
	if osImage := n.Status.NodeInfo.OSImage; osImage != "" {
		node.Image = p.catalog.Image(osImage, osImage)
	}
	return node, nil
}

func (p *kubeProvider) location(n *v1.Node) *core.Location {
	zone := n.Labels[labelZone]
	if zone == "" {
		zone = n.Labels[labelZoneLegacy]
	}
	loc := &core.Location{ID: zone, Scope: core.ScopeZone, Description: n.Spec.ProviderID}
	if p.cluster != "" {
		loc.Parent = &core.Location{ID: p.cluster, Scope: core.ScopeCluster}
	}
	return loc
}

// nolint:gochecknoinits // registration-style init keeps provider wiring local to this file.
func init() {
	RegisterProvider(ProviderKube, func(_ context.Context, opts Options) (Provider, error) {
		if opts.Kube == nil {
			return nil, errors.New("kube provider requires a kubernetes client")
		}
		if opts.Cluster == "" {
			return nil, fmt.Errorf("%w: kube provider requires --cluster", core.ErrInvalidArgument)
		}
		return NewKubeProvider(opts.Kube, opts), nil
	})
}
