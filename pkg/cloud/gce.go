package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	compute "cloud.google.com/go/compute/apiv1"
	computepb "cloud.google.com/go/compute/apiv1/computepb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// InstancesAPI is the subset of the GCE instances client used by the gce
// provider.
type InstancesAPI interface {
	Get(ctx context.Context, req *computepb.GetInstanceRequest, opts ...gax.CallOption) (*computepb.Instance, error)
}

// gceProvider implements Provider for GCE instances. The organization of a
// node is its GCP project.
type gceProvider struct {
	client  InstancesAPI
	closer  func() error
	tagKey  string
	catalog *ImageCatalog
	logger  log.FieldLogger
}

// NewGCEProvider returns a GCE-backed Provider using client.
func NewGCEProvider(client InstancesAPI, opts Options) Provider {
	opts = opts.withDefaults()
	return &gceProvider{client: client, tagKey: opts.TagKey, catalog: opts.Catalog, logger: opts.Logger}
}

// Node fetches a GCE instance. The id format is expected to be
// "project/zone/instance-name".
func (p *gceProvider) Node(ctx context.Context, id string) (*core.Node, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: invalid GCE node id %q, want project/zone/instance", core.ErrInvalidArgument, id)
	}
	projectID, zone, instanceName := parts[0], parts[1], parts[2]

	instance, err := p.client.Get(ctx, &computepb.GetInstanceRequest{
		Project:  projectID,
		Zone:     zone,
		Instance: instanceName,
	})
	if err != nil {
		var ae *apierror.APIError
		if errors.As(err, &ae) && ae.HTTPCode() == http.StatusNotFound {
			return nil, fmt.Errorf("get GCE instance %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get GCE instance %s: %w", id, err)
	}

	node := &core.Node{
		ID:       id,
		Name:     instance.GetName(),
		Provider: ProviderGCE,
		Tag:      instance.GetLabels()[p.tagKey],
		Location: &core.Location{
			ID:    zone,
			Scope: core.ScopeZone,
			Parent: &core.Location{
				ID:    projectID,
				Scope: core.ScopeProject,
			},
		},
	}

	if license := bootLicense(instance); license != "" {
		node.Image = p.catalog.Image(license, license)
	} else {
		p.logger.WithField("id", id).Debug("no boot disk license, image unknown")
	}

	return node, nil
}

// Close releases the underlying client when the provider owns it.
func (p *gceProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// bootLicense returns the last path segment of the boot disk's first
// license, e.g. "ubuntu-2204-lts". The first license is the OS license; any
// later ones are add-ons.
func bootLicense(instance *computepb.Instance) string {
	for _, disk := range instance.GetDisks() {
		if !disk.GetBoot() || len(disk.GetLicenses()) == 0 {
			continue
		}
		parts := strings.Split(disk.GetLicenses()[0], "/")
		return parts[len(parts)-1]
	}
	return ""
}

// nolint:gochecknoinits // registration-style init keeps provider wiring local to this file.
func init() {
	RegisterProvider(ProviderGCE, func(ctx context.Context, opts Options) (Provider, error) {
		c, err := compute.NewInstancesRESTClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCE client: %w", err)
		}
		p := NewGCEProvider(c, opts).(*gceProvider)
		p.closer = c.Close
		return p, nil
	})
}
