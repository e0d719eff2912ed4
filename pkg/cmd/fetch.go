/*
Copyright 2026 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gitlab.com/davidxarnold/nodecreds/pkg/cloud"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/util"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/kubernetes"
)

const nodeCacheTTL = 5 * time.Minute

// providerSet routes node ids to lazily created providers. With a fixed
// provider every bare id goes to it; otherwise ids must be provider ids such as
// aws:///us-west-2a/i-123 and are routed by scheme and region.
type providerSet struct {
	fixed string
	opts  cloud.Options
	kube  func() (kubernetes.Interface, string, error)
	cache *cloud.Cache

	mu        sync.Mutex
	providers map[string]cloud.Provider
	closers   []io.Closer
}

func newProviderSet(fixed string, opts cloud.Options, kube func() (kubernetes.Interface, string, error)) *providerSet {
	return &providerSet{
		fixed:     fixed,
		opts:      opts,
		kube:      kube,
		cache:     cloud.NewCache(nodeCacheTTL),
		providers: make(map[string]cloud.Provider),
	}
}

// Node implements core.Fetcher.
func (s *providerSet) Node(ctx context.Context, id string) (*core.Node, error) {
	target := util.Target{Provider: s.fixed, ID: id}
	if strings.Contains(id, "://") {
		t, err := util.TargetFromProviderID(id)
		if err != nil {
			return nil, err
		}
		if s.fixed != "" && t.Provider != s.fixed {
			return nil, fmt.Errorf("%w: %q is not a %s provider id", core.ErrInvalidArgument, id, s.fixed)
		}
		target = t
	}
	if target.Provider == "" {
		return nil, fmt.Errorf("%w: %q needs --provider or a provider id", core.ErrInvalidArgument, id)
	}

	p, err := s.provider(ctx, target.Provider, target.Region)
	if err != nil {
		return nil, err
	}
	return p.Node(ctx, target.ID)
}

func (s *providerSet) provider(ctx context.Context, name, region string) (cloud.Provider, error) {
	key := name
	if region != "" {
		key += "/" + region
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[key]; ok {
		return p, nil
	}

	opts := s.opts
	if region != "" {
		opts.Region = region
	}
	if name == cloud.ProviderKube && opts.Kube == nil && s.kube != nil {
		client, cluster, err := s.kube()
		if err != nil {
			return nil, fmt.Errorf("kubernetes client: %w", err)
		}
		opts.Kube = client
		if opts.Cluster == "" {
			opts.Cluster = cluster
		}
	}

	p, err := cloud.NewProvider(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	if c, ok := p.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	cp := cloud.NewCachingProvider(key, p, s.cache)
	s.providers[key] = cp
	return cp, nil
}

// Close releases provider clients.
func (s *providerSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// kubeClientFromFlags builds a clientset from the kubeconfig flags and returns
// it with the cluster name that identifies the nodes' organization.
func kubeClientFromFlags(cf *genericclioptions.ConfigFlags) func() (kubernetes.Interface, string, error) {
	return func() (kubernetes.Interface, string, error) {
		rc, err := cf.ToRESTConfig()
		if err != nil {
			return nil, "", err
		}
		client, err := kubernetes.NewForConfig(rc)
		if err != nil {
			return nil, "", err
		}
		return client, clusterName(cf), nil
	}
}

// clusterName is --cluster when set, otherwise the cluster of the selected
// kubeconfig context.
func clusterName(cf *genericclioptions.ConfigFlags) string {
	if cf.ClusterName != nil && *cf.ClusterName != "" {
		return *cf.ClusterName
	}
	raw, err := cf.ToRawKubeConfigLoader().RawConfig()
	if err != nil {
		return ""
	}
	name := raw.CurrentContext
	if cf.Context != nil && *cf.Context != "" {
		name = *cf.Context
	}
	if c, ok := raw.Contexts[name]; ok && c != nil {
		return c.Cluster
	}
	return ""
}
