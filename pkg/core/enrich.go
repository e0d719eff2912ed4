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

package core

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds FetchAndEnrichAll when no limit is configured.
const DefaultConcurrency = 8

// Fetcher returns the raw metadata for a node. Implementations return an
// error matching ErrNotFound when the node does not exist.
type Fetcher interface {
	Node(ctx context.Context, id string) (*Node, error)
}

// KeyReader looks up provisioned key material. Implementations must be safe
// for concurrent use while another goroutine writes to the same store.
type KeyReader interface {
	Get(ctx context.Context, key OrgTagKey) (KeyMaterial, bool, error)
}

// Enricher fetches nodes and attaches login credentials to them.
type Enricher struct {
	fetcher     Fetcher
	keys        KeyReader
	logger      log.FieldLogger
	concurrency int
}

// NewEnricher creates an Enricher. A nil logger falls back to the logrus
// standard logger.
func NewEnricher(fetcher Fetcher, keys KeyReader, logger log.FieldLogger) *Enricher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Enricher{
		fetcher:     fetcher,
		keys:        keys,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency sets how many nodes FetchAndEnrichAll fetches at once.
func (e *Enricher) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	e.concurrency = n
}

// FetchAndEnrich fetches the node with the given id and attaches credentials
// from the key store or the image defaults. The boolean is false when the
// provider has no such node; that is not an error.
func (e *Enricher) FetchAndEnrich(ctx context.Context, id string) (*Node, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: node id is required", ErrInvalidArgument)
	}

	node, err := e.fetcher.Node(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && node == nil) {
		e.logger.WithField("id", id).Debug("node not found during execution")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch node %s: %w", id, err)
	}

	if node.Tag != "" {
		node, err = e.installCredentialsFromKeys(ctx, node)
		if err != nil {
			return nil, false, err
		}
	}
	if !node.HasCredentials() {
		node = installDefaultCredentialsFromImage(node)
	}
	return node, true, nil
}

// FetchAndEnrichAll enriches ids concurrently. Absent nodes are dropped; the
// remaining nodes keep the order of ids. The first unexpected error cancels
// outstanding fetches and is returned.
func (e *Enricher) FetchAndEnrichAll(ctx context.Context, ids []string) ([]*Node, error) {
	results := make([]*Node, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			node, ok, err := e.FetchAndEnrich(gCtx, id)
			if err != nil {
				return err
			}
			if ok {
				results[i] = node
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(results))
	for _, n := range results {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (e *Enricher) installCredentialsFromKeys(ctx context.Context, node *Node) (*Node, error) {
	org, ok := node.Organization()
	if !ok {
		return nil, fmt.Errorf("%w: node %s has tag %q but no parent location", ErrMalformedLocation, node.ID, node.Tag)
	}
	key := OrgTagKey{Org: org, Tag: node.Tag}

	material, found, err := e.keys.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup key pair %s: %w", key, err)
	}
	if !found {
		return node, nil
	}

	account := loginAccountForNode(node)
	if account == "" {
		e.logger.WithFields(log.Fields{"id": node.ID, "key": key.String()}).
			Debug("key pair found but no login account for node")
		return node, nil
	}
	return node.WithCredentials(Credentials{Account: account, Secret: material.PrivateKey}), nil
}

// loginAccountForNode prefers the account already on the node and falls back
// to the image's default account.
func loginAccountForNode(node *Node) string {
	if node.Credentials != nil && node.Credentials.Account != "" {
		return node.Credentials.Account
	}
	if node.Image != nil && node.Image.DefaultCredentials != nil {
		return node.Image.DefaultCredentials.Account
	}
	return ""
}

func installDefaultCredentialsFromImage(node *Node) *Node {
	if node.Image == nil || node.Image.DefaultCredentials == nil || node.Image.DefaultCredentials.IsZero() {
		return node
	}
	return node.WithCredentials(*node.Image.DefaultCredentials)
}
