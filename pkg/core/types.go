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

// Package core contains the provider-agnostic node model and the credential
// enrichment logic for nodecreds. It does not talk to any cloud API itself;
// callers supply a Fetcher and a KeyReader.
package core

import (
	"fmt"
	"strings"
)

// Location scopes, from the narrowest to the widest.
const (
	ScopeZone    = "zone"
	ScopeAccount = "account"
	ScopeProject = "project"
	ScopeCluster = "cluster"
)

// Location is where a node runs. Parent points at the enclosing scope; for
// the organization lookup only the immediate parent matters.
type Location struct {
	ID          string    `json:"id"`
	Scope       string    `json:"scope,omitempty"`
	Description string    `json:"description,omitempty"`
	Parent      *Location `json:"parent,omitempty"`
}

// Credentials is a login account and its secret (private key or password).
type Credentials struct {
	Account string `json:"account,omitempty"`
	Secret  string `json:"secret,omitempty"`
}

// IsZero reports whether neither account nor secret is set.
func (c Credentials) IsZero() bool {
	return c == Credentials{}
}

// String implements fmt.Stringer without revealing the secret.
func (c Credentials) String() string {
	if c.Secret == "" {
		return c.Account
	}
	return c.Account + ":<redacted>"
}

// Image is the machine image a node was booted from.
type Image struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name,omitempty"`
	DefaultCredentials *Credentials `json:"defaultCredentials,omitempty"`
}

// Node holds cloud provider metadata for a compute node in a provider-agnostic
// form.
type Node struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Provider    string       `json:"provider,omitempty"`
	Tag         string       `json:"tag,omitempty"`
	Location    *Location    `json:"location,omitempty"`
	Image       *Image       `json:"image,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Organization returns the identifier of the location's parent, which is the
// organization the node belongs to (AWS account, GCP project, cluster).
func (n *Node) Organization() (string, bool) {
	if n.Location == nil || n.Location.Parent == nil || n.Location.Parent.ID == "" {
		return "", false
	}
	return n.Location.Parent.ID, true
}

// HasCredentials reports whether a non-empty credential is attached.
func (n *Node) HasCredentials() bool {
	return n.Credentials != nil && !n.Credentials.IsZero()
}

// WithCredentials returns a shallow copy of n carrying creds. The receiver is
// left untouched so records held by a cache are never modified.
func (n *Node) WithCredentials(creds Credentials) *Node {
	cp := *n
	cp.Credentials = &creds
	return &cp
}

// Clone returns a copy of n that shares nothing mutable with it.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Location = n.Location.clone()
	if n.Image != nil {
		img := *n.Image
		if n.Image.DefaultCredentials != nil {
			dc := *n.Image.DefaultCredentials
			img.DefaultCredentials = &dc
		}
		cp.Image = &img
	}
	if n.Credentials != nil {
		c := *n.Credentials
		cp.Credentials = &c
	}
	return &cp
}

func (l *Location) clone() *Location {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Parent = l.Parent.clone()
	return &cp
}

// OrgTagKey identifies a key pair by organization and tag. It is comparable
// and safe to use as a map key.
type OrgTagKey struct {
	Org string `json:"org"`
	Tag string `json:"tag"`
}

// String implements the stringer interface.
func (k OrgTagKey) String() string {
	return k.Org + "/" + k.Tag
}

// Validate checks that both fields are set.
func (k OrgTagKey) Validate() error {
	if strings.TrimSpace(k.Org) == "" {
		return fmt.Errorf("%w: organization cannot be empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(k.Tag) == "" {
		return fmt.Errorf("%w: tag cannot be empty", ErrInvalidArgument)
	}
	return nil
}

// KeyMaterial is a key pair provisioned for an (organization, tag).
type KeyMaterial struct {
	Account     string `json:"account"` // key pair name
	PrivateKey  string `json:"privateKey,omitempty"`
	PublicKey   string `json:"publicKey,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}
