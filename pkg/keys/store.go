// Package keys stores the key pairs provisioned per (organization, tag) and
// serves them to the enricher as a core.KeyReader.
package keys

import (
	"context"
	"errors"
	"time"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// ErrEncryptionKeyNotSet is returned by SQLiteStore when it was opened without
// an encryption key and an operation needs to read or write a private key.
var ErrEncryptionKeyNotSet = errors.New("key store encryption key not set")

// ErrKeyPairNotFound is returned when no key pair exists for an
// (organization, tag).
var ErrKeyPairNotFound = errors.New("key pair not found")

// Reader is the read side of a key store.
type Reader = core.KeyReader

// Writer is the write side of a key store, used by provisioning.
type Writer interface {
	// Put stores or replaces the key material for key.
	Put(ctx context.Context, key core.OrgTagKey, m core.KeyMaterial) error
	// PutIfAbsent stores m only if key has no entry yet and reports whether
	// it did.
	PutIfAbsent(ctx context.Context, key core.OrgTagKey, m core.KeyMaterial) (bool, error)
}

// Store reads and writes key material.
type Store interface {
	Reader
	Writer
}

// Entry describes a stored key pair without its private key.
type Entry struct {
	Key         core.OrgTagKey `json:"key"`
	Account     string         `json:"account"`
	PublicKey   string         `json:"publicKey,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
