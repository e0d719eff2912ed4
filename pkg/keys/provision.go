package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"golang.org/x/crypto/ssh"
)

// GenerateKeyPair creates an ed25519 key pair named account. The private key
// is OpenSSH PEM, the public key is in authorized_keys format.
func GenerateKeyPair(account string) (core.KeyMaterial, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return core.KeyMaterial{}, fmt.Errorf("generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, account)
	if err != nil {
		return core.KeyMaterial{}, fmt.Errorf("marshal private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return core.KeyMaterial{}, fmt.Errorf("marshal public key: %w", err)
	}

	return core.KeyMaterial{
		Account:     account,
		PrivateKey:  string(pem.EncodeToMemory(block)),
		PublicKey:   strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))),
		Fingerprint: ssh.FingerprintSHA256(sshPub),
	}, nil
}

// Provision makes sure store holds a key pair for key and returns it. A new
// pair is generated only when none exists; concurrent provisioners converge on
// whichever pair was stored first. An empty account defaults to "org-tag".
func Provision(ctx context.Context, store Store, key core.OrgTagKey, account string) (core.KeyMaterial, error) {
	if err := key.Validate(); err != nil {
		return core.KeyMaterial{}, err
	}

	if m, ok, err := store.Get(ctx, key); err != nil {
		return core.KeyMaterial{}, err
	} else if ok {
		return m, nil
	}

	if account == "" {
		account = key.Org + "-" + key.Tag
	}
	m, err := GenerateKeyPair(account)
	if err != nil {
		return core.KeyMaterial{}, err
	}

	stored, err := store.PutIfAbsent(ctx, key, m)
	if err != nil {
		return core.KeyMaterial{}, err
	}
	if stored {
		log.WithFields(log.Fields{"key": key.String(), "fingerprint": m.Fingerprint}).Info("provisioned key pair")
		return m, nil
	}

	existing, ok, err := store.Get(ctx, key)
	if err != nil {
		return core.KeyMaterial{}, err
	}
	if !ok {
		return core.KeyMaterial{}, fmt.Errorf("key pair %s vanished during provisioning", key)
	}
	return existing, nil
}
