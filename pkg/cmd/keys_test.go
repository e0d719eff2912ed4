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
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/keys"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewNodeCredsCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeysCommands(t *testing.T) {
	setConfig(t, "keys-encryption-key", testEncryptionKeyHex, "")
	setConfig(t, "keys-db", filepath.Join(t.TempDir(), "keys.db"), "")
	setConfig(t, "output", "txt", "txt")

	out, err := execute(t, "keys", "generate", "--org", "acme", "--tag", "web", "--account", "deploy")
	if err != nil {
		t.Fatalf("keys generate: %v", err)
	}
	if !strings.Contains(out, "ssh-ed25519") || !strings.Contains(out, "deploy") {
		t.Errorf("generate output missing public key or account:\n%s", out)
	}

	again, err := execute(t, "keys", "generate", "--org", "acme", "--tag", "web")
	if err != nil {
		t.Fatalf("keys generate: %v", err)
	}
	if again != out {
		t.Errorf("second generate returned a different pair:\n%s\nvs\n%s", again, out)
	}

	out, err = execute(t, "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	if !strings.Contains(out, "acme") || strings.Contains(out, "PRIVATE KEY") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	if _, err := execute(t, "keys", "delete", "--org", "acme", "--tag", "web"); err != nil {
		t.Fatalf("keys delete: %v", err)
	}
	_, err = execute(t, "keys", "delete", "--org", "acme", "--tag", "web")
	if !errors.Is(err, keys.ErrKeyPairNotFound) {
		t.Errorf("second delete error = %v, want ErrKeyPairNotFound", err)
	}
	if errors.Is(err, core.ErrNotFound) || err.Error() != "key pair not found: acme/web" {
		t.Errorf("second delete error = %q, want key pair not found: acme/web", err)
	}
}

func TestKeysGenerateRequiresEncryptionKey(t *testing.T) {
	setConfig(t, "keys-encryption-key", "", "")
	setConfig(t, "keys-db", filepath.Join(t.TempDir(), "keys.db"), "")

	_, err := execute(t, "keys", "generate", "--org", "acme", "--tag", "web")
	if !errors.Is(err, keys.ErrEncryptionKeyNotSet) {
		t.Errorf("error = %v, want ErrEncryptionKeyNotSet", err)
	}
}

func TestKeysListWithoutEncryptionKey(t *testing.T) {
	setConfig(t, "keys-encryption-key", "", "")
	setConfig(t, "keys-db", filepath.Join(t.TempDir(), "keys.db"), "")
	setConfig(t, "output", "json", "txt")

	out, err := execute(t, "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("list output = %q, want []", out)
	}
}
