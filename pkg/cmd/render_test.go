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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/keys"
)

func testNode() *core.Node {
	return &core.Node{
		ID:       "i-1234567890abcdef0",
		Name:     "web-1",
		Provider: "aws",
		Tag:      "web",
		Location: &core.Location{
			ID:     "us-west-2a",
			Scope:  core.ScopeZone,
			Parent: &core.Location{ID: "123456789012", Scope: core.ScopeAccount},
		},
		Image: &core.Image{
			ID:                 "ami-1",
			Name:               "ubuntu-jammy-22.04",
			DefaultCredentials: &core.Credentials{Account: "ubuntu", Secret: "imgpass"},
		},
		Credentials: &core.Credentials{Account: "ubuntu", Secret: "PK1"},
	}
}

func TestRedact(t *testing.T) {
	n := testNode()

	r := redact(n, false)
	if r.Credentials.Secret != redacted {
		t.Errorf("Credentials.Secret = %q, want %q", r.Credentials.Secret, redacted)
	}
	if r.Image.DefaultCredentials.Secret != redacted {
		t.Errorf("DefaultCredentials.Secret = %q, want %q", r.Image.DefaultCredentials.Secret, redacted)
	}
	if n.Credentials.Secret != "PK1" || n.Image.DefaultCredentials.Secret != "imgpass" {
		t.Errorf("redact modified its input")
	}

	if redact(n, true) != n {
		t.Errorf("redact with show should return the node unchanged")
	}
}

func TestToRow(t *testing.T) {
	r := toRow(testNode())
	want := nodeRow{
		Name:         "web-1",
		ID:           "i-1234567890abcdef0",
		Provider:     "aws",
		Tag:          "web",
		Organization: "123456789012",
		Zone:         "us-west-2a",
		Image:        "ubuntu-jammy-22.04",
		Account:      "ubuntu",
		Secret:       "PK1",
	}
	if r != want {
		t.Errorf("toRow() = %+v, want %+v", r, want)
	}

	bare := toRow(&core.Node{ID: "n", Image: &core.Image{ID: "ami-2"}})
	if bare.Image != "ami-2" || bare.Organization != "" {
		t.Errorf("toRow(bare) = %+v", bare)
	}
}

func TestRenderNodesJSON(t *testing.T) {
	var out bytes.Buffer
	if err := renderNodes(&out, []*core.Node{testNode()}, "JSON", false); err != nil {
		t.Fatalf("renderNodes: %v", err)
	}

	var got []core.Node
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(got) != 1 {
		t.Fatalf("got %d nodes, want 1", len(got))
	}
	if got[0].Credentials.Secret != redacted {
		t.Errorf("secret = %q, want redacted", got[0].Credentials.Secret)
	}
	if got[0].Location.Parent.ID != "123456789012" {
		t.Errorf("organization lost in JSON output")
	}
}

func TestRenderNodesTable(t *testing.T) {
	for _, format := range []string{"txt", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var out bytes.Buffer
			if err := renderNodes(&out, []*core.Node{testNode()}, format, true); err != nil {
				t.Fatalf("renderNodes: %v", err)
			}
			for _, want := range []string{"web-1", "123456789012", "us-west-2a", "PK1"} {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRenderEntries(t *testing.T) {
	entries := []keys.Entry{{
		Key:         core.OrgTagKey{Org: "acme", Tag: "web"},
		Account:     "deploy",
		PublicKey:   "ssh-ed25519 AAAA deploy",
		Fingerprint: "SHA256:abc",
		UpdatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	var out bytes.Buffer
	if err := renderEntries(&out, entries, "txt"); err != nil {
		t.Fatalf("renderEntries: %v", err)
	}
	for _, want := range []string{"acme", "web", "deploy", "SHA256:abc", "2026-03-01 12:00:00"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := renderEntries(&out, entries, "json"); err != nil {
		t.Fatalf("renderEntries: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	key, _ := got[0]["key"].(map[string]any)
	if key["org"] != "acme" || key["tag"] != "web" {
		t.Errorf("key = %v, want acme/web", got[0]["key"])
	}
}
