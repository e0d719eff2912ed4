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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	pt "github.com/jedib0t/go-pretty/v6/table"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/keys"
	"golang.org/x/term"
)

const (
	outputJSON   = "json"
	outputPretty = "pretty"
	redacted     = "<redacted>"
)

// redact returns n with secrets replaced unless show is set. n is not modified.
func redact(n *core.Node, show bool) *core.Node {
	if show || n == nil {
		return n
	}
	cp := n.Clone()
	if cp.Credentials != nil && cp.Credentials.Secret != "" {
		cp.Credentials.Secret = redacted
	}
	if cp.Image != nil && cp.Image.DefaultCredentials != nil && cp.Image.DefaultCredentials.Secret != "" {
		cp.Image.DefaultCredentials.Secret = redacted
	}
	return cp
}

func toRow(n *core.Node) nodeRow {
	r := nodeRow{
		Name:     n.Name,
		ID:       n.ID,
		Provider: n.Provider,
		Tag:      n.Tag,
	}
	r.Organization, _ = n.Organization()
	if n.Location != nil {
		r.Zone = n.Location.ID
	}
	if n.Image != nil {
		r.Image = n.Image.Name
		if r.Image == "" {
			r.Image = n.Image.ID
		}
	}
	if n.Credentials != nil {
		r.Account = n.Credentials.Account
		r.Secret = n.Credentials.Secret
	}
	return r
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newTable(w io.Writer, format string) pt.Writer {
	t := pt.NewWriter()
	t.SetOutputMirror(w)
	if format == outputPretty {
		if isTerminal(w) {
			t.SetStyle(pt.StyleColoredBright)
		} else {
			t.SetStyle(pt.StyleLight)
		}
		return t
	}
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateFooter = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateRows = false
	return t
}

func renderJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// renderNodes writes nodes as a table or JSON.
func renderNodes(w io.Writer, nodes []*core.Node, format string, showSecrets bool) error {
	format = strings.ToLower(format)
	out := make([]*core.Node, len(nodes))
	for i, n := range nodes {
		out[i] = redact(n, showSecrets)
	}

	if format == outputJSON {
		return renderJSON(w, out)
	}

	t := newTable(w, format)
	t.AppendHeader(pt.Row{"Name", "ID", "Provider", "Tag", "Organization", "Zone", "Image", "Account", "Secret"})
	for _, n := range out {
		r := toRow(n)
		t.AppendRow(pt.Row{r.Name, r.ID, r.Provider, r.Tag, r.Organization, r.Zone, r.Image, r.Account, r.Secret})
	}
	t.Render()
	return nil
}

// renderEntries writes key store entries as a table or JSON.
func renderEntries(w io.Writer, entries []keys.Entry, format string) error {
	format = strings.ToLower(format)
	if format == outputJSON {
		if entries == nil {
			entries = []keys.Entry{}
		}
		return renderJSON(w, entries)
	}

	t := newTable(w, format)
	t.AppendHeader(pt.Row{"Org", "Tag", "Account", "Fingerprint", "Updated", "Public Key"})
	for _, e := range entries {
		updated := ""
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		t.AppendRow(pt.Row{e.Key.Org, e.Key.Tag, e.Account, e.Fingerprint, updated, e.PublicKey})
	}
	t.Render()
	return nil
}
