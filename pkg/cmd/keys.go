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
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/keys"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the key pairs provisioned per organization and tag.",
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysListCmd(), newKeysDeleteCmd())
	return cmd
}

func addKeyFlags(cmd *cobra.Command, f *keyFlags) {
	cmd.Flags().StringVar(&f.org, "org", "", "Organization: AWS account, GCP project or cluster name")
	cmd.Flags().StringVar(&f.tag, "tag", "", "Node tag")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("tag")
}

func newKeysGenerateCmd() *cobra.Command {
	f := &keyFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a key pair unless one exists, and print its public key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openKeyStore(true)
			if err != nil {
				return err
			}
			defer closeStore() //nolint:errcheck

			key := core.OrgTagKey{Org: f.org, Tag: f.tag}
			m, err := keys.Provision(cmd.Context(), store, key, f.account)
			if err != nil {
				return err
			}
			return renderEntries(cmd.OutOrStdout(), []keys.Entry{{
				Key:         key,
				Account:     m.Account,
				PublicKey:   m.PublicKey,
				Fingerprint: m.Fingerprint,
			}}, viper.GetString("output"))
		},
	}
	addKeyFlags(cmd, f)
	cmd.Flags().StringVar(&f.account, "account", "", "Login account (default org-tag)")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored key pairs without their private keys.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openKeyStore(false)
			if err != nil {
				return err
			}
			defer closeStore() //nolint:errcheck

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderEntries(cmd.OutOrStdout(), entries, viper.GetString("output"))
		},
	}
}

func newKeysDeleteCmd() *cobra.Command {
	f := &keyFlags{}
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the key pair of an organization and tag.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openKeyStore(false)
			if err != nil {
				return err
			}
			defer closeStore() //nolint:errcheck

			key := core.OrgTagKey{Org: f.org, Tag: f.tag}
			removed, err := store.Delete(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s", keys.ErrKeyPairNotFound, key)
			}
			log.WithField("key", key.String()).Info("deleted key pair")
			return nil
		},
	}
	addKeyFlags(cmd, f)
	return cmd
}
