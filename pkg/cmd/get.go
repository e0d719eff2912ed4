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
	"fmt"
	"io"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/nodecreds/pkg/cloud"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"k8s.io/client-go/kubernetes"
)

func newGetCmd() *cobra.Command {
	o := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get ID...",
		Short: "Fetch nodes and attach their login credentials.",
		Long: "Fetch nodes by instance id (with --provider) or by Kubernetes provider id " +
			"(aws:///zone/instance, gce://project/zone/instance). Nodes that do not exist are skipped.",
		Args: cobra.MinimumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			_ = viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			o.provider = viper.GetString("provider")
			o.tagKey = viper.GetString("tag-key")
			o.showSecrets = viper.GetBool("show-secrets")
			o.concurrency = viper.GetInt("concurrency")
			return o.run(cmd.Context(), args, cmd.OutOrStdout(), kubeClientFromFlags(KubernetesConfigFlags))
		},
	}

	cmd.Flags().StringVar(
		&o.provider, "provider", "",
		"Provider to fetch bare ids from. One of: "+strings.Join(cloud.ProviderNames(), "|"))
	cmd.Flags().StringVar(
		&o.tagKey, "tag-key", cloud.DefaultTagKey,
		"Instance tag or label holding the node tag")
	cmd.Flags().BoolVar(
		&o.showSecrets, "show-secrets", false,
		"Print private keys instead of redacting them")
	cmd.Flags().IntVar(
		&o.concurrency, "concurrency", core.DefaultConcurrency,
		"Maximum number of nodes fetched at once")

	KubernetesConfigFlags.AddFlags(cmd.Flags())

	return cmd
}

func (o *getOptions) run(ctx context.Context, ids []string, out io.Writer, kube func() (kubernetes.Interface, string, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := o.validate(); err != nil {
		return err
	}

	catalog, err := imageCatalog()
	if err != nil {
		return err
	}

	reader, closeKeys, err := openKeyReader()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeKeys(); err != nil {
			log.WithError(err).Warn("closing key store")
		}
	}()

	providers := newProviderSet(o.provider, cloud.Options{
		TagKey:  o.tagKey,
		Catalog: catalog,
		Logger:  log.StandardLogger(),
	}, kube)
	defer func() {
		if err := providers.Close(); err != nil {
			log.WithError(err).Warn("closing providers")
		}
	}()

	enricher := core.NewEnricher(providers, reader, log.StandardLogger())
	enricher.SetConcurrency(o.concurrency)

	nodes, err := enricher.FetchAndEnrichAll(ctx, ids)
	if err != nil {
		return err
	}
	if missing := len(ids) - len(nodes); missing > 0 {
		log.WithField("missing", missing).Warn("some nodes were not found")
	}

	return renderNodes(out, nodes, viper.GetString("output"), o.showSecrets)
}

// validate rejects an unknown --provider before anything is fetched.
func (o *getOptions) validate() error {
	if o.provider == "" {
		return nil
	}
	if names := cloud.ProviderNames(); !slices.Contains(names, o.provider) {
		return fmt.Errorf("%w: unknown provider %q, want one of %s",
			core.ErrInvalidArgument, o.provider, strings.Join(names, "|"))
	}
	return nil
}
