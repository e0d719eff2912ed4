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
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/nodecreds/pkg/util"
	v "gitlab.com/davidxarnold/nodecreds/version"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

const envPrefix = "NODECREDS"

var (
	cfgFile               string
	KubernetesConfigFlags *genericclioptions.ConfigFlags
)

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalln(err)
		}

		// Search config in home directory with name ".nodecreds" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".nodecreds")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugln("Using config file:", viper.ConfigFileUsed())
	}
}

// defaultKeysDB is the key database used when --keys-db is not set.
func defaultKeysDB() string {
	p, err := homedir.Expand("~/.nodecreds/keys.db")
	if err != nil {
		return filepath.Join(os.TempDir(), "nodecreds-keys.db")
	}
	return p
}

// NewNodeCredsCmd provides the root cobra command
func NewNodeCredsCmd() *cobra.Command {
	var (
		output   string
		keysDB   string
		logLevel string
	)

	KubernetesConfigFlags = genericclioptions.NewConfigFlags(false)

	cmd := &cobra.Command{
		Use:   "nodecreds",
		Short: "Look up compute nodes together with their login credentials.",
		Long: "nodecreds fetches node metadata from AWS, GCE or Kubernetes and attaches " +
			"the login credentials provisioned for the node's organization and tag, " +
			"falling back to the default login of the node's image.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.SetupLogger()
		},
	}

	cmd.Version = v.Version

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"config file (default is $HOME/.nodecreds.yaml)")
	cmd.PersistentFlags().StringVarP(
		&output, "output", "o", "txt",
		"-o, --output='': Output format. One of: txt|json|pretty")
	cmd.PersistentFlags().StringVar(
		&keysDB, "keys-db", defaultKeysDB(),
		"Path of the sqlite key pair database")
	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"Log level. One of: trace|debug|info|warn|error")

	cobra.OnInitialize(initConfig)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	_ = viper.BindPFlag("output", cmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("keys-db", cmd.PersistentFlags().Lookup("keys-db"))
	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newGetCmd(), newKeysCmd())

	return cmd
}
