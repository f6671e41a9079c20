/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

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
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "booktran",
	Short: "Two-stage book translator",
	Long: `Translates book-length texts in two stages: a machine translation
pass followed by an optional LLM literary refinement pass.

Long documents are split into chunks, each chunk goes through the
translation memory cache first, and every chunk is checkpointed so an
interrupted job can be retried.

Use "booktran serve" to run the HTTP service, or
"booktran translate" for a one-shot file translation.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.booktran.yaml)")
	rootCmd.PersistentFlags().String("db", "translations.db", "path to the job database")
	rootCmd.PersistentFlags().String("cache-db", "cache.db", "path to the translation memory cache")
	rootCmd.PersistentFlags().String("service", "mymemory", "machine translation service (google|mymemory)")
	rootCmd.PersistentFlags().String("google-credentials", "", "Google Cloud credentials file")
	rootCmd.PersistentFlags().String("mymemory-email", "", "contact email for the MyMemory free tier")
	rootCmd.PersistentFlags().String("ollama-url", "http://localhost:11434", "Ollama base URL for refinement")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	for _, name := range []string{"db", "cache-db", "service", "google-credentials", "mymemory-email", "ollama-url", "verbose"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to bind flag %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".booktran")
		}
	}

	viper.SetEnvPrefix("BOOKTRAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
