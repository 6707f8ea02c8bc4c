/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the sage command, which runs rule-driven
// questionnaires in a terminal, on a console, or as a service.
package main

import (
	"fmt"
	"os"

	"github.com/Comcast/sage/config"
	"github.com/Comcast/sage/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	verbose    bool
	kbFile     string
	textFile   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Rule-driven questionnaires",
	Long: `sage asks questions that a knowledge base's rules pick, one at a
time, until the rules have nothing left to ask.  Then it shows what the
rules recommend.

Knowledge bases are *.kb.yaml files in the configured directory (see
--config), or a single file given with --kb.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if textFile != "" {
			c.Text.Path = textFile
		}
		if logger, err = logging.Verbose(c.Log.Level, c.Log.Development, verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = c
		logger.Debug("config", zap.String("file", configFile), zap.Any("config", cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default sage.yaml in . or ~/.config/sage)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&kbFile, "kb", "", "knowledge base file to use instead of the configured directory")
	pf.StringVar(&textFile, "text", "", "text resources file (overrides text.path)")

	rootCmd.AddCommand(askCmd, runCmd, serveCmd, mqttCmd, checkCmd, docCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
