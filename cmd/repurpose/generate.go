// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/gorse-io/repurpose/dataset"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var generateCommand = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := conf.Generator
		flags := cmd.Flags()
		if flags.Changed("n-positive") {
			g.NPositive, _ = flags.GetInt("n-positive")
		}
		if flags.Changed("n-negative") {
			g.NNegative, _ = flags.GetInt("n-negative")
		}
		if flags.Changed("n-features") {
			g.NFeatures, _ = flags.GetInt("n-features")
		}
		if flags.Changed("seed") {
			g.Seed, _ = flags.GetInt64("seed")
		}
		out, _ := flags.GetString("out")

		cfg, err := dataset.GenerateDummyDataset(g.NPositive, g.NNegative, g.NFeatures, g.Mean, g.Std, g.Seed)
		if err != nil {
			return errors.Trace(err)
		}
		cfg.Name = filepath.Base(filepath.Clean(out))
		d, err := dataset.New(cfg)
		if err != nil {
			return errors.Trace(err)
		}
		if err = dataset.SaveDataset(d, out); err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d items, %d users and %.2f%% known ratings saved to %s\n",
			d.CountItems(), d.CountUsers(), 100*d.Sparsity(), out)
		return nil
	},
}

func init() {
	generateCommand.Flags().StringP("out", "o", "", "output directory")
	generateCommand.Flags().Int("n-positive", 0, "number of positive entities (default from config)")
	generateCommand.Flags().Int("n-negative", 0, "number of negative entities (default from config)")
	generateCommand.Flags().Int("n-features", 0, "number of features (default from config)")
	generateCommand.Flags().Int64("seed", 0, "random seed (default from config)")
	_ = generateCommand.MarkFlagRequired("out")
}
