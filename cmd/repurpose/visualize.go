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
	"os"

	"github.com/gorse-io/repurpose/base/log"
	"github.com/gorse-io/repurpose/dataset"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var visualizeCommand = &cobra.Command{
	Use:   "visualize [NAME]",
	Short: "Project the features of item-user pairs to a CSV plot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := dataset.VisualizeOptions{
			Method:     conf.Visualize.Method,
			Components: conf.Visualize.Components,
			NNeighbors: conf.Visualize.NNeighbors,
			WithZeros:  conf.Visualize.WithZeros,
			ShowErrors: conf.Visualize.ShowErrors,
			Threshold:  conf.Visualize.Threshold,
			MaxPoints:  conf.Visualize.MaxPoints,
			Seed:       conf.Visualize.Seed,
		}
		if flags.Changed("method") {
			opts.Method, _ = flags.GetString("method")
		}
		if flags.Changed("n-neighbors") {
			opts.NNeighbors, _ = flags.GetInt("n-neighbors")
		}
		if flags.Changed("show-errors") {
			opts.ShowErrors, _ = flags.GetBool("show-errors")
		}
		if flags.Changed("threshold") {
			opts.Threshold, _ = flags.GetFloat64("threshold")
		}
		if flags.Changed("with-zeros") {
			opts.WithZeros, _ = flags.GetBool("with-zeros")
		}
		if flags.Changed("max-points") {
			opts.MaxPoints, _ = flags.GetInt("max-points")
		}
		out, _ := flags.GetString("out")
		predictionsPath, _ := flags.GetString("predictions")

		d, err := loadDataset(cmd, args)
		if err != nil {
			return errors.Trace(err)
		}
		var predictions []dataset.Prediction
		if predictionsPath != "" {
			if predictions, err = readPredictions(predictionsPath, d); err != nil {
				return errors.Trace(err)
			}
		}
		plot, err := dataset.Visualize(d, predictions, opts)
		if err != nil {
			return errors.Trace(err)
		}
		file, err := os.Create(out)
		if err != nil {
			return errors.Trace(err)
		}
		defer file.Close()
		if err = plot.WriteCSV(file); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save plot", zap.String("path", out), zap.Int("n_points", len(plot.Points)))
		fmt.Fprintf(cmd.OutOrStdout(), "%d points projected by %s saved to %s\n", len(plot.Points), plot.Method, out)
		return file.Close()
	},
}

func readPredictions(path string, d *dataset.Dataset) ([]dataset.Prediction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	predictions, err := dataset.ReadPredictions(file, d)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", path)
	}
	log.Logger().Info("load predictions", zap.String("path", path), zap.Int("n_predictions", len(predictions)))
	return predictions, nil
}

func init() {
	visualizeCommand.Flags().String("dir", "", "directory holding ratings_mat.csv, items.csv and users.csv")
	visualizeCommand.Flags().StringP("out", "o", "", "output CSV file")
	visualizeCommand.Flags().String("method", "", "projection method: pca, mds or umap (default from config)")
	visualizeCommand.Flags().Int("n-neighbors", 0, "neighborhood size of umap (default from config)")
	visualizeCommand.Flags().String("predictions", "", "CSV file of item, user and predicted score")
	visualizeCommand.Flags().Bool("show-errors", false, "mark predictions disagreeing with known ratings (default from config)")
	visualizeCommand.Flags().Float64("threshold", 0, "scores at or above the threshold are positive (default from config)")
	visualizeCommand.Flags().Bool("with-zeros", false, "include unknown pairs (default from config)")
	visualizeCommand.Flags().Int("max-points", 0, "maximum number of projected pairs (default from config)")
	_ = visualizeCommand.MarkFlagRequired("out")
}
