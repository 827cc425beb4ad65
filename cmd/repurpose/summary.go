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
	"io"
	"strconv"

	"github.com/gorse-io/repurpose/dataset"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var summaryCommand = &cobra.Command{
	Use:   "summary [NAME]",
	Short: "Print the summary of a dataset",
	Long: "Print the summary of the benchmark dataset NAME or of the dataset in --dir. Benchmark datasets: " +
		fmt.Sprint(dataset.BuiltInDatasets()),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd, args)
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(printSummary(cmd.OutOrStdout(), d.Summary()))
	},
}

func init() {
	summaryCommand.Flags().String("dir", "", "directory holding ratings_mat.csv, items.csv and users.csv")
}

func printSummary(w io.Writer, s dataset.Summary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Statistic", "Value")
	rows := [][]string{
		{"Name", s.Name},
		{"Items", strconv.Itoa(s.Items)},
		{"Users", strconv.Itoa(s.Users)},
		{"Rated items", strconv.Itoa(s.RatedItems)},
		{"Rated users", strconv.Itoa(s.RatedUsers)},
		{"Positive ratings", strconv.Itoa(s.Positives)},
		{"Negative ratings", strconv.Itoa(s.Negatives)},
		{"Unknown ratings", strconv.Itoa(s.Unknowns)},
		{"Item features", strconv.Itoa(s.ItemFeatures)},
		{"User features", strconv.Itoa(s.UserFeatures)},
		{"Sparsity", fmt.Sprintf("%.2f%%", s.Sparsity)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
