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
	"runtime"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Default build-time variables, overridden via ldflags.
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of repurpose",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Component", "Version")
		for _, row := range [][]string{
			{"Version", Version},
			{"Go version", runtime.Version()},
			{"Git commit", GitCommit},
			{"Built", BuildTime},
			{"OS/Arch", runtime.GOOS + "/" + runtime.GOARCH},
		} {
			if err := table.Append(row); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}
