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
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorse-io/repurpose/base/log"
	"github.com/gorse-io/repurpose/common/datautil"
	"github.com/gorse-io/repurpose/config"
	"github.com/gorse-io/repurpose/dataset"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var conf *config.Config

var rootCommand = &cobra.Command{
	Use:           "repurpose",
	Short:         "Drug repurposing datasets: load, generate, summarize and visualize.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Root().PersistentFlags()
		debug, _ := flags.GetBool("debug")
		if err := log.SetLogger(flags, debug); err != nil {
			return errors.Trace(err)
		}
		configPath, _ := flags.GetString("config")
		log.Logger().Debug("load config", zap.String("config", configPath))
		var err error
		if conf, err = config.LoadConfig(configPath); err != nil {
			return errors.Annotate(err, "failed to load config")
		}
		return nil
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(generateCommand, summaryCommand, visualizeCommand, versionCommand)
}

// loadDataset loads the dataset in --dir, or the benchmark dataset named by the argument.
func loadDataset(cmd *cobra.Command, args []string) (*dataset.Dataset, error) {
	dir, _ := cmd.Flags().GetString("dir")
	var (
		cfg dataset.Config
		err error
	)
	switch {
	case dir != "" && len(args) > 0:
		return nil, errors.NotValidf("both dataset name and directory")
	case dir != "":
		cfg, err = dataset.LoadDatasetFromDir(dir)
	case len(args) == 1:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		loader := dataset.Loader{
			BaseURL: conf.Dataset.BaseURL,
			Downloader: datautil.Downloader{
				Client:   &http.Client{Timeout: conf.Dataset.DownloadTimeout},
				Progress: progressWriter(),
				MaxTries: conf.Dataset.DownloadRetries,
			},
		}
		cfg, err = loader.Load(ctx, args[0], conf.Dataset.Dir)
	default:
		return nil, errors.NotValidf("no dataset name or directory")
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return dataset.New(cfg)
}

// progressWriter returns stderr when it is a terminal.
func progressWriter() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
