// Copyright 2020 gorse Project Authors
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

package config

import (
	"time"

	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of repurpose.
type Config struct {
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Visualize VisualizeConfig `mapstructure:"visualize"`
}

// DatasetConfig is the configuration of benchmark datasets.
type DatasetConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
	// BaseURL serves <name>.zip archives. Empty disables downloading.
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"gt=0"`
	DownloadRetries uint          `mapstructure:"download_retries"`
}

// GeneratorConfig is the configuration of synthetic datasets.
type GeneratorConfig struct {
	NPositive int     `mapstructure:"n_positive" validate:"gte=0"`
	NNegative int     `mapstructure:"n_negative" validate:"gte=0"`
	NFeatures int     `mapstructure:"n_features" validate:"gte=2"`
	Mean      float64 `mapstructure:"mean"`
	Std       float64 `mapstructure:"std" validate:"gte=0"`
	Seed      int64   `mapstructure:"seed"`
}

// VisualizeConfig is the configuration of projections.
type VisualizeConfig struct {
	Method     string  `mapstructure:"method" validate:"oneof=pca mds umap"`
	Components int     `mapstructure:"components" validate:"gte=1"`
	NNeighbors int     `mapstructure:"n_neighbors" validate:"gte=0"`
	WithZeros  bool    `mapstructure:"with_zeros"`
	ShowErrors bool    `mapstructure:"show_errors"`
	Threshold  float64 `mapstructure:"threshold"`
	MaxPoints  int     `mapstructure:"max_points" validate:"gte=0"`
	Seed       int64   `mapstructure:"seed"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Dir:             "datasets",
			DownloadTimeout: 5 * time.Minute,
			DownloadRetries: 3,
		},
		Generator: GeneratorConfig{
			NPositive: 200,
			NNegative: 100,
			NFeatures: 50,
			Mean:      0.5,
			Std:       1,
			Seed:      12454,
		},
		Visualize: VisualizeConfig{
			Method:     "pca",
			Components: 2,
			NNeighbors: 15,
			Threshold:  0.5,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	v.SetDefault("dataset.dir", defaultConfig.Dataset.Dir)
	v.SetDefault("dataset.base_url", defaultConfig.Dataset.BaseURL)
	v.SetDefault("dataset.download_timeout", defaultConfig.Dataset.DownloadTimeout)
	v.SetDefault("dataset.download_retries", defaultConfig.Dataset.DownloadRetries)
	// [generator]
	v.SetDefault("generator.n_positive", defaultConfig.Generator.NPositive)
	v.SetDefault("generator.n_negative", defaultConfig.Generator.NNegative)
	v.SetDefault("generator.n_features", defaultConfig.Generator.NFeatures)
	v.SetDefault("generator.mean", defaultConfig.Generator.Mean)
	v.SetDefault("generator.std", defaultConfig.Generator.Std)
	v.SetDefault("generator.seed", defaultConfig.Generator.Seed)
	// [visualize]
	v.SetDefault("visualize.method", defaultConfig.Visualize.Method)
	v.SetDefault("visualize.components", defaultConfig.Visualize.Components)
	v.SetDefault("visualize.n_neighbors", defaultConfig.Visualize.NNeighbors)
	v.SetDefault("visualize.with_zeros", defaultConfig.Visualize.WithZeros)
	v.SetDefault("visualize.show_errors", defaultConfig.Visualize.ShowErrors)
	v.SetDefault("visualize.threshold", defaultConfig.Visualize.Threshold)
	v.SetDefault("visualize.max_points", defaultConfig.Visualize.MaxPoints)
	v.SetDefault("visualize.seed", defaultConfig.Visualize.Seed)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) error {
	bindings := []configBinding{
		{"dataset.dir", "REPURPOSE_DATASET_DIR"},
		{"dataset.base_url", "REPURPOSE_DATASET_BASE_URL"},
		{"dataset.download_timeout", "REPURPOSE_DATASET_DOWNLOAD_TIMEOUT"},
		{"generator.seed", "REPURPOSE_GENERATOR_SEED"},
		{"visualize.method", "REPURPOSE_VISUALIZE_METHOD"},
		{"visualize.n_neighbors", "REPURPOSE_VISUALIZE_N_NEIGHBORS"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a TOML, YAML or JSON file. Missing values
// fall back to defaults and environment variables override the file. An empty
// path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
