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

package dataset

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gorse-io/repurpose/base/log"
	"github.com/gorse-io/repurpose/common/datautil"
	"github.com/gorse-io/repurpose/common/parallel"
	"github.com/gorse-io/repurpose/common/util"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	RatingsFile = "ratings_mat.csv"
	ItemsFile   = "items.csv"
	UsersFile   = "users.csv"
)

type builtInDataset struct {
	sameItemUserFeatures bool
}

var builtInDatasets = map[string]builtInDataset{
	"Gottlieb":         {},
	"Cdataset":         {},
	"DNdataset":        {},
	"LRSSL":            {},
	"PREDICT_Gottlieb": {},
	"TRANSCRIPT":       {sameItemUserFeatures: true},
	"PREDICT":          {},
	"TRANSCRIPT_v1":    {},
	"PREDICT_v1":       {},
}

// BuiltInDatasets returns the names of the benchmark datasets in alphabetical order.
func BuiltInDatasets() []string {
	names := lo.Keys(builtInDatasets)
	slices.Sort(names)
	return names
}

// Loader loads benchmark datasets from a local cache, downloading missing ones
// from <BaseURL>/<name>.zip. The archive must hold a <name>/ directory with the
// three CSV files.
type Loader struct {
	BaseURL    string
	Downloader datautil.Downloader
}

// LoadDataset loads a benchmark dataset cached under saveFolder. Nothing is downloaded.
func LoadDataset(name, saveFolder string) (Config, error) {
	var loader Loader
	return loader.Load(context.Background(), name, saveFolder)
}

// Load returns the config of a benchmark dataset stored in saveFolder/<name>/.
func (l *Loader) Load(ctx context.Context, name, saveFolder string) (Config, error) {
	info, exist := builtInDatasets[name]
	if !exist {
		return Config{}, errors.NotFoundf("dataset %q", name)
	}
	dir := filepath.Join(saveFolder, name)
	if !cached(dir) {
		if l.BaseURL == "" {
			return Config{}, errors.NotFoundf("dataset %q in %s and no download URL", name, saveFolder)
		}
		src := strings.TrimSuffix(l.BaseURL, "/") + "/" + name + ".zip"
		if _, err := l.Downloader.DownloadAndUnzip(ctx, src, saveFolder); err != nil {
			return Config{}, errors.Annotatef(err, "download dataset %q", name)
		}
		if !cached(dir) {
			return Config{}, errors.NotFoundf("dataset files of %q in downloaded archive", name)
		}
	}
	cfg, err := LoadDatasetFromDir(dir)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	cfg.Name = name
	cfg.SameItemUserFeatures = info.sameItemUserFeatures
	return cfg, nil
}

func cached(dir string) bool {
	for _, name := range []string{RatingsFile, ItemsFile, UsersFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// LoadDatasetFromDir loads the rating matrix and the feature matrices from the
// CSV files in dir. The name of the directory becomes the dataset name.
func LoadDatasetFromDir(dir string) (Config, error) {
	log.Logger().Info("load dataset", zap.String("dir", dir))
	files := []struct {
		name  string
		parse func(string) (float64, error)
	}{
		{RatingsFile, parseRating},
		{ItemsFile, parseFeature},
		{UsersFile, parseFeature},
	}
	matrices := make([]labeledMatrix, len(files))
	err := parallel.Parallel(context.Background(), len(files), len(files), func(_, i int) error {
		var err error
		matrices[i], err = readMatrix(filepath.Join(dir, files[i].name), files[i].parse)
		return err
	})
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	ratings, items, users := matrices[0], matrices[1], matrices[2]
	if !slices.Equal(ratings.rows, items.columns) {
		return Config{}, errors.NotValidf("items in %s and %s", ItemsFile, RatingsFile)
	}
	if !slices.Equal(ratings.columns, users.columns) {
		return Config{}, errors.NotValidf("users in %s and %s", UsersFile, RatingsFile)
	}
	return Config{
		RatingsMat:        ratings.values,
		Items:             items.values,
		Users:             users.values,
		Name:              filepath.Base(filepath.Clean(dir)),
		ItemLabels:        ratings.rows,
		UserLabels:        ratings.columns,
		ItemFeatureLabels: items.rows,
		UserFeatureLabels: users.rows,
	}, nil
}

type labeledMatrix struct {
	values  *mat.Dense
	rows    []string
	columns []string
}

func parseRating(s string) (float64, error) {
	v, err := util.ParseFloat[float64](s)
	if err != nil {
		return 0, errors.NotValidf("rating %q", s)
	}
	return v, nil
}

func parseFeature(s string) (float64, error) {
	if util.IsMissing(s) {
		return 0, nil
	}
	v, err := util.ParseFloat[float64](s)
	if err != nil {
		return 0, errors.NotValidf("feature %q", s)
	}
	return v, nil
}

// readMatrix reads a labeled matrix. The first record holds column labels after
// an empty corner cell, each next record holds a row label and the row values.
func readMatrix(path string, parse func(string) (float64, error)) (labeledMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return labeledMatrix{}, errors.Trace(err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return labeledMatrix{}, errors.Annotatef(err, "read %s", path)
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return labeledMatrix{}, errors.NotValidf("empty matrix in %s", path)
	}
	m := labeledMatrix{
		values:  mat.NewDense(len(records)-1, len(records[0])-1, nil),
		rows:    make([]string, 0, len(records)-1),
		columns: records[0][1:],
	}
	for i, record := range records[1:] {
		m.rows = append(m.rows, record[0])
		for j, cell := range record[1:] {
			v, err := parse(cell)
			if err != nil {
				return labeledMatrix{}, errors.Annotatef(err, "%s line %d", path, i+2)
			}
			m.values.Set(i, j, v)
		}
	}
	return m, nil
}

// SaveDataset writes a dataset into dir as the CSV files read by LoadDatasetFromDir.
func SaveDataset(d *Dataset, dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	if err := writeMatrix(filepath.Join(dir, RatingsFile), d.ratingsMat, d.itemLabels, d.userLabels); err != nil {
		return errors.Trace(err)
	}
	if err := writeMatrix(filepath.Join(dir, ItemsFile), d.items, d.itemFeatureLabels, d.itemLabels); err != nil {
		return errors.Trace(err)
	}
	if err := writeMatrix(filepath.Join(dir, UsersFile), d.users, d.userFeatureLabels, d.userLabels); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save dataset", zap.String("name", d.name), zap.String("dir", dir))
	return nil
}

func writeMatrix(path string, m *mat.Dense, rows, columns *Labels) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err = w.Write(append([]string{""}, columns.Names()...)); err != nil {
		return errors.Trace(err)
	}
	r, c := m.Dims()
	record := make([]string, c+1)
	for i := 0; i < r; i++ {
		record[0], _ = rows.Name(i)
		for j := 0; j < c; j++ {
			record[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err = w.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return errors.Trace(err)
	}
	return file.Close()
}
