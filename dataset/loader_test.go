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
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gorse-io/repurpose/common/datautil"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newSmallDataset(t *testing.T) *Dataset {
	cfg, err := GenerateDummyDataset(4, 3, 6, 0.5, 1, 0)
	require.NoError(t, err)
	cfg.Name = "small"
	cfg.ItemLabels = []string{"aspirin", "ibuprofen", "metformin", "statin", "insulin", "heparin", "warfarin"}
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuiltInDatasets(t *testing.T) {
	assert.Equal(t, []string{
		"Cdataset", "DNdataset", "Gottlieb", "LRSSL", "PREDICT", "PREDICT_Gottlieb",
		"PREDICT_v1", "TRANSCRIPT", "TRANSCRIPT_v1",
	}, BuiltInDatasets())
}

func TestSaveDataset(t *testing.T) {
	d := newSmallDataset(t)
	dir := filepath.Join(t.TempDir(), "small")
	require.NoError(t, SaveDataset(d, dir))

	cfg, err := LoadDatasetFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "small", cfg.Name)
	assert.Equal(t, d.ItemLabels().Names(), cfg.ItemLabels)
	assert.Equal(t, d.UserLabels().Names(), cfg.UserLabels)
	assert.Equal(t, d.ItemFeatureLabels().Names(), cfg.ItemFeatureLabels)
	assert.Equal(t, d.UserFeatureLabels().Names(), cfg.UserFeatureLabels)
	assert.True(t, mat.Equal(d.RatingsMat(), cfg.RatingsMat))
	assert.True(t, mat.Equal(d.Items(), cfg.Items))
	assert.True(t, mat.Equal(d.Users(), cfg.Users))

	loaded, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, d.Summary().Positives, loaded.Summary().Positives)
	i, err := loaded.ItemIndex("metformin")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
}

func TestLoadDatasetFromDir_Missing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, RatingsFile), ",u0,u1\ni0,1,0\ni1,-1,1\n")
	writeFile(t, filepath.Join(dir, ItemsFile), ",i0,i1\nf0,0.5,\nf1,NaN,-2\n")
	writeFile(t, filepath.Join(dir, UsersFile), ",u0,u1\ng0,1,na\n")
	cfg, err := LoadDatasetFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0, -2}, mat.DenseCopyOf(cfg.Items).RawMatrix().Data)
	assert.Equal(t, []float64{1, 0}, mat.DenseCopyOf(cfg.Users).RawMatrix().Data)
	assert.Equal(t, []float64{1, 0, -1, 1}, mat.DenseCopyOf(cfg.RatingsMat).RawMatrix().Data)
}

func TestLoadDatasetFromDir_Invalid(t *testing.T) {
	newDir := func(ratings, items, users string) string {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, RatingsFile), ratings)
		writeFile(t, filepath.Join(dir, ItemsFile), items)
		writeFile(t, filepath.Join(dir, UsersFile), users)
		return dir
	}
	// missing rating
	_, err := LoadDatasetFromDir(newDir(",u0\ni0,\n", ",i0\nf0,1\n", ",u0\ng0,1\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
	// unparsable feature
	_, err = LoadDatasetFromDir(newDir(",u0\ni0,1\n", ",i0\nf0,abc\n", ",u0\ng0,1\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
	// mismatched items
	_, err = LoadDatasetFromDir(newDir(",u0\ni0,1\n", ",i1\nf0,1\n", ",u0\ng0,1\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
	// no rows
	_, err = LoadDatasetFromDir(newDir(",u0\n", ",i0\nf0,1\n", ",u0\ng0,1\n"))
	assert.True(t, errors.Is(err, errors.NotValid))
	// ragged rows
	_, err = LoadDatasetFromDir(newDir(",u0,u1\ni0,1\n", ",i0\nf0,1\n", ",u0,u1\ng0,1,1\n"))
	assert.Error(t, err)
	// out of domain rating fails on construction
	cfg, err := LoadDatasetFromDir(newDir(",u0\ni0,0.5\n", ",i0\nf0,1\n", ",u0\ng0,1\n"))
	require.NoError(t, err)
	_, err = New(cfg)
	assert.True(t, errors.Is(err, errors.NotValid))
	// no files
	_, err = LoadDatasetFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestLoadDataset(t *testing.T) {
	_, err := LoadDataset("Unknown", t.TempDir())
	assert.True(t, errors.Is(err, errors.NotFound))
	// not cached and nowhere to download from
	_, err = LoadDataset("Gottlieb", t.TempDir())
	assert.True(t, errors.Is(err, errors.NotFound))

	saveFolder := t.TempDir()
	require.NoError(t, SaveDataset(newSmallDataset(t), filepath.Join(saveFolder, "TRANSCRIPT")))
	cfg, err := LoadDataset("TRANSCRIPT", saveFolder)
	require.NoError(t, err)
	assert.Equal(t, "TRANSCRIPT", cfg.Name)
	assert.True(t, cfg.SameItemUserFeatures)
	d, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, d.SameItemUserFeatures())
}

func TestLoader_Load(t *testing.T) {
	source := t.TempDir()
	d := newSmallDataset(t)
	require.NoError(t, SaveDataset(d, filepath.Join(source, "Cdataset")))
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{RatingsFile, ItemsFile, UsersFile} {
		data, err := os.ReadFile(filepath.Join(source, "Cdataset", name))
		require.NoError(t, err)
		f, err := w.Create("Cdataset/" + name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/datasets/Cdataset.zip" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write(buf.Bytes())
	}))
	defer server.Close()

	loader := &Loader{
		BaseURL:    server.URL + "/datasets/",
		Downloader: datautil.Downloader{Client: server.Client()},
	}
	saveFolder := t.TempDir()
	cfg, err := loader.Load(context.Background(), "Cdataset", saveFolder)
	require.NoError(t, err)
	assert.Equal(t, "Cdataset", cfg.Name)
	assert.False(t, cfg.SameItemUserFeatures)
	assert.True(t, mat.Equal(d.RatingsMat(), cfg.RatingsMat))
	assert.Equal(t, int32(1), requests.Load())

	// cached
	_, err = loader.Load(context.Background(), "Cdataset", saveFolder)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())

	// missing archive
	_, err = loader.Load(context.Background(), "LRSSL", saveFolder)
	assert.Error(t, err)
	assert.Equal(t, int32(2), requests.Load())
}
