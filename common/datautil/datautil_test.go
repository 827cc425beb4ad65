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

package datautil

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

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndUnzip(t *testing.T) {
	archive := newZip(t, map[string]string{
		"Gottlieb/ratings_mat.csv": ",u0\ni0,1\n",
		"Gottlieb/items.csv":       ",i0\nf0,0.5\n",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Gottlieb.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	dst := t.TempDir()
	var progress bytes.Buffer
	d := &Downloader{Client: server.Client(), Progress: &progress}
	files, err := d.DownloadAndUnzip(context.Background(), server.URL+"/Gottlieb.zip", dst)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	data, err := os.ReadFile(filepath.Join(dst, "Gottlieb", "ratings_mat.csv"))
	require.NoError(t, err)
	assert.Equal(t, ",u0\ni0,1\n", string(data))
	assert.NotEmpty(t, progress.String())

	_, err = d.DownloadAndUnzip(context.Background(), server.URL+"/missing.zip", dst)
	assert.Error(t, err)
}

func TestDownloadAndUnzip_Retry(t *testing.T) {
	archive := newZip(t, map[string]string{"LRSSL/users.csv": ",u0\ng0,1\n"})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path != "/LRSSL.zip":
			http.NotFound(w, r)
		case requests.Add(1) == 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write(archive)
		}
	}))
	defer server.Close()

	dst := t.TempDir()
	d := &Downloader{Client: server.Client(), MaxTries: 3}
	files, err := d.DownloadAndUnzip(context.Background(), server.URL+"/LRSSL.zip", dst)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dst, "LRSSL", "users.csv")}, files)
	assert.Equal(t, int32(2), requests.Load())

	// not found is never retried
	_, err = d.DownloadAndUnzip(context.Background(), server.URL+"/missing.zip", dst)
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Equal(t, int32(2), requests.Load())
}

func TestDownloadAndUnzip_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("unreachable"))
	}))
	defer server.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Downloader{}).DownloadAndUnzip(ctx, server.URL+"/a.zip", t.TempDir())
	assert.Error(t, err)
}

func TestUnzip_ZipSlip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(src, newZip(t, map[string]string{"../evil.txt": "x"}), 0o644))
	_, err := Unzip(src, t.TempDir())
	assert.ErrorContains(t, err, "illegal file path")
}
