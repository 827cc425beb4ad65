// Copyright 2024 gorse Project Authors
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
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/repurpose/base/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Downloader fetches zip archives and extracts them.
type Downloader struct {
	Client *http.Client
	// Progress receives a progress bar while downloading. Nil disables it.
	Progress io.Writer
	// MaxTries bounds the attempts of a download, one when unset. Client errors
	// are never retried.
	MaxTries uint
}

// DownloadAndUnzip downloads the archive at src and extracts it into dst.
func (d *Downloader) DownloadAndUnzip(ctx context.Context, src, dst string) ([]string, error) {
	temp, err := os.MkdirTemp("", "repurpose")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer os.RemoveAll(temp)
	operation := func() (string, error) {
		return d.download(ctx, src, temp)
	}
	notify := func(err error, next time.Duration) {
		log.Logger().Warn("retry download", zap.Error(err), zap.Duration("after", next))
	}
	zipFileName, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(max(d.MaxTries, 1)),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Unzip(zipFileName, dst)
}

// download saves the file at src into the directory dst.
func (d *Downloader) download(ctx context.Context, src, dst string) (string, error) {
	log.Logger().Info("download dataset", zap.String("source", log.RedactURL(src)), zap.String("destination", dst))
	tokens := strings.Split(src, "/")
	fileName := filepath.Join(dst, tokens[len(tokens)-1])
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return fileName, errors.Trace(err)
	}
	output, err := os.Create(fileName)
	if err != nil {
		log.Logger().Error("failed to create file", zap.Error(err), zap.String("filename", fileName))
		return fileName, errors.Trace(err)
	}
	defer output.Close()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fileName, errors.Trace(err)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", log.RedactURL(src)))
		return fileName, errors.Trace(err)
	}
	defer response.Body.Close()
	switch {
	case response.StatusCode == http.StatusNotFound:
		return fileName, backoff.Permanent(errors.NotFoundf("%s", log.RedactURL(src)))
	case response.StatusCode >= 400 && response.StatusCode < 500:
		return fileName, backoff.Permanent(errors.Errorf("failed to download %s: %s", log.RedactURL(src), response.Status))
	case response.StatusCode != http.StatusOK:
		return fileName, errors.Errorf("failed to download %s: %s", log.RedactURL(src), response.Status)
	}

	var body io.Reader = response.Body
	if d.Progress != nil {
		bar := progressbar.NewOptions64(response.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription("Downloading "+tokens[len(tokens)-1]),
			progressbar.OptionShowBytes(true))
		reader := progressbar.NewReader(response.Body, bar)
		body = &reader
	}
	if _, err = io.Copy(output, body); err != nil {
		log.Logger().Error("failed to download", zap.Error(err), zap.String("source", log.RedactURL(src)))
		return fileName, errors.Trace(err)
	}
	return fileName, nil
}

// Unzip extracts a zip file into dst and returns the extracted paths.
func Unzip(src, dst string) ([]string, error) {
	var fileNames []string
	r, err := zip.OpenReader(src)
	if err != nil {
		return fileNames, errors.Trace(err)
	}
	defer r.Close()
	for _, f := range r.File {
		filePath := filepath.Join(dst, f.Name)
		// Check for ZipSlip. More Info: http://bit.ly/2MsjAWE
		if !strings.HasPrefix(filePath, filepath.Clean(dst)+string(os.PathSeparator)) {
			return fileNames, fmt.Errorf("%s: illegal file path", filePath)
		}
		fileNames = append(fileNames, filePath)
		if f.FileInfo().IsDir() {
			if err = os.MkdirAll(filePath, os.ModePerm); err != nil {
				return fileNames, errors.Trace(err)
			}
			continue
		}
		if err = extract(f, filePath); err != nil {
			return fileNames, errors.Trace(err)
		}
	}
	return fileNames, nil
}

func extract(f *zip.File, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	outFile, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	if _, err = io.Copy(outFile, rc); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}
