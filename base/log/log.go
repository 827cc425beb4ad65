// Copyright 2022 gorse Project Authors
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

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.DebugLevel)
)

func init() {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	logger = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level))
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// SetLevel changes the minimum level of the current logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-level", "", "minimum log level: debug, info, warn or error")
	flagSet.String("log-path", "", "path of rotated log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// SetLogger replaces the logger. Debug mode logs to console at debug level,
// otherwise JSON at info level. --log-level overrides the level and --log-path
// adds a rotated file.
func SetLogger(flagSet *pflag.FlagSet, debug bool) error {
	var encoder zapcore.Encoder
	if debug {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		level.SetLevel(zap.DebugLevel)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level.SetLevel(zap.InfoLevel)
	}
	if text, _ := flagSet.GetString("log-level"); text != "" {
		l, err := zapcore.ParseLevel(text)
		if err != nil {
			return errors.NewNotValid(err, "log level")
		}
		level.SetLevel(l)
	}
	// stdout is reserved for command output
	syncers := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if flagSet.Changed("log-path") {
		syncers = append(syncers, rotatedFile(flagSet))
	}
	logger = zap.New(zapcore.NewCore(encoder, zap.CombineWriteSyncers(syncers...), level))
	return nil
}

func rotatedFile(flagSet *pflag.FlagSet) zapcore.WriteSyncer {
	path, _ := flagSet.GetString("log-path")
	maxSize, _ := flagSet.GetInt("log-max-size")
	maxAge, _ := flagSet.GetInt("log-max-age")
	maxBackups, _ := flagSet.GetInt("log-max-backups")
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	})
}

// RedactURL replaces user name and password in a URL with x's of the same length.
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	username := parsed.User.Username()
	if password, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(strings.Repeat("x", len(username)), strings.Repeat("x", len(password)))
	} else {
		parsed.User = url.User(strings.Repeat("x", len(username)))
	}
	return parsed.String()
}
