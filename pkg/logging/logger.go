// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package logging

import (
	"io"
	"os"

	log_prefixed "github.com/chappjc/logrus-prefix"
	"github.com/sirupsen/logrus"
)

var (
	log *logrus.Logger
)

// GetLogger returns a configured logger instance
func GetLogger(prefix string) *logrus.Entry {
	return log.WithField("prefix", prefix)
}

// Disable sends all logging output to the bit bucket.
func Disable() {
	log.SetOutput(io.Discard)
}

// SetDebug raises the log level to include debug output.
func SetDebug(enable bool) {
	if enable {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func init() {
	log = logrus.New()
	// diagnostics go to stderr, the progress narrative owns stdout
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	log.SetFormatter(&log_prefixed.TextFormatter{
		FullTimestamp: true,
	})
}
