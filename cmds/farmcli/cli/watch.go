// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"io"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/watch"
)

func watchVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("watch")

	id := flagSet.String("id", "", "Request ID to watch")
	noWait := flagSet.Bool("no-wait", false, "Skip waiting for request completion")
	format := flagSet.String("format", string(watch.FormatText), "Output format, text or json")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if *id == "" {
		return cerrors.Newf("missing request ID, use --id")
	}

	parsedFormat, err := watch.ParseFormat(*format)
	if err != nil {
		return err
	}

	return watch.New(newClient(cfg), stdout).Run(ctx, watch.Options{
		ID:     *id,
		NoWait: *noWait,
		Format: parsedFormat,
		Tick:   cfg.WatchTick,
	})
}
