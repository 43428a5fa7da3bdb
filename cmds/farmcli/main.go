// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// farmcli is a command line client for Testing Farm, a remote test
// execution service. It submits test requests, follows them to
// completion and manages machine reservations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/farmcli/cmds/farmcli/cli"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/logging"
)

func main() {
	if os.Getenv("TESTING_FARM_DEBUG") != "" {
		logging.SetDebug(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.CLIMain(ctx, config.Load(), os.Args[1:], os.Stdout)
	if err == nil {
		return
	}

	// an interrupt while watching means "stop waiting", not a failure
	if errors.Is(err, context.Canceled) {
		return
	}

	var exitErr *cerrors.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Msg)
		stop()
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(cerrors.ExitCodeUserError)
}
