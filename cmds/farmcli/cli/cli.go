// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package cli implements the farmcli command line interface: one flag
// set per verb, dispatched from CLIMain.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/reserve"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
	"github.com/facebookincubator/farmcli/pkg/watch"
)

// Version is the CLI version, overridden at build time via ldflags.
var Version = "devel"

// Output formats of the list and composes verbs.
const (
	formatTable = "table"
	formatText  = "text"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func usage(out io.Writer) {
	fmt.Fprintf(out, `Usage:

  farmcli [verb] [flags]

Verbs:
  request     request testing from Testing Farm
  restart     restart a request, optionally overriding parts of it
  cancel      cancel a request
  watch       watch a request for completion
  run         run an arbitrary script via Testing Farm
  reserve     reserve a system in Testing Farm
  list        list requests
  composes    list composes accepted by Testing Farm
  encrypt     create secrets for in-repository configuration
  version     print CLI version

Run 'farmcli [verb] --help' for verb flags.
`)
}

// CLIMain dispatches the verb and runs it. The returned error carries
// the process exit code when it is a *cerrors.ExitError.
func CLIMain(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return cerrors.Newf("missing verb, see --help")
	}

	verb := strings.ToLower(args[0])
	rest := args[1:]

	switch verb {
	case "request":
		return requestVerb(ctx, cfg, rest, stdout)
	case "restart":
		return restartVerb(ctx, cfg, rest, stdout)
	case "cancel":
		return cancelVerb(ctx, cfg, rest, stdout)
	case "watch":
		return watchVerb(ctx, cfg, rest, stdout)
	case "run":
		return runVerb(ctx, cfg, rest, stdout)
	case "reserve":
		return reserveVerb(ctx, cfg, rest, stdout)
	case "list":
		return listVerb(ctx, cfg, rest, stdout)
	case "composes":
		return composesVerb(ctx, cfg, rest, stdout)
	case "encrypt":
		return encryptVerb(ctx, cfg, rest, stdout)
	case "version":
		fmt.Fprintln(stdout, Version)
		return nil
	case "help", "--help", "-h":
		usage(stdout)
		return nil
	}
	return cerrors.Newf("unknown verb %q, see --help", verb)
}

// newFlagSet builds a verb flag set that reports parse problems as user
// errors instead of exiting on its own.
func newFlagSet(verb string) *flag.FlagSet {
	flagSet := flag.NewFlagSet(verb, flag.ContinueOnError)
	flagSet.SortFlags = false
	return flagSet
}

// parseFlags runs the flag set and normalizes --help to a clean exit.
func parseFlags(flagSet *flag.FlagSet, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, cerrors.Newf("%v", err)
	}
	return false, nil
}

func newClient(cfg *config.Settings) *thttp.Client {
	return thttp.New(thttp.Config{
		BaseURL:            cfg.APIURL,
		InternalBaseURL:    cfg.InternalAPIURL,
		Token:              cfg.APIToken,
		OnboardingDocs:     cfg.OnboardingDocs,
		IssueTracker:       cfg.IssueTracker,
		PublicIPCheckerURL: cfg.PublicIPCheckerURL,
		Timeout:            cfg.APITimeout,
		Retries:            cfg.APIRetries,
	})
}

func requireToken(cfg *config.Settings) error {
	if cfg.APIToken == "" {
		return cerrors.Newf("no API token found, export `TESTING_FARM_API_TOKEN` environment variable")
	}
	return nil
}

func printJSON(w io.Writer, document interface{}) error {
	encoded, err := json.MarshalIndent(document, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(encoded))
	return nil
}

// watchRequest follows a submitted request, wiring the reservation
// handover when requested.
func watchRequest(ctx context.Context, cfg *config.Settings, client *thttp.Client, stdout io.Writer, id string, noWait, reserveGuest, autoconnect bool) error {
	opts := watch.Options{
		ID:      id,
		NoWait:  noWait,
		Format:  watch.FormatText,
		Tick:    cfg.WatchTick,
		Reserve: reserveGuest,
	}
	if reserveGuest {
		waiter := reserve.NewWaiter(client, stdout, reserve.Config{
			IssueTracker: cfg.IssueTracker,
			StatusPage:   cfg.StatusPage,
		})
		opts.OnReserved = func(ctx context.Context, status *api.RequestStatus) error {
			return waiter.Handover(ctx, status, autoconnect)
		}
	}
	return watch.New(client, stdout).Run(ctx, opts)
}

func validOutputFormat(format string) error {
	switch format {
	case formatTable, formatText, formatJSON, formatYAML:
		return nil
	}
	return cerrors.Newf("unsupported format %q, use one of: table, text, json, yaml", format)
}
