// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/request"
	"github.com/facebookincubator/farmcli/pkg/transport"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
)

var runWorkdirPattern = regexp.MustCompile(`href="(.*)" name="workdir"`)

// scriptOutputPath is where the sanity plan stores the script output
// inside the pipeline workdir.
const scriptOutputPath = "/testing-farm/sanity/execute/data/guest/default-0/testing-farm/script-1/output.txt"

func runVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("run")

	arch := flagSet.String("arch", "x86_64", "Hardware platform of the target machine")
	compose := flagSet.String("compose", "", "Compose used to provision the target machine, container when not set")
	pool := flagSet.String("pool", "", "Force pool to provision")
	hardware := flagSet.StringArray("hardware", nil, "HW requirements as key=value pairs")
	variables := flagSet.StringArrayP("environment", "e", nil, "Variables to pass to the test environment as key=value|@file")
	secrets := flagSet.StringArrayP("secret", "s", nil, "Secret variables to pass to the test environment as key=value|@file")
	dryRun := flagSet.Bool("dry-run", false, "Do not submit the request, just print it")
	verbose := flagSet.Bool("verbose", false, "Be verbose")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}

	command := flagSet.Args()
	if len(command) == 0 {
		return cerrors.Newf("no command to run, use `--` to separate the command from CLI options")
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	doc, err := request.NewBuilder(cfg).BuildRun(request.RunInput{
		Arch:      *arch,
		Compose:   *compose,
		Pool:      *pool,
		Hardware:  *hardware,
		Variables: *variables,
		Secrets:   *secrets,
		Command:   command,
	})
	if err != nil {
		return err
	}

	if *dryRun || *verbose {
		fmt.Fprintln(stdout, "🔍 showing POST json")
		if err := printJSON(stdout, doc); err != nil {
			return err
		}
		if *dryRun {
			return nil
		}
	}

	client := newClient(cfg)
	submitted, err := client.Submit(ctx, doc)
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(stdout, "🔎 request %s\n", submitted.ID)
	}

	status, err := waitFinished(ctx, client, submitted.ID)
	if err != nil {
		return err
	}

	artifacts := status.ArtifactsURL()
	if *verbose {
		fmt.Fprintf(stdout, "🚢 artifacts %s\n", artifacts)
	}

	// results.xml may lag behind the request completing, the raced
	// client retries on 404
	resultsXML, err := client.FetchArtifactRaced(ctx, artifacts+"/results.xml")
	if err != nil {
		if thttp.IsSSLError(err) {
			fmt.Fprintln(stdout, "🚫 artifacts unreachable via SSL, do you have RH CA certificates installed?")
		} else {
			fmt.Fprintln(stdout, "🚫 artifacts unreachable, are you on VPN?")
		}
		fmt.Fprintf(stdout, "🚢 artifacts %s\n", artifacts)
		return cerrors.Newf("could not fetch the script output")
	}

	match := runWorkdirPattern.FindStringSubmatch(resultsXML)
	if match == nil {
		return cerrors.Newf("could not find working directory, cannot continue")
	}
	workdir := match[1]
	output := workdir + scriptOutputPath

	if *verbose {
		fmt.Fprintf(stdout, "👷 workdir %s\n", workdir)
		fmt.Fprintf(stdout, "📤 output %s\n", output)
	}

	text, err := client.FetchArtifactRaced(ctx, output)
	if err != nil {
		return cerrors.Newf("could not fetch the script output: %v", err)
	}
	fmt.Fprint(stdout, text)
	return nil
}

// waitFinished polls the request until it reaches complete or error.
func waitFinished(ctx context.Context, client *thttp.Client, id string) (*api.RequestStatus, error) {
	var currentState string
	for {
		status, err := client.Get(ctx, id, transport.GetOptions{})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, cerrors.Infraf("connection to API failed: %v", err)
		}

		if status.State != currentState {
			currentState = status.State
			switch currentState {
			case api.StateComplete, api.StateError:
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
