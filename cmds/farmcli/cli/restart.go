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

	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/listing"
	"github.com/facebookincubator/farmcli/pkg/options"
	"github.com/facebookincubator/farmcli/pkg/request"
	"github.com/facebookincubator/farmcli/pkg/reserve"
	"github.com/facebookincubator/farmcli/pkg/transport"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
)

func restartVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("restart")

	compose := flagSet.String("compose", "", "Force compose used to provision the test environment")
	pool := flagSet.String("pool", "", "Force pool to provision")
	gitURL := flagSet.String("git-url", "", "Force URL of the git repository to test")
	gitRef := flagSet.String("git-ref", "", "Force git ref or branch to test")
	gitMergeSHA := flagSet.String("git-merge-sha", "", "Force git ref or branch into which --git-ref is merged")
	hardware := flagSet.StringArray("hardware", nil, "HW requirements as key=value pairs, dotted keys merge")
	tags := flagSet.StringArrayP("tag", "t", nil, "Tag cloud resources as key=value|@file")
	planName := flagSet.String("plan", "", "Select plans to be executed, can be a regular expression")
	planFilter := flagSet.String("plan-filter", "", "Filter tmt plans")
	testName := flagSet.String("test", "", "Select tests to be executed, can be a regular expression")
	testFilter := flagSet.String("test-filter", "", "Filter tmt tests")
	path := flagSet.String("path", ".", "Path to the metadata tree root")
	tmtDiscover := flagSet.StringArray("tmt-discover", nil, "Additional options passed to the discover step")
	tmtPrepare := flagSet.StringArray("tmt-prepare", nil, "Additional options passed to the prepare step")
	tmtFinish := flagSet.StringArray("tmt-finish", nil, "Additional options passed to the finish step")
	workerImage := flagSet.String("worker-image", "", "Force worker container image, requires developer permissions")
	noWait := flagSet.Bool("no-wait", false, "Skip waiting for request completion")
	dryRun := flagSet.Bool("dry-run", false, "Do not submit the request, just print it")
	pipelineType := flagSet.String("pipeline-type", "", "Force a specific pipeline type")
	parallelLimit := flagSet.Int("parallel-limit", 0, "Maximum amount of plans executed in parallel")
	reserveGuest := flagSet.Bool("reserve", false, "Reserve the machine after testing")
	sshPublicKeys := flagSet.StringArray("ssh-public-key", []string{"~/.ssh/*.pub"}, "Path to SSH public key(s) used to connect, supports globbing")
	autoconnect := flagSet.Bool("autoconnect", true, "Automatically connect to the reserved guest via SSH")
	duration := flagSet.Int("duration", config.DefaultReservationDuration, "Reservation duration in minutes")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return cerrors.Newf("expected exactly one request ID to restart, see --help")
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	id, err := listing.ExtractUUID(flagSet.Arg(0))
	if err != nil {
		return err
	}

	if *reserveGuest {
		if err := reserve.CheckAgent(); err != nil {
			return err
		}
	}

	client := newClient(cfg)

	// the internal API returns the request with its secrets, which only
	// the owner may see
	previous, err := client.Get(ctx, id, transport.GetOptions{Authenticated: true, Internal: true})
	if errors.Is(err, thttp.ErrForbidden) {
		fmt.Fprintln(stdout, "⚠️ You are not the owner of this request. Any secrets associated with the request will not be included on the restart.")
		previous, err = client.Get(ctx, id, transport.GetOptions{})
	}
	if err != nil {
		return err
	}

	in := request.RestartInput{
		Compose:             *compose,
		Pool:                *pool,
		GitURL:              *gitURL,
		GitRef:              *gitRef,
		MergeSHA:            *gitMergeSHA,
		Hardware:            *hardware,
		Tags:                *tags,
		PlanName:            *planName,
		PlanFilter:          *planFilter,
		TestName:            *testName,
		TestFilter:          *testFilter,
		Path:                *path,
		PathSet:             flagSet.Changed("path"),
		TMTDiscover:         *tmtDiscover,
		TMTPrepare:          *tmtPrepare,
		TMTFinish:           *tmtFinish,
		WorkerImage:         *workerImage,
		PipelineType:        *pipelineType,
		ParallelLimit:       *parallelLimit,
		Reserve:             *reserveGuest,
		ReservationDuration: *duration,
	}

	if in.Reserve {
		keys, err := options.ReadGlobPaths(*sshPublicKeys)
		if err != nil {
			return err
		}
		in.AuthorizedKeys = keys

		ip, err := client.PublicIP(ctx)
		if err != nil {
			return cerrors.Newf("could not detect the public IP of this workstation: %v", err)
		}
		in.WorkstationIP = ip
	}

	doc, err := request.NewBuilder(cfg).BuildRestart(previous, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "📦 repository %s ref %s\n", doc.Test.URL(), doc.Test.Ref())
	if in.Compose != "" {
		fmt.Fprintf(stdout, "💻 forcing compose %s\n", in.Compose)
	}
	if in.Pool != "" {
		fmt.Fprintf(stdout, "💻 forcing pool %s\n", in.Pool)
	}
	if in.WorkerImage != "" {
		fmt.Fprintf(stdout, "👷 Forcing worker image %s\n", in.WorkerImage)
	}
	if in.Reserve {
		fmt.Fprintf(stdout, "🕗 Machine will be reserved after testing for %d minutes\n", in.ReservationDuration)
	}

	if *dryRun {
		fmt.Fprintln(stdout, "🔍 Dry run, showing POST json only")
		return printJSON(stdout, doc)
	}

	submitted, err := client.Submit(ctx, doc)
	if err != nil {
		return err
	}
	return watchRequest(ctx, cfg, client, stdout, submitted.ID, *noWait, in.Reserve, *autoconnect)
}
