// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/options"
	"github.com/facebookincubator/farmcli/pkg/request"
	"github.com/facebookincubator/farmcli/pkg/reserve"
)

func requestVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("request")

	timeout := flagSet.Int("timeout", config.DefaultPipelineTimeout, "Request timeout in minutes, longer runs are terminated")
	testType := flagSet.String("test-type", request.TestTypeFMF, "Test type to use, autodetected when the git repository is local")
	planName := flagSet.String("plan", "", "Select plans to be executed, can be a regular expression")
	planFilter := flagSet.String("plan-filter", "", "Filter tmt plans, by default `enabled:true` is applied")
	testName := flagSet.String("test", "", "Select tests to be executed, can be a regular expression")
	testFilter := flagSet.String("test-filter", "", "Filter tmt tests, overrides any filter defined in the plan")
	path := flagSet.String("path", ".", "Path to the metadata tree root, relative to the repository root")
	playbooks := flagSet.StringArray("playbook", nil, "STI playbook to run, can be specified multiple times")
	gitURL := flagSet.String("git-url", "", "URL of the git repository to test, autodetected when not set")
	gitRef := flagSet.String("git-ref", "main", "Git ref or branch to test, autodetected when --git-url is not set")
	gitMergeSHA := flagSet.String("git-merge-sha", "", "Git ref or branch into which --git-ref is merged, if specified")
	arches := flagSet.StringSlice("arch", []string{"x86_64"}, "Hardware platforms of the systems to be provisioned")
	compose := flagSet.String("compose", "", "Compose used to provision the system under test, container provisioning when not set")
	hardware := flagSet.StringArray("hardware", nil, "HW requirements as key=value pairs, dotted keys merge")
	kickstart := flagSet.StringArray("kickstart", nil, "Kickstart specification as key=value|@file")
	pool := flagSet.String("pool", "", "Force pool to provision")
	tmtContext := flagSet.StringArrayP("context", "c", nil, "Context variables to pass to tmt as key=value|@file")
	variables := flagSet.StringArrayP("environment", "e", nil, "Variables to pass to the test environment as key=value|@file")
	secrets := flagSet.StringArrayP("secret", "s", nil, "Secret variables to pass to the test environment as key=value|@file")
	tmtEnvironment := flagSet.StringArrayP("tmt-environment", "T", nil, "Environment variables to pass to the tmt process as key=value|@file")
	noWait := flagSet.Bool("no-wait", false, "Skip waiting for request completion")
	workerImage := flagSet.String("worker-image", "", "Force worker container image, requires developer permissions")
	brewBuilds := flagSet.StringArray("redhat-brew-build", nil, "Brew build task IDs or NVRs to install")
	kojiBuilds := flagSet.StringArray("fedora-koji-build", nil, "Koji build task IDs or NVRs to install")
	coprBuilds := flagSet.StringArray("fedora-copr-build", nil, "Copr builds to install, as build-id:chroot-name")
	repositories := flagSet.StringArray("repository", nil, "Repository base URL to add and install packages from")
	repositoryFiles := flagSet.StringArray("repository-file", nil, "URL to a repository file for /etc/yum.repos.d")
	sanity := flagSet.Bool("sanity", false, "Run the Testing Farm sanity test")
	tags := flagSet.StringArrayP("tag", "t", nil, "Tag cloud resources as key=value|@file")
	watchdogDispatchDelay := flagSet.Int("watchdog-dispatch-delay", 0, "Seconds before the guest is-alive watchdog is dispatched (Artemis only)")
	watchdogPeriodDelay := flagSet.Int("watchdog-period-delay", 0, "Seconds between guest is-alive checks (Artemis only)")
	dryRun := flagSet.Bool("dry-run", false, "Do not submit the request, just print it")
	pipelineType := flagSet.String("pipeline-type", "", "Force a specific pipeline type, e.g. tmt-multihost")
	postInstallScript := flagSet.String("post-install-script", "", "Script to run right after the guest boots")
	sgIngress := flagSet.StringArray("security-group-rule-ingress", nil, "Ingress rules as PROTOCOL:CIDR:PORT, comma separated")
	sgEgress := flagSet.StringArray("security-group-rule-egress", nil, "Egress rules as PROTOCOL:CIDR:PORT, comma separated")
	userWebpage := flagSet.String("user-webpage", "", "URL to the user's webpage, shown in the results viewer")
	userWebpageName := flagSet.String("user-webpage-name", "", "Name of the user's webpage")
	userWebpageIcon := flagSet.String("user-webpage-icon", "", "Icon URL of the user's webpage")
	parallelLimit := flagSet.Int("parallel-limit", 0, "Maximum amount of plans executed in parallel")
	tmtDiscover := flagSet.StringArray("tmt-discover", nil, "Additional options passed to the discover step")
	tmtPrepare := flagSet.StringArray("tmt-prepare", nil, "Additional options passed to the prepare step")
	tmtFinish := flagSet.StringArray("tmt-finish", nil, "Additional options passed to the finish step")
	reserveGuest := flagSet.Bool("reserve", false, "Reserve the machine after testing")
	sshPublicKeys := flagSet.StringArray("ssh-public-key", []string{"~/.ssh/*.pub"}, "Path to SSH public key(s) used to connect, supports globbing")
	autoconnect := flagSet.Bool("autoconnect", true, "Automatically connect to the reserved guest via SSH")
	duration := flagSet.Int("duration", config.DefaultReservationDuration, "Reservation duration in minutes")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	in := request.Input{
		TestType:                  *testType,
		GitURL:                    *gitURL,
		GitRef:                    *gitRef,
		MergeSHA:                  *gitMergeSHA,
		PlanName:                  *planName,
		PlanFilter:                *planFilter,
		TestName:                  *testName,
		TestFilter:                *testFilter,
		Path:                      *path,
		Playbooks:                 *playbooks,
		Arches:                    options.NormalizeMultiString(*arches, ","),
		Compose:                   *compose,
		Pool:                      *pool,
		Hardware:                  *hardware,
		Kickstart:                 *kickstart,
		TMTContext:                *tmtContext,
		Variables:                 *variables,
		Secrets:                   *secrets,
		TMTEnvironment:            *tmtEnvironment,
		TMTDiscover:               *tmtDiscover,
		TMTPrepare:                *tmtPrepare,
		TMTFinish:                 *tmtFinish,
		RedHatBrewBuilds:          *brewBuilds,
		FedoraKojiBuilds:          *kojiBuilds,
		FedoraCoprBuilds:          *coprBuilds,
		Repositories:              *repositories,
		RepositoryFiles:           *repositoryFiles,
		Tags:                      *tags,
		PostInstallScript:         *postInstallScript,
		SecurityGroupRulesIngress: *sgIngress,
		SecurityGroupRulesEgress:  *sgEgress,
		Timeout:                   *timeout,
		PipelineType:              *pipelineType,
		ParallelLimit:             *parallelLimit,
		WorkerImage:               *workerImage,
		UserWebpage:               *userWebpage,
		UserWebpageName:           *userWebpageName,
		UserWebpageIcon:           *userWebpageIcon,
		Reserve:                   *reserveGuest,
		ReservationDuration:       *duration,
	}
	if flagSet.Changed("watchdog-dispatch-delay") {
		in.WatchdogDispatchDelay = watchdogDispatchDelay
	}
	if flagSet.Changed("watchdog-period-delay") {
		in.WatchdogPeriodDelay = watchdogPeriodDelay
	}

	if *sanity {
		if in.GitURL != "" || in.PlanName != "" {
			return cerrors.Newf("the option --sanity is mutually exclusive with --git-url and --plan")
		}
		in.GitURL = cfg.TestsGitURL
		in.PlanName = cfg.SanityPlan
	}

	if in.Reserve {
		if err := reserve.CheckAgent(); err != nil {
			return err
		}
	}

	// resolve git repository details from the current repository
	if in.GitURL == "" {
		if !request.GitAvailable() {
			return cerrors.Newf("no git url defined")
		}
		if err := request.CheckUncommittedChanges(); err != nil {
			return err
		}

		var err error
		if in.GitURL, err = request.DetectGitURL(); err != nil {
			return err
		}
		if in.GitRef, err = request.DetectGitRef(); err != nil {
			return err
		}
		if in.TestType, err = request.DetectTestType(in.Path); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "📦 repository %s ref %s test-type %s\n", in.GitURL, in.GitRef, in.TestType)

	provision := in.Compose
	if provision == "" {
		provision = "container image in plan"
	}
	for _, arch := range in.Arches {
		if in.Pool != "" {
			fmt.Fprintf(stdout, "💻 %s on %s via pool %s\n", provision, arch, in.Pool)
		} else {
			fmt.Fprintf(stdout, "💻 %s on %s\n", provision, arch)
		}
	}

	client := newClient(cfg)

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

	doc, err := request.NewBuilder(cfg).Build(in)
	if err != nil {
		return err
	}

	if in.Reserve {
		fmt.Fprintln(stdout, "🛟 Machine will be reserved after testing")
		timeout := in.Timeout
		if in.ReservationDuration > timeout {
			timeout = in.ReservationDuration
		}
		fmt.Fprintf(stdout, "⏳ Maximum reservation time is %d minutes\n", timeout)
	}
	if in.WorkerImage != "" {
		fmt.Fprintf(stdout, "👷 Forcing worker image %s\n", in.WorkerImage)
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
