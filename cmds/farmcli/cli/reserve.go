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

func reserveVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("reserve")

	sshPublicKeys := flagSet.StringArray("ssh-public-key", []string{"~/.ssh/*.pub"}, "Path to SSH public key(s) used to connect, supports globbing")
	duration := flagSet.Int("duration", config.DefaultReservationDuration, "Reservation duration in minutes")
	arch := flagSet.String("arch", "x86_64", "Hardware platform of the system to be provisioned")
	compose := flagSet.String("compose", "Fedora-Rawhide", "Compose used to provision the system under test")
	hardware := flagSet.StringArray("hardware", nil, "HW requirements as key=value pairs")
	tags := flagSet.StringArrayP("tag", "t", nil, "Tag cloud resources as key=value|@file")
	kickstart := flagSet.StringArray("kickstart", nil, "Kickstart specification as key=value|@file")
	pool := flagSet.String("pool", "", "Force pool to provision")
	kojiBuilds := flagSet.StringArray("fedora-koji-build", nil, "Koji build task IDs or NVRs to install")
	coprBuilds := flagSet.StringArray("fedora-copr-build", nil, "Copr builds to install, as build-id:chroot-name")
	repositories := flagSet.StringArray("repository", nil, "Repository base URL to add and install packages from")
	repositoryFiles := flagSet.StringArray("repository-file", nil, "URL to a repository file for /etc/yum.repos.d")
	brewBuilds := flagSet.StringArray("redhat-brew-build", nil, "Brew build task IDs or NVRs to install")
	dryRun := flagSet.Bool("dry-run", false, "Do not submit the request, just print it")
	postInstallScript := flagSet.String("post-install-script", "", "Script to run right after the guest boots")
	printOnlyRequestID := flagSet.Bool("print-only-request-id", false, "Output only the request ID")
	autoconnect := flagSet.Bool("autoconnect", true, "Automatically connect to the guest via SSH")
	workerImage := flagSet.String("worker-image", "", "Force worker container image, requires developer permissions")
	sgIngress := flagSet.StringArray("security-group-rule-ingress", nil, "Ingress rules as PROTOCOL:CIDR:PORT, comma separated")
	sgEgress := flagSet.StringArray("security-group-rule-egress", nil, "Egress rules as PROTOCOL:CIDR:PORT, comma separated")
	skipWorkstationAccess := flagSet.Bool("skip-workstation-access", false, "Do not allow ingress from this workstation's IP to the reserved machine")
	gitRef := flagSet.String("git-ref", "", "Force git ref of the reservation plan, useful when testing plan changes")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}

	quiet := *printOnlyRequestID
	echo := func(msg string, args ...interface{}) {
		if quiet {
			return
		}
		fmt.Fprintf(stdout, msg+"\n", args...)
	}

	if err := reserve.CheckAgent(); err != nil {
		return err
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	keys, err := options.ReadGlobPaths(*sshPublicKeys)
	if err != nil {
		return err
	}
	if keys == "" {
		return cerrors.Newf("no public SSH keys found, cannot continue")
	}

	client := newClient(cfg)

	in := request.ReserveInput{
		Arch:                      *arch,
		Compose:                   *compose,
		Pool:                      *pool,
		Hardware:                  *hardware,
		Tags:                      *tags,
		Kickstart:                 *kickstart,
		RedHatBrewBuilds:          *brewBuilds,
		FedoraKojiBuilds:          *kojiBuilds,
		FedoraCoprBuilds:          *coprBuilds,
		Repositories:              *repositories,
		RepositoryFiles:           *repositoryFiles,
		PostInstallScript:         *postInstallScript,
		WorkerImage:               *workerImage,
		SecurityGroupRulesIngress: *sgIngress,
		SecurityGroupRulesEgress:  *sgEgress,
		SkipWorkstationAccess:     *skipWorkstationAccess,
		GitRef:                    *gitRef,
		Duration:                  *duration,
		AuthorizedKeys:            keys,
	}

	if !in.SkipWorkstationAccess {
		ip, err := client.PublicIP(ctx)
		if err != nil {
			return cerrors.Newf("could not detect the public IP of this workstation: %v", err)
		}
		in.WorkstationIP = ip
	}

	if in.Pool != "" {
		echo("💻 %s on %s via pool %s", in.Compose, in.Arch, in.Pool)
	} else {
		echo("💻 %s on %s", in.Compose, in.Arch)
	}
	echo("🕗 Reserved for %d minutes", in.Duration)

	doc, err := request.NewBuilder(cfg).BuildReserve(in)
	if err != nil {
		return err
	}

	timeout := config.DefaultPipelineTimeout
	if in.Duration > timeout {
		timeout = in.Duration
	}
	echo("⏳ Maximum reservation time is %d minutes", timeout)

	if *dryRun {
		if quiet {
			echo("🔍 Dry run, print-only-request-id is set, nothing will be shown")
			return nil
		}
		fmt.Fprintln(stdout, "🔍 Dry run, showing POST json only")
		return printJSON(stdout, doc)
	}

	submitted, err := client.Submit(ctx, doc)
	if err != nil {
		return err
	}

	if quiet {
		fmt.Fprintln(stdout, submitted.ID)
	} else {
		echo("🔎 request %s", submitted.ID)
	}

	waiter := reserve.NewWaiter(client, stdout, reserve.Config{
		IssueTracker: cfg.IssueTracker,
		StatusPage:   cfg.StatusPage,
		Quiet:        quiet,
	})
	guest, err := waiter.Wait(ctx, submitted.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "🌎 ssh root@%s\n", guest)
	if *autoconnect {
		return reserve.Connect(ctx, guest)
	}
	return nil
}
