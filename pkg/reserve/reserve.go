// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package reserve drives the reservation flow: waiting for a reserved
// guest to come up and connecting to it over SSH.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/agent"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/logging"
	"github.com/facebookincubator/farmcli/pkg/transport"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
)

// Reservation progress states derived from the pipeline log.
const (
	StateCreating     = "creating reservation"
	StatePreparing    = "preparing environment"
	StateProvisioning = "provisioning resources"
	StateReady        = "ready"
)

// ErrReservationFailed is reported when the reservation task itself
// errored out.
var ErrReservationFailed = errors.New("failed to run reservation task")

var guestReadyPattern = regexp.MustCompile(`Guest is ready.*root@([\w\d\.-]+)`)

// Progress is the reservation state scraped from the pipeline log.
type Progress struct {
	State string
	// Guest is the address to ssh into, set once State is StateReady.
	Guest string
}

// ClassifyLog derives the reservation progress from the pipeline log.
// The guest is ready once its address appears and the reservation task
// started executing.
func ClassifyLog(pipelineLog string) (Progress, error) {
	if strings.Contains(pipelineLog, "Result of testing: ERROR") {
		return Progress{}, ErrReservationFailed
	}

	progress := Progress{State: StateCreating}
	if strings.Contains(pipelineLog, "[pre-artifact-installation]") {
		progress.State = StatePreparing
	} else if strings.Contains(pipelineLog, "Guest is being provisioned") {
		progress.State = StateProvisioning
	}

	match := guestReadyPattern.FindStringSubmatch(pipelineLog)
	if match != nil && strings.Contains(pipelineLog, "execute task #1") {
		progress.State = StateReady
		progress.Guest = match[1]
	}
	return progress, nil
}

// GuestAddresses extracts every reserved guest address from the
// pipeline log. Multi-arch reservations bring up one guest per arch.
func GuestAddresses(pipelineLog string) []string {
	matches := guestReadyPattern.FindAllStringSubmatch(pipelineLog, -1)
	guests := make([]string, 0, len(matches))
	for _, match := range matches {
		guests = append(guests, match[1])
	}
	return guests
}

// CheckAgent verifies a usable ssh-agent with at least one identity.
// Reservations authorize the agent's public keys on the guest, so a
// missing agent guarantees a locked-out reservation.
func CheckAgent() error {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return cerrors.Newf("no 'ssh-agent' seems to be running, it is required for reservations to work, cannot continue.\n" +
			"SSH_AUTH_SOCK is not defined, make sure the ssh-agent is running by executing 'eval `ssh-agent`'")
	}

	info, err := os.Stat(socket)
	if err != nil {
		return cerrors.Newf("SSH_AUTH_SOCK socket does not exist, make sure the ssh-agent is running by executing 'eval `ssh-agent`'")
	}
	if info.Mode()&os.ModeSocket == 0 {
		return cerrors.Newf("SSH_AUTH_SOCK is not a socket, make sure the ssh-agent is running by executing 'eval `ssh-agent`'")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return cerrors.Newf("cannot connect to the ssh-agent: %v", err)
	}
	defer conn.Close()

	identities, err := agent.NewClient(conn).List()
	if err != nil || len(identities) == 0 {
		return cerrors.Newf("no SSH identities found in the SSH agent. Please run `ssh-add`")
	}
	return nil
}

// Client is the transport surface the reservation flow needs.
type Client interface {
	Get(ctx context.Context, id string, opts transport.GetOptions) (*api.RequestStatus, error)
	FetchArtifact(ctx context.Context, url string) (string, error)
}

// Config tunes the reservation wait loop.
type Config struct {
	IssueTracker string
	StatusPage   string
	Tick         time.Duration
	// Quiet suppresses progress output, used with --print-only-request-id.
	Quiet bool
}

// Waiter polls a reservation request until its guest is up.
type Waiter struct {
	client Client
	out    io.Writer
	cfg    Config
	log    *logrus.Entry
}

// NewWaiter returns a Waiter printing progress to out.
func NewWaiter(client Client, out io.Writer, cfg Config) *Waiter {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	return &Waiter{
		client: client,
		out:    out,
		cfg:    cfg,
		log:    logging.GetLogger("reserve"),
	}
}

func (w *Waiter) echo(msg string, args ...interface{}) {
	if w.cfg.Quiet {
		return
	}
	fmt.Fprintf(w.out, msg+"\n", args...)
}

// Wait blocks until the reserved guest is ready and returns its
// address. The request must already be submitted.
func (w *Waiter) Wait(ctx context.Context, id string) (string, error) {
	status, err := w.waitRunning(ctx, id)
	if err != nil {
		return "", err
	}
	return w.waitGuest(ctx, status.ArtifactsURL())
}

// waitRunning polls the request state until the pipeline starts. A
// request finishing before the reservation task ran means the
// reservation never came up.
func (w *Waiter) waitRunning(ctx context.Context, id string) (*api.RequestStatus, error) {
	var currentState string
	for {
		status, err := w.client.Get(ctx, id, transport.GetOptions{})
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
				return nil, cerrors.Newf("reservation failed, check API request or contact Testing Farm")
			case api.StateRunning:
				return status, nil
			}
			w.echo("⏳ reservation job is %s", currentState)
		}

		if err := sleep(ctx, w.cfg.Tick); err != nil {
			return nil, err
		}
	}
}

// waitGuest scrapes the pipeline log until the guest address shows up.
func (w *Waiter) waitGuest(ctx context.Context, artifactsURL string) (string, error) {
	currentState := StateCreating
	w.echo("⏳ %s", currentState)

	for {
		pipelineLog, err := w.client.FetchArtifact(ctx, artifactsURL+"/pipeline.log")
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			return "", w.artifactsError(err)
		}
		if pipelineLog == "" {
			return "", cerrors.Newf("pipeline log was empty. Please file an issue to %s", w.cfg.IssueTracker)
		}

		progress, err := ClassifyLog(pipelineLog)
		if err != nil {
			return "", cerrors.Newf(
				"failed to run reservation task.\nCheck status page %s for outages.\nFile an issue to %s if needed",
				w.cfg.StatusPage, w.cfg.IssueTracker)
		}

		if progress.State == StateReady {
			return progress.Guest, nil
		}
		if progress.State != currentState {
			currentState = progress.State
			w.echo("⏳ %s", currentState)
		}

		if err := sleep(ctx, w.cfg.Tick); err != nil {
			return "", err
		}
	}
}

// Handover announces the reserved guests of a request detected mid-watch
// and optionally connects to a single guest.
func (w *Waiter) Handover(ctx context.Context, status *api.RequestStatus, autoconnect bool) error {
	pipelineLog, err := w.client.FetchArtifact(ctx, status.ArtifactsURL()+"/pipeline.log")
	if err != nil {
		return w.artifactsError(err)
	}
	if pipelineLog == "" {
		return cerrors.Newf("pipeline log was empty. Please file an issue to %s", w.cfg.IssueTracker)
	}

	guests := GuestAddresses(pipelineLog)
	if len(guests) == 0 {
		return cerrors.Newf("no guests found to connect to. This is unexpected, please file an issue to %s", w.cfg.IssueTracker)
	}

	for _, guest := range guests {
		fmt.Fprintf(w.out, "🌎 ssh root@%s\n", guest)
	}
	if len(guests) > 1 || !autoconnect {
		return nil
	}
	return Connect(ctx, guests[0])
}

// artifactsError distinguishes certificate problems from plain
// connectivity, the remediation differs.
func (w *Waiter) artifactsError(err error) error {
	if thttp.IsSSLError(err) {
		return cerrors.Newf(
			"failed to access Testing Farm artifacts because of SSL validation error.\n"+
				"If you use Red Hat Ranch please make sure you have Red Hat CA certificates installed.\n"+
				"Otherwise file an issue to %s", w.cfg.IssueTracker)
	}
	return cerrors.Newf(
		"failed to access Testing Farm artifacts.\n"+
			"If you use Red Hat Ranch please make sure you are connected to the VPN.\n"+
			"Otherwise file an issue to %s", w.cfg.IssueTracker)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
