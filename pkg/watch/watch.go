// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package watch polls a Testing Farm request until it reaches a
// terminal state and renders progress along the way.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/logging"
	"github.com/facebookincubator/farmcli/pkg/results"
	"github.com/facebookincubator/farmcli/pkg/transport"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
)

// Format selects the watch output rendering.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatText, FormatJSON:
		return Format(value), nil
	}
	return "", cerrors.Newf("unsupported format %q, use one of: text, json", value)
}

// A reserved guest announces itself in the pipeline workdir log.
var (
	workdirPattern         = regexp.MustCompile(`href="(.*)" name="workdir"`)
	reservationTickPattern = regexp.MustCompile(`\[\+\] Reservation tick:`)
)

// Client is the transport surface the watcher needs.
type Client interface {
	Get(ctx context.Context, id string, opts transport.GetOptions) (*api.RequestStatus, error)
	FetchArtifact(ctx context.Context, url string) (string, error)
	FetchArtifactRaced(ctx context.Context, url string) (string, error)
}

// Options configure a single watch run.
type Options struct {
	ID     string
	NoWait bool
	Format Format
	// Tick is the poll interval.
	Tick time.Duration
	// Reserve short-circuits the watch once the reservation is up,
	// handing the request over to OnReserved.
	Reserve    bool
	OnReserved func(ctx context.Context, status *api.RequestStatus) error
}

// Watcher renders the lifecycle of a request.
type Watcher struct {
	client Client
	out    io.Writer
	log    *logrus.Entry
}

// New returns a Watcher printing to out.
func New(client Client, out io.Writer) *Watcher {
	return &Watcher{
		client: client,
		out:    out,
		log:    logging.GetLogger("watch"),
	}
}

// printf writes user-facing progress. Suppressed for json output so the
// emitted documents stay machine readable.
func (w *Watcher) printf(format Format, msg string, args ...interface{}) {
	if format == FormatJSON {
		return
	}
	fmt.Fprintf(w.out, msg+"\n", args...)
}

// Run polls the request until it finishes. The returned error carries
// the process exit code: tests failed maps to 1, infrastructure and
// connection problems to 2, usage mistakes to 255.
func (w *Watcher) Run(ctx context.Context, opts Options) error {
	if _, err := uuid.Parse(opts.ID); err != nil {
		return cerrors.Newf("invalid request id")
	}
	if opts.Tick <= 0 {
		opts.Tick = 3 * time.Second
	}

	w.printf(opts.Format, "🔎 request %s", opts.ID)
	if !opts.NoWait {
		w.printf(opts.Format, "💡 waiting for request to finish, use ctrl+c to skip")
	}

	var currentState string
	artifactsShown := false

	for {
		status, err := w.client.Get(ctx, opts.ID, transport.GetOptions{})
		if err != nil {
			var notFound *cerrors.NotFoundError
			if errors.As(err, &notFound) {
				return cerrors.Newf("request with given ID not found")
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			return cerrors.Infraf("connection to API failed: %v", err)
		}

		if status.State == currentState {
			if opts.Reserve {
				reserved, err := w.isReserved(ctx, status)
				if err != nil {
					return err
				}
				if reserved {
					return opts.OnReserved(ctx, status)
				}
			}
			if err := sleep(ctx, opts.Tick); err != nil {
				return err
			}
			continue
		}
		currentState = status.State

		summary := results.Summarize(ctx, w.client, status)
		if opts.Format == FormatJSON {
			encoded, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w.out, string(encoded))
		}

		switch status.State {
		case api.StateNew:
			w.printf(opts.Format, "👶 request is waiting to be queued")

		case api.StateQueued:
			w.printf(opts.Format, "👷 request is queued")

		case api.StateRunning:
			w.printf(opts.Format, "🚀 request is running")
			w.printf(opts.Format, "🚢 artifacts %s", status.ArtifactsURL())
			artifactsShown = true

		case api.StateComplete:
			if !artifactsShown {
				w.printf(opts.Format, "🚢 artifacts %s", status.ArtifactsURL())
			}
			return w.finish(status, summary, opts.Format)

		case api.StateError:
			w.printf(opts.Format, "📛 pipeline error\n%s", pipelineErrorMessage(status))
			w.renderSummary(summary, opts.Format, true)
			return cerrors.Infraf("pipeline error")

		case api.StateCancelRequested:
			w.printf(opts.Format, "🚫 cancellation of the request was requested")

		case api.StateCanceled:
			w.printf(opts.Format, "🚫 request was canceled")
			return nil
		}

		if opts.NoWait {
			w.renderSummary(summary, opts.Format, false)
			return nil
		}

		if err := sleep(ctx, opts.Tick); err != nil {
			return err
		}
	}
}

// finish maps the overall result of a complete request to an exit code.
func (w *Watcher) finish(status *api.RequestStatus, summary *results.Summary, format Format) error {
	overall := status.Overall()
	switch overall {
	case api.ResultPassed, api.ResultSkipped:
		w.printf(format, "✅ tests passed")
		w.renderSummary(summary, format, true)
		return nil
	}

	w.printf(format, "❌ tests %s", overall)
	if overall == api.ResultError && status.Result != nil {
		w.printf(format, "%s", status.Result.Summary)
	}
	w.renderSummary(summary, format, true)
	return cerrors.TestsFailedf("tests %s", overall)
}

func (w *Watcher) renderSummary(summary *results.Summary, format Format, showDetails bool) {
	if format != FormatText {
		return
	}
	results.RenderSummary(w.out, summary, showDetails)
}

// isReserved checks whether the reservation task inside the request has
// started ticking, which means the guest is ready ahead of the request
// itself completing.
func (w *Watcher) isReserved(ctx context.Context, status *api.RequestStatus) (bool, error) {
	artifacts := status.ArtifactsURL()
	if artifacts == "" {
		return false, nil
	}

	resultsXML, err := w.client.FetchArtifact(ctx, artifacts+"/results.xml")
	if err != nil {
		if thttp.IsSSLError(err) {
			return false, cerrors.Newf("artifacts unreachable via SSL, do you have RH CA certificates installed?")
		}
		w.log.Debugf("could not fetch results.xml: %v", err)
		return false, nil
	}

	workdir := workdirPattern.FindStringSubmatch(resultsXML)
	if workdir == nil {
		return false, nil
	}

	pipelineLog, err := w.client.FetchArtifact(ctx, strings.TrimRight(workdir[1], "/")+"/log.txt")
	if err != nil {
		w.log.Debugf("could not fetch pipeline log: %v", err)
		return false, nil
	}
	return reservationTickPattern.MatchString(pipelineLog), nil
}

func pipelineErrorMessage(status *api.RequestStatus) string {
	if status.Result != nil && status.Result.Summary != "" {
		return status.Result.Summary
	}
	messages := make([]string, 0, len(status.Notes))
	for _, note := range status.Notes {
		messages = append(messages, note.Message)
	}
	return strings.Join(messages, "\n")
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
