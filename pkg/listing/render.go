// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/reserve"
)

const (
	artifactsUnavailable = "<unavailable>"
	notAvailable         = "N/A"

	// Composes longer than this are hidden in the table cells to keep
	// the layout readable.
	maxTableComposeLength       = 20
	maxReservationComposeLength = 30
)

// RenderOptions tune the table and text renderers.
type RenderOptions struct {
	// ShowTime prints absolute timestamps instead of relative ages.
	ShowTime bool
	// ShowUTC keeps timestamps in UTC instead of the local timezone.
	ShowUTC bool
	// ShowTokenID adds the token id column.
	ShowTokenID bool
	// Brief drops the detailed blocks from the text renderer.
	Brief bool
}

// createdLayouts covers the timestamp flavors the API has been seen
// returning. All of them are UTC without an explicit zone.
var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	createdFormat,
}

func parseCreated(value string) (time.Time, bool) {
	for _, layout := range createdLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// startedTime derives the start time as created + queued_time.
func startedTime(request *api.RequestStatus) (time.Time, bool) {
	created, ok := parseCreated(request.Created)
	if !ok || request.QueuedTime == nil {
		return time.Time{}, false
	}
	return created.Add(time.Duration(*request.QueuedTime * float64(time.Second))), true
}

// finishedTime derives the finish time as created + queued_time +
// run_time, defined only for terminal states.
func finishedTime(request *api.RequestStatus) (time.Time, bool) {
	if !request.Finished() {
		return time.Time{}, false
	}
	created, ok := parseCreated(request.Created)
	if !ok || request.QueuedTime == nil || request.RunTime == nil {
		return time.Time{}, false
	}
	elapsed := *request.QueuedTime + *request.RunTime
	return created.Add(time.Duration(elapsed * float64(time.Second))), true
}

func artifactsURL(request *api.RequestStatus) string {
	if url := request.ArtifactsURL(); url != "" {
		return url
	}
	return artifactsUnavailable
}

// ranch deduces the ranch from the artifacts URL hostname.
func ranch(artifacts string) string {
	switch {
	case strings.Contains(artifacts, "unavailable"):
		return "<unknown>"
	case strings.Contains(artifacts, "redhat.com"):
		return "redhat"
	case strings.Contains(artifacts, "testing-farm.io"):
		return "public"
	}
	return "<unrecognized ranch>"
}

// stateIcon folds state and overall result into a single glyph.
func stateIcon(request *api.RequestStatus) string {
	switch request.State {
	case api.StateNew:
		return "🆕"
	case api.StateQueued:
		return "⌛️"
	case api.StateRunning:
		return "🚀"
	case api.StateCanceled, api.StateCancelRequested:
		return "🚫"
	case api.StateError:
		return "🔥"
	case api.StateComplete:
		switch request.Overall() {
		case api.ResultPassed:
			return "✅"
		case api.ResultFailed:
			return "❌"
		case api.ResultError:
			return "⛔️"
		case api.ResultSkipped:
			return "⤼"
		}
	}
	return "<unknown>"
}

var gitShorteners = []struct {
	prefix string
	label  string
}{
	{"https://github.com/", "github"},
	{"https://*****@gitlab.com/redhat/", "gitlab-rh"},
	{"https://*****@gitlab.com/", "gitlab"},
	{"https://gitlab.com/", "gitlab"},
	{"https://gitlab.cee.redhat.com/", "gitlab-cee"},
	{"https://*****@gitlab.cee.redhat.com/", "gitlab-cee"},
	{"https://pkgs.devel.redhat.com/", "rhel"},
	{"https://src.fedoraproject.org/", "fedora"},
}

// shortenGitURL splits a known forge URL into a short label and the
// repository path. Unknown forges keep the full URL with no label.
func shortenGitURL(url string) (string, string) {
	for _, shortener := range gitShorteners {
		if strings.HasPrefix(url, shortener.prefix) {
			return shortener.label, strings.TrimPrefix(url, shortener.prefix)
		}
	}
	return "", url
}

// envSummaries renders the requested environments as "arch (compose)"
// lines, deduplicated while preserving order.
func envSummaries(environments []*api.Environment, maxCompose int) []string {
	var summaries []string
	seen := map[string]bool{}

	for _, environment := range environments {
		compose := "container"
		if environment.HasCompose() {
			compose = environment.OS.Compose
			if len(compose) > maxCompose {
				compose = "<too-long>"
			}
		}
		summary := fmt.Sprintf("%7s (%s)", environment.Arch, compose)
		if seen[summary] {
			continue
		}
		seen[summary] = true
		summaries = append(summaries, summary)
	}
	return summaries
}

func shortRef(ref string) string {
	if len(ref) == 40 {
		return ref[:8]
	}
	return ref
}

// timeCell formats a timestamp for the table, relative by default.
func timeCell(at time.Time, ok bool, opts RenderOptions) string {
	if !ok {
		return notAvailable
	}
	if !opts.ShowTime {
		return humanize.Time(at)
	}
	return absoluteTime(at, opts.ShowUTC)
}

func absoluteTime(at time.Time, utc bool) string {
	if utc {
		return at.UTC().Format("2006-01-02 15:04:05") + " UTC"
	}
	local := at.Local()
	return local.Format("2006-01-02 15:04:05 MST")
}

// RenderTable writes the requests as a table, newest first.
func RenderTable(w io.Writer, requests []*api.RequestStatus, opts RenderOptions) {
	sortByCreated(requests)

	headers := []string{"artifacts", "state", "ranch", "type", "env", "git", "created", "started", "finished"}
	if opts.ShowTokenID {
		headers = append(headers, "token id")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)

	for _, request := range requests {
		artifacts := artifactsURL(request)

		idCell := artifactsUnavailable
		if artifacts != artifactsUnavailable {
			idCell = request.ID
		}

		requestType := "sti"
		if request.Test.Type() == "fmf" {
			requestType = "tmt"
		}

		label, path := shortenGitURL(request.Test.URL())
		git := fmt.Sprintf("%s (%s)", path, shortRef(request.Test.Ref()))
		if label != "" {
			git = fmt.Sprintf("%10s %s", label, git)
		}

		created, createdOK := parseCreated(request.Created)
		started, startedOK := startedTime(request)
		finished, finishedOK := finishedTime(request)

		row := []string{
			idCell,
			stateIcon(request),
			ranch(artifacts),
			requestType,
			strings.Join(envSummaries(request.EnvironmentsRequested, maxTableComposeLength), "\n"),
			git,
			timeCell(created, createdOK, opts),
			timeCell(started, startedOK, opts),
			timeCell(finished, finishedOK, opts),
		}
		if opts.ShowTokenID {
			tokenID := request.TokenID
			if tokenID == "" {
				tokenID = notAvailable
			}
			row = append(row, tokenID)
		}
		table.Append(row)
	}
	table.Render()
}

// RenderReservationTable writes the active reservation requests with the
// guest address scraped from the pipeline log.
func RenderReservationTable(ctx context.Context, w io.Writer, client Client, requests []*api.RequestStatus, opts RenderOptions) error {
	var reservations []*api.RequestStatus
	for _, request := range requests {
		switch request.State {
		case api.StateNew, api.StateQueued, api.StateRunning:
		default:
			continue
		}
		if request.IsReservation() {
			reservations = append(reservations, request)
		}
	}

	if len(reservations) == 0 {
		fmt.Fprintln(w, "No active reservations found")
		return nil
	}

	sortByCreated(reservations)

	guests := make([]string, len(reservations))
	_ = forEachLimit(len(reservations), func(index int) error {
		guests[index] = guestAddress(ctx, client, reservations[index])
		return nil
	})

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"state", "id", "ranch", "env", "user@ip", "started"})
	table.SetAutoWrapText(false)

	for index, request := range reservations {
		artifacts := artifactsURL(request)
		started := notAvailable
		if created, ok := parseCreated(request.Created); ok {
			started = absoluteTime(created, opts.ShowUTC)
		}

		table.Append([]string{
			request.State,
			request.ID,
			ranch(artifacts),
			strings.Join(envSummaries(request.EnvironmentsRequested, maxReservationComposeLength), "\n"),
			guests[index],
			started,
		})
	}
	table.Render()
	return nil
}

// guestAddress scrapes the guest login from the pipeline log. Scrape
// failures degrade to a placeholder, the guest may simply not exist yet.
func guestAddress(ctx context.Context, client Client, request *api.RequestStatus) string {
	artifacts := request.ArtifactsURL()
	if artifacts == "" {
		return "<not-yet-available>"
	}

	pipelineLog, err := client.FetchArtifact(ctx, artifacts+"/pipeline.log")
	if err != nil {
		return "<not-yet-available>"
	}
	if guests := reserve.GuestAddresses(pipelineLog); len(guests) > 0 {
		return "root@" + guests[0]
	}
	return "<not-yet-available>"
}

// formatSeconds renders a duration in seconds as "Xm Y.YYs".
func formatSeconds(seconds *float64) string {
	if seconds == nil {
		return notAvailable
	}
	minutes := int(*seconds) / 60
	return fmt.Sprintf("%dm %.2fs", minutes, *seconds-float64(minutes*60))
}

// RenderText writes the requests as labeled key/value blocks.
func RenderText(w io.Writer, requests []*api.RequestStatus, opts RenderOptions) {
	for index, request := range requests {
		if request == nil {
			continue
		}

		artifacts := artifactsURL(request)
		printField(w, 0, "Artifacts", artifacts)
		printField(w, 0, "Ranch", ranch(artifacts))
		printField(w, 0, "State", request.State)

		if opts.ShowTokenID {
			tokenID := request.TokenID
			if tokenID == "" {
				tokenID = notAvailable
			}
			printField(w, 0, "Token ID", tokenID)
		}

		if request.Result != nil {
			printField(w, 0, "Result", request.Result.Overall)
			if request.Result.Summary != "" {
				printField(w, 0, "Summary", request.Result.Summary)
			}
		}

		created, createdOK := parseCreated(request.Created)
		if createdOK {
			printField(w, 0, "Created", absoluteTime(created, opts.ShowUTC))
		} else {
			printField(w, 0, "Created", notAvailable)
		}
		if started, ok := startedTime(request); ok {
			printField(w, 0, "Started", absoluteTime(started, opts.ShowUTC))
		}
		if finished, ok := finishedTime(request); ok {
			printField(w, 0, "Finished", absoluteTime(finished, opts.ShowUTC))
		}

		if !opts.Brief {
			printField(w, 0, "Queued Time", formatSeconds(request.QueuedTime))
			printField(w, 0, "Run Time", formatSeconds(request.RunTime))

			printDocument(w, "Test", request.Test)
			if len(request.EnvironmentsRequested) > 0 {
				printField(w, 0, "Environments", "")
				for number, environment := range request.EnvironmentsRequested {
					printField(w, 1, fmt.Sprintf("Environment %d", number+1), "")
					printNested(w, 2, toDocument(environment))
				}
			}
			if request.Settings != nil {
				printDocument(w, "Settings", request.Settings)
			}
			if request.User != nil {
				printDocument(w, "User", request.User)
			}
		}

		if index < len(requests)-1 {
			fmt.Fprintln(w, strings.Repeat("─", 15))
		} else {
			fmt.Fprintln(w)
		}
	}
}

func printField(w io.Writer, indent int, key, value string) {
	prefix := strings.Repeat("  ", indent)
	if value == "" {
		fmt.Fprintf(w, "%s%s\n", prefix, key)
		return
	}
	fmt.Fprintf(w, "%s%-12s %s\n", prefix, key, value)
}

// toDocument converts an API struct to a generic map through its JSON
// form, so the text renderer can walk it without per-type code.
func toDocument(value interface{}) map[string]interface{} {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	document := map[string]interface{}{}
	if err := json.Unmarshal(encoded, &document); err != nil {
		return nil
	}
	return document
}

func printDocument(w io.Writer, key string, value interface{}) {
	document := toDocument(value)
	if !hasContent(document) {
		return
	}
	printField(w, 0, key, "")
	printNested(w, 1, document)
}

func hasContent(document map[string]interface{}) bool {
	for _, value := range document {
		switch typed := value.(type) {
		case nil:
		case map[string]interface{}:
			if hasContent(typed) {
				return true
			}
		case []interface{}:
			if len(typed) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// printNested walks a decoded document, skipping empty values. Keys are
// sorted to keep the output stable.
func printNested(w io.Writer, indent int, document map[string]interface{}) {
	keys := make([]string, 0, len(document))
	for key := range document {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch value := document[key].(type) {
		case nil:
		case map[string]interface{}:
			if len(value) == 0 {
				continue
			}
			printField(w, indent, key, "")
			printNested(w, indent+1, value)
		case []interface{}:
			if len(value) == 0 {
				continue
			}
			printField(w, indent, key, fmt.Sprintf("%v", value))
		default:
			printField(w, indent, key, fmt.Sprintf("%v", value))
		}
	}
}

// RenderJSON writes the requests as an indented JSON array.
func RenderJSON(w io.Writer, requests []*api.RequestStatus) error {
	if requests == nil {
		requests = []*api.RequestStatus{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(requests)
}

// RenderYAML writes the requests as a YAML document.
func RenderYAML(w io.Writer, requests []*api.RequestStatus) error {
	if requests == nil {
		requests = []*api.RequestStatus{}
	}
	encoded, err := yaml.Marshal(requests)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}
