// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package results turns xunit documents published by Testing Farm into
// per-architecture plan summaries.
package results

import (
	"context"
	"encoding/xml"
	"sort"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/logging"
)

// ArchNotAvailable marks plans whose testing environment could not be
// determined, typically early infrastructure failures hitting all arches.
const ArchNotAvailable = "N/A"

const emptyXUnit = "<testsuites></testsuites>"

var log = logging.GetLogger("results")

// Plans maps an architecture to the plan names that ended in a given
// result on it.
type Plans map[string][]string

// Has reports whether the plan is recorded for the architecture.
func (p Plans) Has(arch, plan string) bool {
	for _, candidate := range p[arch] {
		if candidate == plan {
			return true
		}
	}
	return false
}

// Names returns the plan names of the first architecture bucket. The
// service runs the same plan set on every architecture, so any bucket
// enumerates all plans of that result.
func (p Plans) Names() []string {
	for _, names := range p {
		return names
	}
	return nil
}

func (p Plans) add(arch, plan string) {
	p[arch] = append(p[arch], plan)
}

// Buckets holds the parsed plans grouped by result.
type Buckets struct {
	Passed  Plans
	Failed  Plans
	Skipped Plans
	Errored Plans
}

func newBuckets() Buckets {
	return Buckets{
		Passed:  Plans{},
		Failed:  Plans{},
		Skipped: Plans{},
		Errored: Plans{},
	}
}

// AllPlans returns the sorted union of plan names across all buckets.
func (b Buckets) AllPlans() []string {
	seen := map[string]struct{}{}
	for _, plans := range []Plans{b.Errored, b.Failed, b.Skipped, b.Passed} {
		for _, names := range plans {
			for _, name := range names {
				seen[name] = struct{}{}
			}
		}
	}
	all := make([]string, 0, len(seen))
	for name := range seen {
		all = append(all, name)
	}
	sort.Strings(all)
	return all
}

type xunitDocument struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []xunitSuite `xml:"testsuite"`
}

type xunitSuite struct {
	Name         string             `xml:"name,attr"`
	Result       string             `xml:"result,attr"`
	Environments []xunitEnvironment `xml:"testing-environment"`
}

type xunitEnvironment struct {
	Name       string          `xml:"name,attr"`
	Properties []xunitProperty `xml:"property"`
}

type xunitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (s xunitSuite) requestedArch() (string, bool) {
	for _, env := range s.Environments {
		if env.Name != "requested" {
			continue
		}
		for _, property := range env.Properties {
			if property.Name == "arch" {
				return property.Value, true
			}
		}
		return "", false
	}
	return ArchNotAvailable, true
}

// ParseXUnit groups the testsuites of an xunit document into buckets by
// result and architecture. Plans without a requested testing environment
// land under ArchNotAvailable; plans whose environment lacks the arch
// property are skipped. A malformed document yields empty buckets.
func ParseXUnit(xunit string) Buckets {
	buckets, err := parseXUnit(xunit)
	if err != nil {
		log.Warningf("could not parse xunit results: %v", err)
		return newBuckets()
	}
	return buckets
}

func parseXUnit(xunit string) (Buckets, error) {
	var document xunitDocument
	if err := xml.Unmarshal([]byte(xunit), &document); err != nil {
		return Buckets{}, err
	}

	buckets := newBuckets()
	for _, suite := range document.Suites {
		arch, ok := suite.requestedArch()
		if !ok {
			log.Warningf("could not find arch property for plan %q results, skipping", suite.Name)
			continue
		}
		if arch == ArchNotAvailable {
			log.Warningf("could not find env specifications for %q, assuming fail for all arches", suite.Name)
		}

		switch suite.Result {
		case "passed":
			buckets.Passed.add(arch, suite.Name)
		case "failed":
			buckets.Failed.add(arch, suite.Name)
		case "skipped":
			buckets.Skipped.add(arch, suite.Name)
		default:
			buckets.Errored.add(arch, suite.Name)
		}
	}

	// Plans that never reached an environment are reported once per
	// requested arch, drop the duplicates.
	if errored, ok := buckets.Errored[ArchNotAvailable]; ok {
		buckets.Errored[ArchNotAvailable] = dedup(errored)
	}
	return buckets, nil
}

func dedup(names []string) []string {
	seen := map[string]struct{}{}
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	sort.Strings(unique)
	return unique
}

// Summary is the json document the watch and run verbs emit for a
// finished request.
type Summary struct {
	ID              string   `json:"id" yaml:"id"`
	State           string   `json:"state" yaml:"state"`
	Artifacts       string   `json:"artifacts" yaml:"artifacts"`
	Overall         string   `json:"overall" yaml:"overall"`
	ArchesRequested []string `json:"arches_requested" yaml:"arches_requested"`
	ErroredPlans    Plans    `json:"errored_plans" yaml:"errored_plans"`
	FailedPlans     Plans    `json:"failed_plans" yaml:"failed_plans"`
	SkippedPlans    Plans    `json:"skipped_plans" yaml:"skipped_plans"`
	PassedPlans     Plans    `json:"passed_plans" yaml:"passed_plans"`
}

// Buckets regroups the summary plans, for rendering.
func (s *Summary) Buckets() Buckets {
	return Buckets{
		Passed:  s.PassedPlans,
		Failed:  s.FailedPlans,
		Skipped: s.SkippedPlans,
		Errored: s.ErroredPlans,
	}
}

// ArtifactFetcher retrieves text documents published under a request's
// artifacts URL.
type ArtifactFetcher interface {
	FetchArtifactRaced(ctx context.Context, url string) (string, error)
}

// Summarize builds the result summary for a request. The xunit embedded
// in the status document can be null, for timed out requests notably, so
// once the request left the queued/running states the published
// results.xml is fetched and preferred as source of truth.
func Summarize(ctx context.Context, fetcher ArtifactFetcher, status *api.RequestStatus) *Summary {
	xunit := emptyXUnit
	if status.Result != nil && status.Result.XUnit != "" {
		xunit = status.Result.XUnit
	}

	artifacts := status.ArtifactsURL()
	if artifacts != "" && status.State != api.StateQueued && status.State != api.StateRunning {
		fetched, err := fetcher.FetchArtifactRaced(ctx, artifacts+"/results.xml")
		if err != nil {
			log.Warning("could not get xunit results")
		} else if _, parseErr := parseXUnit(fetched); parseErr == nil {
			xunit = fetched
		}
	}

	buckets := ParseXUnit(xunit)

	arches := make([]string, 0, len(status.EnvironmentsRequested))
	for _, env := range status.EnvironmentsRequested {
		arches = append(arches, env.Arch)
	}

	return &Summary{
		ID:              status.ID,
		State:           status.State,
		Artifacts:       artifacts,
		Overall:         status.Overall(),
		ArchesRequested: arches,
		ErroredPlans:    buckets.Errored,
		FailedPlans:     buckets.Failed,
		SkippedPlans:    buckets.Skipped,
		PassedPlans:     buckets.Passed,
	}
}
