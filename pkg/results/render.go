// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// RenderSummary writes the overview table for a finished request and,
// when showDetails is set, the per-plan result matrix.
func RenderSummary(w io.Writer, summary *Summary, showDetails bool) {
	buckets := summary.Buckets()

	overview := tablewriter.NewWriter(w)
	overview.SetHeader([]string{
		"id", "state", "artifacts", "overall", "arches requested",
		"errored", "failed", "skipped", "passed",
	})
	overview.SetAutoWrapText(false)
	overview.Append([]string{
		summary.ID,
		summary.State,
		summary.Artifacts,
		summary.Overall,
		strings.Join(summary.ArchesRequested, ","),
		fmt.Sprintf("%d", len(buckets.Errored.Names())),
		fmt.Sprintf("%d", len(buckets.Failed.Names())),
		fmt.Sprintf("%d", len(buckets.Skipped.Names())),
		fmt.Sprintf("%d", len(buckets.Passed.Names())),
	})
	overview.Render()

	if !showDetails {
		return
	}

	details := tablewriter.NewWriter(w)
	details.SetHeader(append([]string{"plan"}, summary.ArchesRequested...))
	details.SetAutoWrapText(false)

	for _, plan := range buckets.AllPlans() {
		row := []string{plan}
		for _, arch := range summary.ArchesRequested {
			row = append(row, planResult(buckets, arch, plan))
		}
		details.Append(row)
	}
	details.Render()
}

// planResult resolves the per-arch cell. A plan can legitimately be
// absent on an arch after adjust rules pruned it, which renders empty.
func planResult(buckets Buckets, arch, plan string) string {
	switch {
	case buckets.Passed.Has(arch, plan):
		return "pass"
	case buckets.Skipped.Has(arch, plan):
		return "skip"
	case buckets.Failed.Has(arch, plan):
		return "fail"
	case buckets.Errored.Has(ArchNotAvailable, plan):
		return "error"
	}
	return ""
}
