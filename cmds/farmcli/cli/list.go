// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/listing"
	"github.com/facebookincubator/farmcli/pkg/options"
	"github.com/facebookincubator/farmcli/pkg/transport"
)

func listVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("list")

	states := flagSet.StringSlice("state", api.PipelineStates, "State of requests to show, can be specified multiple times")
	mine := flagSet.Bool("mine", true, "Show only your requests")
	all := flagSet.Bool("all", false, "Show requests of all users")
	age := flagSet.String("age", "1d", "Maximum age of the request as VALUE[UNIT], units "+listing.AvailableAgeUnits())
	minAge := flagSet.String("min-age", "", "Minimum age of the request as VALUE[UNIT]")
	format := flagSet.String("format", formatTable, "Output format: table, text, json or yaml")
	showTime := flagSet.Bool("show-time", false, "Show dates instead of human readable diffs")
	showUTC := flagSet.Bool("show-utc", false, "Show UTC time instead of the local timezone")
	showSecrets := flagSet.Bool("show-secrets", false, "Show secrets, requires --id")
	showTokenID := flagSet.Bool("show-token-id", false, "Show the token ID submitting the request, requires an admin token")
	ranch := flagSet.String("ranch", "", "Restrict listing to a specific ranch when listing all requests")
	brief := flagSet.Bool("brief", false, "Show brief text output only")
	ids := flagSet.StringArray("id", nil, "Request ID(s) to show, can contain partial UUID strings")
	tokenID := flagSet.String("token-id", "", "Show requests of a specific token ID, must be a valid UUID4")
	reserveOnly := flagSet.BoolP("reserve", "r", false, "Show active reservations")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if err := validOutputFormat(*format); err != nil {
		return err
	}

	onlyMine := *mine
	if flagSet.Changed("all") && *all {
		onlyMine = false
	}
	ownershipExplicit := flagSet.Changed("mine") || flagSet.Changed("all")

	if len(*ids) > 0 {
		if ownershipExplicit {
			return cerrors.Newf("the '--id' option conflicts with '--mine' and '--all', ownership filtering is not applicable")
		}
		if flagSet.Changed("age") {
			return cerrors.Newf("the '--id' option conflicts with '--age', age filtering is not applicable")
		}
		if flagSet.Changed("min-age") {
			return cerrors.Newf("the '--id' option conflicts with '--min-age', age filtering is not applicable")
		}
		if *reserveOnly {
			return cerrors.Newf("the '--reserve' option cannot be used with '--id'")
		}
		onlyMine = false
	}

	if *reserveOnly && flagSet.Changed("format") {
		return cerrors.Newf("the '--reserve' option conflicts with explicit '--format', reservations use a specialized table")
	}
	if *showSecrets && len(*ids) == 0 {
		return cerrors.Newf("the '--show-secrets' option can be used only with the '--id' option")
	}
	if onlyMine && *ranch != "" {
		return cerrors.Newf("the '--ranch' option conflicts with '--mine', your ranch is enforced by the token")
	}

	if *tokenID != "" {
		parsed, err := uuid.Parse(*tokenID)
		if err != nil || parsed.Version() != 4 {
			return cerrors.Newf("invalid token ID '%s', token ID must be a valid UUID4", *tokenID)
		}
		if ownershipExplicit {
			return cerrors.Newf("the '--token-id' option conflicts with '--mine' and '--all', token filtering is already specific")
		}
		onlyMine = false
	}

	if cfg.APIToken == "" && (onlyMine || *showSecrets) {
		return cerrors.Newf("no API token found, export `TESTING_FARM_API_TOKEN` environment variable")
	}

	client := newClient(cfg)

	// a bad token fails early here instead of producing a confusing
	// empty listing
	if cfg.APIToken != "" {
		if _, err := client.Whoami(ctx); err != nil {
			return err
		}
	}

	maxAge, err := listing.ParseAge(*age)
	if err != nil {
		return err
	}

	now := time.Now()
	filter := transport.ListFilter{
		CreatedAfter:  maxAge.QueryValue(now),
		TokenID:       *tokenID,
		Authenticated: onlyMine,
		Internal:      *showSecrets,
	}
	if *minAge != "" {
		minimumAge, err := listing.ParseAge(*minAge)
		if err != nil {
			return err
		}
		filter.CreatedBefore = minimumAge.QueryValue(now)
	}
	if *ranch != "" && !onlyMine && *tokenID == "" {
		filter.Ranch = *ranch
	}

	var requests []*api.RequestStatus
	if len(*ids) > 0 {
		requests, err = listing.FetchByIDs(ctx, client, *ids, transport.GetOptions{
			Authenticated: *showSecrets,
			Internal:      *showSecrets,
		})
	} else {
		requests, err = listing.FetchByStates(ctx, client, options.NormalizeMultiString(*states, ","), filter)
	}
	if err != nil {
		return err
	}

	// a single request fetched by ID defaults to the detailed text view
	if len(*ids) > 0 && len(requests) == 1 && !flagSet.Changed("format") {
		*format = formatText
	}

	if *showSecrets && *format != formatText {
		return cerrors.Newf("the '--show-secrets' option only works with text output format")
	}
	if *brief && *format != formatText {
		return cerrors.Newf("the '--brief' option only works with text output format")
	}

	if *format == formatJSON {
		return listing.RenderJSON(stdout, requests)
	}
	if len(requests) == 0 {
		fmt.Fprintln(stdout, "No requests found")
		return nil
	}

	renderOpts := listing.RenderOptions{
		ShowTime:    *showTime,
		ShowUTC:     *showUTC,
		ShowTokenID: *showTokenID,
		Brief:       *brief,
	}

	switch *format {
	case formatYAML:
		return listing.RenderYAML(stdout, requests)
	case formatTable:
		if *reserveOnly {
			return listing.RenderReservationTable(ctx, stdout, client, requests, renderOpts)
		}
		listing.RenderTable(stdout, requests, renderOpts)
		return nil
	}

	listing.RenderText(stdout, requests, renderOpts)
	return nil
}
