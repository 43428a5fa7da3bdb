// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
)

func composesVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("composes")

	ranch := flagSet.String("ranch", "", "Ranch to list composes for, defaults to the ranch of your token")
	search := flagSet.StringP("search", "s", "", "Regular expression to filter composes by name")
	showRegex := flagSet.Bool("show-regex", false, "Show also regex acceptance rules, not only exact compose names")
	validate := flagSet.StringArrayP("validate", "v", nil, "Validate the given compose name(s) against the accepted list")
	format := flagSet.String("format", formatText, "Output format: text, table, json or yaml")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if err := validOutputFormat(*format); err != nil {
		return err
	}

	if cfg.APIToken == "" && *ranch == "" {
		return cerrors.Newf("No API token found and no ranch specified. Cannot determine ranch.")
	}

	client := newClient(cfg)

	targetRanch := *ranch
	if targetRanch == "" {
		identity, err := client.Whoami(ctx)
		if err != nil {
			return err
		}
		targetRanch = identity.Token.Ranch
	}

	composes, err := client.Composes(ctx, targetRanch)
	if err != nil {
		return err
	}
	if len(composes) == 0 {
		return cerrors.Newf("No composes found in Testing Farm. Please file an issue to %s", cfg.IssueTracker)
	}

	if *search != "" {
		pattern, err := regexp.Compile(*search)
		if err != nil {
			return cerrors.Newf("invalid search pattern '%s': %v", *search, err)
		}
		var matched []api.Compose
		for _, compose := range composes {
			if pattern.FindStringIndex(compose.Name) != nil {
				matched = append(matched, compose)
			}
		}
		if len(matched) == 0 {
			return cerrors.Newf("No composes found for '%s'", *search)
		}
		composes = matched
	}

	if len(*validate) > 0 {
		for _, value := range *validate {
			if composeAccepted(composes, value) {
				fmt.Fprintf(stdout, "✅ Compose '%s' is valid\n", value)
			} else {
				fmt.Fprintf(stdout, "❌ Compose '%s' is invalid\n", value)
			}
		}
		return nil
	}

	if !*showRegex {
		var exact []api.Compose
		for _, compose := range composes {
			if compose.Type != api.ComposeTypeRegex {
				exact = append(exact, compose)
			}
		}
		composes = exact
	}

	sort.Slice(composes, func(i, j int) bool {
		return composes[i].Name < composes[j].Name
	})

	switch *format {
	case formatJSON:
		return printJSON(stdout, composes)
	case formatYAML:
		document, err := yaml.Marshal(composes)
		if err != nil {
			return err
		}
		_, err = stdout.Write(document)
		return err
	case formatTable:
		table := tablewriter.NewWriter(stdout)
		table.SetAutoWrapText(false)
		if *showRegex {
			table.SetHeader([]string{"compose", "type"})
			for _, compose := range composes {
				table.Append([]string{compose.Name, compose.Type})
			}
		} else {
			table.SetHeader([]string{"compose"})
			for _, compose := range composes {
				table.Append([]string{compose.Name})
			}
		}
		table.Render()
		return nil
	}

	for _, compose := range composes {
		if *showRegex && compose.Type == api.ComposeTypeRegex {
			fmt.Fprintf(stdout, "%s (regex)\n", compose.Name)
			continue
		}
		fmt.Fprintln(stdout, compose.Name)
	}
	return nil
}

// composeAccepted reports whether value matches the accepted compose
// list, either as an exact compose name or via a regex acceptance rule.
func composeAccepted(composes []api.Compose, value string) bool {
	for _, compose := range composes {
		switch compose.Type {
		case api.ComposeTypeRegex:
			pattern, err := regexp.Compile(compose.Name)
			if err != nil {
				continue
			}
			if match := pattern.FindStringIndex(value); match != nil && match[0] == 0 {
				return true
			}
		default:
			if compose.Name == value {
				return true
			}
		}
	}
	return false
}
