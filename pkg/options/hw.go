// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package options

import (
	"strings"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

// HWConstraints converts dotted-path hardware constraints into the nested
// mapping the API expects. Sibling paths merge (`cpu.family=79` and
// `cpu.model=6` end up under one `cpu` map); `network.*` and `disk.*`
// accumulate as a list of dicts, one new element per flag occurrence that
// carries a nested key; `cpu.flag` and `compatible.distro` accumulate as
// lists. The values "true" and "false" become booleans, anything else
// stays a string.
func HWConstraints(hardware []string) (map[string]interface{}, error) {
	constraints := map[string]interface{}{}

	for _, rawConstraint := range hardware {
		path, value, found := strings.Cut(rawConstraint, "=")
		if !found || path == "" || value == "" {
			return nil, &cerrors.ConstraintFormatError{Constraint: rawConstraint}
		}

		steps := strings.Split(path, ".")
		firstKey := steps[0]

		// network and disk are lists of constraint dicts
		if firstKey == "network" || firstKey == "disk" {
			list, _ := constraints[firstKey].([]interface{})
			if list == nil {
				list = []interface{}{}
			}
			if len(steps) > 1 {
				list = append(list, nestedChain(steps[1:], value))
			}
			constraints[firstKey] = list
			continue
		}

		// cpu flags are a list too, repeated flags accumulate
		if firstKey == "cpu" && len(steps) == 2 && steps[1] == "flag" {
			cpu, _ := constraints["cpu"].(map[string]interface{})
			if cpu == nil {
				cpu = map[string]interface{}{}
				constraints["cpu"] = cpu
			}
			flags, _ := cpu["flag"].([]interface{})
			cpu["flag"] = append(flags, value)
			continue
		}

		// walk the path, initializing containers along the way; the last
		// step is a name in the final container, not another container
		container := constraints
		for len(steps) > 1 {
			step := steps[0]
			steps = steps[1:]

			next, ok := container[step].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				container[step] = next
			}
			container = next
		}

		finalKey := steps[0]
		coerced := coerceBool(value)

		// compatible.distro is a list under its final key
		if finalKey == "distro" {
			distros, _ := container[finalKey].([]interface{})
			container[finalKey] = append(distros, coerced)
			continue
		}

		container[finalKey] = coerced
	}

	return constraints, nil
}

// nestedChain builds a single-branch nested mapping from the remaining
// path steps, with the value at the leaf.
func nestedChain(steps []string, value string) map[string]interface{} {
	root := map[string]interface{}{}
	current := root
	for _, step := range steps[:len(steps)-1] {
		next := map[string]interface{}{}
		current[step] = next
		current = next
	}
	current[steps[len(steps)-1]] = value
	return root
}

func coerceBool(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
