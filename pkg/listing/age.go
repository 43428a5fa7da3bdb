// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package listing fetches and renders collections of Testing Farm
// requests.
package listing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

// createdFormat is the timestamp format of the created_after and
// created_before query parameters.
const createdFormat = "2006-01-02T15:04:05"

var ageUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Age is a request age expressed as VALUE+UNIT, e.g. 12h or 3d.
type Age struct {
	Value int
	Unit  string
}

// ParseAge parses a VALUE[UNIT] age string.
func ParseAge(raw string) (Age, error) {
	if len(raw) < 2 {
		return Age{}, cerrors.Newf("invalid age %q, expected [VALUE][UNIT] like 1d", raw)
	}

	value, unit := raw[:len(raw)-1], raw[len(raw)-1:]
	if _, ok := ageUnits[unit]; !ok {
		return Age{}, cerrors.Newf("age must end with %s", AvailableAgeUnits())
	}

	number, err := strconv.Atoi(value)
	if err != nil || number < 0 {
		return Age{}, cerrors.Newf("invalid age value %q", value)
	}
	return Age{Value: number, Unit: unit}, nil
}

// AvailableAgeUnits names the accepted age units, for help texts.
func AvailableAgeUnits() string {
	return "s (seconds), m (minutes), h (hours) or d (days)"
}

// BirthDate converts the age to the absolute UTC time it refers to.
func (a Age) BirthDate(now time.Time) time.Time {
	return now.UTC().Add(-time.Duration(a.Value) * ageUnits[a.Unit])
}

// QueryValue formats the age for the created_after/created_before
// filter parameters.
func (a Age) QueryValue(now time.Time) string {
	return a.BirthDate(now).Format(createdFormat)
}

func (a Age) String() string {
	return fmt.Sprintf("%d%s", a.Value, a.Unit)
}
