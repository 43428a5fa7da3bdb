// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package config resolves the CLI settings from TESTING_FARM_* environment
// variables, falling back to the public deployment defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the tunables that have no environment variable override.
const (
	// DefaultPipelineTimeout is the remote pipeline timeout in minutes.
	DefaultPipelineTimeout = 60 * 12
	// DefaultReservationDuration is the reservation duration in minutes.
	DefaultReservationDuration = 30
	// DefaultAPITimeout bounds a single HTTP exchange.
	DefaultAPITimeout = 10 * time.Second
	// DefaultAPIRetries is the transport-level retry budget.
	DefaultAPIRetries = 7
	// DefaultRetryBackoffBase is the first retry delay, doubled per attempt.
	DefaultRetryBackoffBase = 1 * time.Second
	// DefaultWatchTick paces the status poll loop.
	DefaultWatchTick = 3 * time.Second
)

// Settings holds every knob the commands share. A fresh value is built per
// invocation, nothing is cached across processes.
type Settings struct {
	APIURL         string
	APIToken       string
	InternalAPIURL string

	IssueTracker       string
	OnboardingDocs     string
	StatusPage         string
	PublicIPCheckerURL string

	ReservePlan string
	ReserveTest string
	ReserveURL  string
	ReserveRef  string

	TestsGitURL string
	SanityPlan  string

	WatchTick  time.Duration
	APITimeout time.Duration
	APIRetries int
}

// Load reads the settings from the environment.
func Load() *Settings {
	s := &Settings{
		APIURL:         getenv("TESTING_FARM_API_URL", "https://api.dev.testing-farm.io"),
		APIToken:       os.Getenv("TESTING_FARM_API_TOKEN"),
		InternalAPIURL: os.Getenv("TESTING_FARM_INTERNAL_API_URL"),

		IssueTracker:       "https://gitlab.com/testing-farm/general/-/issues/new",
		OnboardingDocs:     "https://docs.testing-farm.io/general/0.1/onboarding.html",
		StatusPage:         "https://status.testing-farm.io",
		PublicIPCheckerURL: getenv("TESTING_FARM_PUBLIC_IP_CHECKER_URL", "https://checkip.amazonaws.com"),

		ReservePlan: getenv("TESTING_FARM_RESERVE_PLAN", "/testing-farm/reserve"),
		ReserveTest: getenv("TESTING_FARM_RESERVE_TEST", "/testing-farm/reserve-system"),
		ReserveURL:  getenv("TESTING_FARM_RESERVE_URL", "https://gitlab.com/testing-farm/tests"),
		ReserveRef:  getenv("TESTING_FARM_RESERVE_REF", "main"),

		TestsGitURL: "https://gitlab.com/testing-farm/tests",
		SanityPlan:  "/testing-farm/sanity",

		WatchTick:  DefaultWatchTick,
		APITimeout: DefaultAPITimeout,
		APIRetries: DefaultAPIRetries,
	}

	if tick := os.Getenv("TESTING_FARM_WATCH_TICK"); tick != "" {
		if seconds, err := strconv.Atoi(tick); err == nil && seconds > 0 {
			s.WatchTick = time.Duration(seconds) * time.Second
		}
	}

	if s.InternalAPIURL == "" {
		s.InternalAPIURL = s.APIURL
	}

	return s
}

// ReserveDiscoverArgs is the tmt discover step addition that chains the
// reservation-holding test after the requested tests.
func (s *Settings) ReserveDiscoverArgs() string {
	return "--insert --how fmf --url " + s.ReserveURL + " --ref " + s.ReserveRef + " --test " + s.ReserveTest
}

func getenv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
