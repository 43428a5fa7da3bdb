// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package listing

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/logging"
	"github.com/facebookincubator/farmcli/pkg/transport"
)

// fetchWorkers bounds the parallelism of the per-request fetches.
const fetchWorkers = 5

var log = logging.GetLogger("listing")

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`)

// ExtractUUID pulls a request id out of a string, accepting both bare
// ids and strings embedding one, like artifacts URLs.
func ExtractUUID(value string) (string, error) {
	if _, err := uuid.Parse(value); err == nil {
		return value, nil
	}
	if match := uuidPattern.FindString(value); match != "" {
		return match, nil
	}
	return "", cerrors.Newf("could not find a valid Testing Farm request id in '%s'", value)
}

// Client is the transport surface the listing needs.
type Client interface {
	Get(ctx context.Context, id string, opts transport.GetOptions) (*api.RequestStatus, error)
	List(ctx context.Context, filter transport.ListFilter) ([]*api.RequestStatus, error)
	FetchArtifact(ctx context.Context, url string) (string, error)
}

// forEachLimit runs fn for every index with bounded parallelism and
// returns the first error.
func forEachLimit(count int, fn func(index int) error) error {
	semaphore := make(chan struct{}, fetchWorkers)
	errs := make([]error, count)

	var wg sync.WaitGroup
	for index := 0; index < count; index++ {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			errs[index] = fn(index)
		}(index)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// FetchByIDs fetches the given requests in parallel, preserving input
// order. Unknown ids are skipped with a warning, the remote listing can
// lag behind a copy-pasted id.
func FetchByIDs(ctx context.Context, client Client, ids []string, opts transport.GetOptions) ([]*api.RequestStatus, error) {
	extracted := make([]string, len(ids))
	for index, raw := range ids {
		id, err := ExtractUUID(raw)
		if err != nil {
			return nil, err
		}
		extracted[index] = id
	}

	fetched := make([]*api.RequestStatus, len(extracted))
	err := forEachLimit(len(extracted), func(index int) error {
		status, err := client.Get(ctx, extracted[index], opts)
		if err != nil {
			var notFound *cerrors.NotFoundError
			if errors.As(err, &notFound) {
				log.Warningf("request %s not found", extracted[index])
				return nil
			}
			return err
		}
		fetched[index] = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	requests := make([]*api.RequestStatus, 0, len(fetched))
	for _, status := range fetched {
		if status != nil {
			requests = append(requests, status)
		}
	}
	return requests, nil
}

// FetchByStates runs one filtered listing per state in parallel and
// concatenates the results.
func FetchByStates(ctx context.Context, client Client, states []string, filter transport.ListFilter) ([]*api.RequestStatus, error) {
	perState := make([][]*api.RequestStatus, len(states))
	err := forEachLimit(len(states), func(index int) error {
		stateFilter := filter
		stateFilter.State = states[index]
		requests, err := client.List(ctx, stateFilter)
		if err != nil {
			return err
		}
		perState[index] = requests
		return nil
	})
	if err != nil {
		return nil, err
	}

	var requests []*api.RequestStatus
	for _, batch := range perState {
		requests = append(requests, batch...)
	}
	return requests, nil
}

// sortByCreated orders requests newest first.
func sortByCreated(requests []*api.RequestStatus) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].Created > requests[j].Created
	})
}
