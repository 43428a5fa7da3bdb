// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package http

import (
	"io"
	"net/http"
	"time"
)

// RetryPolicy bounds the transport-level retries. Retries apply uniformly
// to every verb; a retried POST may create a duplicate remote resource if
// the first attempt succeeded server-side but the response was lost. The
// API offers no idempotency key, so this risk is documented, not
// mitigated.
type RetryPolicy struct {
	// Retries is the number of retries after the initial attempt.
	Retries int
	// BackoffBase is the first retry delay, doubled per retry.
	BackoffBase time.Duration
	// BackoffMax caps the per-retry delay.
	BackoffMax time.Duration
	// ForceStatus lists the response codes that trigger a retry.
	ForceStatus []int
}

// DefaultForceStatus are the status codes retried by default.
var DefaultForceStatus = []int{
	http.StatusTooManyRequests,     // 429
	http.StatusInternalServerError, // 500
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

// DefaultRetryPolicy returns the policy used for API calls.
func DefaultRetryPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		Retries:     retries,
		BackoffBase: time.Second,
		BackoffMax:  32 * time.Second,
		ForceStatus: DefaultForceStatus,
	}
}

// Extend returns a copy of the policy with extra retried status codes.
func (p RetryPolicy) Extend(statuses ...int) RetryPolicy {
	extended := p
	extended.ForceStatus = append(append([]int{}, p.ForceStatus...), statuses...)
	return extended
}

func (p RetryPolicy) shouldRetry(status int) bool {
	for _, candidate := range p.ForceStatus {
		if candidate == status {
			return true
		}
	}
	return false
}

func (p RetryPolicy) backoff(retry int) time.Duration {
	delay := p.BackoffBase << uint(retry)
	if delay > p.BackoffMax || delay <= 0 {
		return p.BackoffMax
	}
	return delay
}

// retryRoundTripper retries requests that hit a retriable status code.
// Network-level failures are not retried here; the polling loops treat
// them as fatal.
type retryRoundTripper struct {
	base   http.RoundTripper
	policy RetryPolicy
}

func (rt *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			req.Body = body
		}

		resp, err = rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if !rt.policy.shouldRetry(resp.StatusCode) || attempt >= rt.policy.Retries {
			return resp, nil
		}

		// drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(rt.policy.backoff(attempt)):
		}
	}
}
