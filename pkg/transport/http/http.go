// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package http implements the Transport interface over the Testing Farm
// HTTP/JSON API.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/logging"
	"github.com/facebookincubator/farmcli/pkg/transport"
)

// Cancel outcome sentinels.
var (
	ErrAlreadyCanceled = errors.New("request was already canceled")
	ErrAlreadyFinished = errors.New("request cannot be canceled, it is already finished")
	// ErrForbidden means the token is valid but does not own the request.
	ErrForbidden = errors.New("not the owner of this request")
)

// Config configures a Client. BaseURL has no API version suffix, the
// client appends /v0.1 itself.
type Config struct {
	BaseURL            string
	InternalBaseURL    string
	Token              string
	OnboardingDocs     string
	IssueTracker       string
	PublicIPCheckerURL string
	Timeout            time.Duration
	Retries            int
}

// Client communicates with the Testing Farm API via http(s)/json.
// Client implements the transport.Transport interface.
type Client struct {
	cfg   Config
	http  *http.Client
	raced *http.Client
	log   *logrus.Entry
}

var _ transport.Transport = (*Client)(nil)

// New builds a Client with the default retry policy installed. A second
// pooled client with 404 in its forcelist covers artifact fetches that
// race request completion.
func New(cfg Config) *Client {
	policy := DefaultRetryPolicy(cfg.Retries)

	racedPolicy := policy.Extend(http.StatusNotFound)
	racedPolicy.BackoffBase = 100 * time.Millisecond
	racedPolicy.Retries = cfg.Retries + 3

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &retryRoundTripper{base: http.DefaultTransport, policy: policy},
		},
		raced: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &retryRoundTripper{base: http.DefaultTransport, policy: racedPolicy},
		},
		log: logging.GetLogger("transport/http"),
	}
}

func (c *Client) endpoint(internal bool, format string, args ...interface{}) string {
	base := c.cfg.BaseURL
	if internal && c.cfg.InternalBaseURL != "" {
		base = c.cfg.InternalBaseURL
	}
	return strings.TrimRight(base, "/") + "/v0.1" + fmt.Sprintf(format, args...)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, authenticated bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	c.log.Debugf("%s %s", method, url)
	return c.http.Do(req)
}

// decodeInto reads the response body and unmarshals it into out, mapping
// the common error statuses to typed errors first.
func (c *Client) decodeInto(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cannot read HTTP response: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cannot decode json response: %w", err)
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return &cerrors.AuthError{Docs: c.cfg.OnboardingDocs}
	case http.StatusBadRequest:
		var apiErr api.APIError
		body, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(body, &apiErr)
		return &cerrors.ValidationError{Message: apiErr.Message, Tracker: c.cfg.IssueTracker}
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected response %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Submit POSTs a new request and returns its id.
func (c *Client) Submit(ctx context.Context, request *api.Request) (*api.SubmitResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(false, "/requests"), request, true)
	if err != nil {
		return nil, err
	}
	var data api.SubmitResponse
	if err := c.decodeInto(resp, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Get fetches the full request+status document.
func (c *Client) Get(ctx context.Context, id string, opts transport.GetOptions) (*api.RequestStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(opts.Internal, "/requests/%s", id), nil, opts.Authenticated)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, &cerrors.NotFoundError{ID: id}
	case http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrForbidden
	}
	var data api.RequestStatus
	if err := c.decodeInto(resp, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Cancel asks the service to cancel a request.
func (c *Client) Cancel(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.endpoint(false, "/requests/%s", id), nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNoContent:
		return ErrAlreadyCanceled
	case http.StatusConflict:
		return ErrAlreadyFinished
	case http.StatusNotFound:
		return &cerrors.NotFoundError{ID: id}
	}
	return c.checkStatus(resp)
}

// List fetches requests matching the filter.
func (c *Client) List(ctx context.Context, filter transport.ListFilter) ([]*api.RequestStatus, error) {
	params := url.Values{}
	if filter.CreatedAfter != "" {
		params.Set("created_after", filter.CreatedAfter)
	}
	if filter.CreatedBefore != "" {
		params.Set("created_before", filter.CreatedBefore)
	}
	if filter.State != "" {
		params.Set("state", filter.State)
	}
	if filter.Ranch != "" {
		params.Set("ranch", filter.Ranch)
	}
	if filter.TokenID != "" {
		params.Set("token_id", filter.TokenID)
	}

	url := c.endpoint(filter.Internal, "/requests") + "?" + params.Encode()
	resp, err := c.do(ctx, http.MethodGet, url, nil, filter.Authenticated)
	if err != nil {
		return nil, err
	}
	var data []*api.RequestStatus
	if err := c.decodeInto(resp, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Whoami resolves the ranch associated with the bearer token.
func (c *Client) Whoami(ctx context.Context) (*api.Whoami, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(false, "/whoami"), nil, true)
	if err != nil {
		return nil, err
	}
	var data api.Whoami
	if err := c.decodeInto(resp, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Composes lists the composes accepted for a ranch.
func (c *Client) Composes(ctx context.Context, ranch string) ([]api.Compose, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(false, "/composes/%s", ranch), nil, false)
	if err != nil {
		return nil, err
	}
	var data api.ComposesResponse
	if err := c.decodeInto(resp, &data); err != nil {
		return nil, err
	}
	return data.Composes, nil
}

// Encrypt submits a secret for encryption and returns the ciphertext.
func (c *Client) Encrypt(ctx context.Context, payload *api.EncryptPayload) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(false, "/secrets/encrypt"), payload, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("cannot read HTTP response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// FetchArtifact retrieves a text document published under an artifacts
// URL. The body is returned whatever the status code is; log scraping
// treats a missing document the same as one without the marker.
func (c *Client) FetchArtifact(ctx context.Context, url string) (string, error) {
	return fetchText(ctx, c.http, url)
}

// FetchArtifactRaced is FetchArtifact on the 404-tolerant client.
func (c *Client) FetchArtifactRaced(ctx context.Context, url string) (string, error) {
	return fetchText(ctx, c.raced, url)
}

// PublicIP asks the IP echo service for the workstation's address.
func (c *Client) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PublicIPCheckerURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not get workstation ip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("got %d while checking %s", resp.StatusCode, c.cfg.PublicIPCheckerURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func fetchText(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// IsSSLError reports whether the error comes from TLS certificate
// verification, as opposed to plain connectivity. The two get different
// remediation hints: missing corporate CA versus not being on the VPN.
func IsSSLError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		return true
	}
	var recordHeader tls.RecordHeaderError
	if errors.As(err, &recordHeader) {
		return true
	}
	var verifyErr *tls.CertificateVerificationError
	return errors.As(err, &verifyErr)
}
