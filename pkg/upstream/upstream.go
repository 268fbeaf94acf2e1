// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package upstream is the single outbound HTTP helper shared by every transit
// API client. It issues one GET, checks the status and that the body is JSON,
// and hands the body back untouched.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/transit-proxy/pkg/metrics"
)

// maxErrorBody bounds how much of a failed upstream body is retained for logs.
const maxErrorBody = 64 * 1024

// Failure kinds carried by Error.
var (
	ErrUpstreamStatus = errors.New("upstream returned error status")
	ErrNotJSON        = errors.New("upstream returned non-JSON body")
	ErrTimeout        = errors.New("upstream request timed out")
	ErrTransport      = errors.New("upstream request failed")
)

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOption mutates the outbound request before it is sent, typically to
// attach credentials or headers.
type RequestOption func(req *http.Request) error

// Call identifies one outbound request for logging and metrics.
type Call struct {
	Upstream  string
	Operation string
	URL       string
}

// Error describes a failed upstream call. Kind is one of the sentinel errors
// above and is matched through errors.Is.
type Error struct {
	Kind   error
	Call   Call
	Status int    // Status is the upstream HTTP status, zero when no response arrived.
	Body   []byte // Body holds a bounded excerpt of the upstream response.
	Err    error
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Call.Upstream, e.Call.Operation, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Is lets errors.Is match the failure kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fetcher issues outbound GETs and returns JSON bodies verbatim.
type Fetcher struct {
	doer    Doer
	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewFetcher wraps doer. A nil recorder disables metrics.
func NewFetcher(doer Doer, rec *metrics.Recorder) *Fetcher {
	return &Fetcher{
		doer:    doer,
		metrics: rec,
		logger:  log.With().Str("component", "upstream").Logger(),
	}
}

// GetJSON performs the call and returns the body exactly as received. The
// body is only checked for being well-formed JSON, never decoded into a type.
func (f *Fetcher) GetJSON(ctx context.Context, call Call, opts ...RequestOption) (json.RawMessage, error) {
	start := time.Now()
	body, err := f.get(ctx, call, opts...)
	f.metrics.ObserveUpstream(call.Upstream, call.Operation, outcome(err), time.Since(start))

	event := f.logger.With().
		Str("upstream", call.Upstream).
		Str("operation", call.Operation).
		Dur("duration", time.Since(start)).
		Logger()
	if err != nil {
		var upErr *Error
		if errors.As(err, &upErr) && len(upErr.Body) > 0 {
			event.Warn().Err(err).Bytes("upstream_body", upErr.Body).Msg("upstream call failed")
		} else {
			event.Warn().Err(err).Msg("upstream call failed")
		}
		return nil, err
	}
	event.Debug().Int("bytes", len(body)).Msg("upstream call succeeded")
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, call Call, opts ...RequestOption) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, call.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request for %s %s: %w", call.Upstream, call.Operation, stripURL(err))
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		if err := opt(req); err != nil {
			return nil, fmt.Errorf("prepare upstream request: %w", err)
		}
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		return nil, classifyTransport(call, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Error().Err(closeErr).Msg("close upstream response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Kind: ErrUpstreamStatus, Call: call, Status: resp.StatusCode, Body: excerpt}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(call, fmt.Errorf("read upstream body: %w", err))
	}
	if !json.Valid(bytes.TrimSpace(body)) {
		excerpt := body
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &Error{Kind: ErrNotJSON, Call: call, Status: resp.StatusCode, Body: excerpt}
	}
	return body, nil
}

// classifyTransport drops the request URL from err before keeping it, since
// the URL may carry an API key in its query.
func classifyTransport(call Call, err error) error {
	err = stripURL(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Call: call, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrTimeout, Call: call, Err: err}
	}
	return &Error{Kind: ErrTransport, Call: call, Err: err}
}

// stripURL replaces a *url.Error with the error it wraps. A parse failure is
// reduced to its description.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrUpstreamStatus):
		return metrics.OutcomeStatus
	case errors.Is(err, ErrNotJSON):
		return metrics.OutcomeNotJSON
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeTransport
	}
}
