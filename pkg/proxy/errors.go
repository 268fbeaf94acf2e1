// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-core-stack/transit-proxy/pkg/auth"
	"github.com/go-core-stack/transit-proxy/pkg/upstream"
)

// statusFor maps an outbound failure onto the status emitted downstream.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upstream.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, upstream.ErrUpstreamStatus),
		errors.Is(err, upstream.ErrNotJSON),
		errors.Is(err, upstream.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor keeps internal detail out of the response body; the full error
// is logged instead.
func messageFor(status int, err error) string {
	if errors.Is(err, auth.ErrMissingCredentials) {
		return "upstream credentials are not configured"
	}
	return http.StatusText(status)
}

// relayedFailure builds a response carrying the upstream's own error status
// and body. It applies only to upstream 4xx and 5xx answers.
func relayedFailure(err error) (int, []byte, bool) {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) || !errors.Is(upErr, upstream.ErrUpstreamStatus) || upErr.Status < http.StatusBadRequest {
		return 0, nil, false
	}
	out := struct {
		Error    string          `json:"error"`
		Details  json.RawMessage `json:"details,omitempty"`
		RawError string          `json:"rawError,omitempty"`
	}{
		Error: fmt.Sprintf("%s returned %d", upErr.Call.Upstream, upErr.Status),
	}
	if json.Valid(upErr.Body) {
		out.Details = upErr.Body
	} else {
		out.RawError = string(upErr.Body)
	}
	payload, _ := json.Marshal(out)
	return upErr.Status, payload, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	payload, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
