// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package auth attaches upstream credentials to outbound requests.
package auth

import (
	"errors"
	"net/http"
)

// ErrMissingCredentials is returned when a credential is attached before it
// has been configured.
var ErrMissingCredentials = errors.New("credentials are not configured")

// Attacher mutates an outbound request so the upstream can authenticate it.
type Attacher interface {
	Attach(req *http.Request) error
}

// BasicAuth injects an HTTP Basic Authorization header.
type BasicAuth struct {
	User     string
	Password string
}

// Attach sets the Authorization header on the request.
func (b BasicAuth) Attach(req *http.Request) error {
	if b.User == "" || b.Password == "" {
		return ErrMissingCredentials
	}
	req.SetBasicAuth(b.User, b.Password)
	return nil
}
