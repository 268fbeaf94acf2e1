// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package metra passes Metra GTFS realtime feeds through as JSON.
package metra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-core-stack/transit-proxy/pkg/auth"
	"github.com/go-core-stack/transit-proxy/pkg/upstream"
)

// UpstreamName labels Metra calls in logs and metrics.
const UpstreamName = "metra"

// Feed is a Metra GTFS endpoint name.
type Feed string

const (
	FeedAlerts      Feed = "alerts"
	FeedTripUpdates Feed = "tripUpdates"
	FeedPositions   Feed = "positions"
)

// Feeds lists every feed the proxy exposes.
var Feeds = []Feed{FeedAlerts, FeedTripUpdates, FeedPositions}

// ErrUnknownFeed is returned for a feed name outside Feeds.
var ErrUnknownFeed = errors.New("invalid endpoint")

// ParseFeed validates name against Feeds. Matching is case-sensitive, as it
// is upstream.
func ParseFeed(name string) (Feed, error) {
	for _, f := range Feeds {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFeed, name)
}

// Fetcher is the outbound helper used by Client.
type Fetcher interface {
	GetJSON(ctx context.Context, call upstream.Call, opts ...upstream.RequestOption) (json.RawMessage, error)
}

// Client fetches Metra feeds with HTTP Basic credentials.
type Client struct {
	base    string
	creds   auth.BasicAuth
	fetcher Fetcher
}

// New returns a Client for base authenticated as key:secret.
func New(base *url.URL, key, secret string, fetcher Fetcher) *Client {
	return &Client{
		base:    strings.TrimSuffix(base.String(), "/"),
		creds:   auth.BasicAuth{User: key, Password: secret},
		fetcher: fetcher,
	}
}

// Configured reports whether credentials are available.
func (c *Client) Configured() bool {
	return c.creds.User != "" && c.creds.Password != ""
}

// URL returns the upstream URL of feed.
func (c *Client) URL(feed Feed) string {
	return c.base + "/" + string(feed)
}

// Feed fetches one feed. It fails with auth.ErrMissingCredentials before any
// outbound call when the client has no credentials.
func (c *Client) Feed(ctx context.Context, feed Feed) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, auth.ErrMissingCredentials
	}
	return c.fetcher.GetJSON(ctx, upstream.Call{
		Upstream:  UpstreamName,
		Operation: string(feed),
		URL:       c.URL(feed),
	}, withCredentials(c.creds), noCache)
}

func withCredentials(a auth.Attacher) upstream.RequestOption {
	return a.Attach
}

func noCache(req *http.Request) error {
	req.Header.Set("Cache-Control", "no-cache")
	return nil
}
