// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package bustracker translates bus tracking operations into calls against
// the CTA Bus Tracker v2 API. Each exported method maps onto exactly one
// upstream endpoint; responses are handed back as the raw JSON the upstream
// produced.
package bustracker

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-core-stack/transit-proxy/pkg/upstream"
)

// UpstreamName labels Bus Tracker calls in logs and metrics.
const UpstreamName = "cta-bus"

// DefaultDirection is used by Stops when the caller supplies no direction.
const DefaultDirection = "Northbound"

// Operation is an upstream Bus Tracker endpoint name.
type Operation string

const (
	OpRoutes      Operation = "getroutes"
	OpDirections  Operation = "getdirections"
	OpStops       Operation = "getstops"
	OpPredictions Operation = "getpredictions"
	OpVehicles    Operation = "getvehicles"
)

// Param is one forwarded query parameter. Params keep their order in the
// generated URL.
type Param struct {
	Name  string
	Value string
}

// Fetcher is the outbound helper used by Client.
type Fetcher interface {
	GetJSON(ctx context.Context, call upstream.Call, opts ...upstream.RequestOption) (json.RawMessage, error)
}

// Client issues Bus Tracker calls with a fixed base URL and API key.
type Client struct {
	base    string
	key     string
	fetcher Fetcher
}

// New returns a Client. The key is not checked; an empty key is forwarded and
// the upstream reports the error in its own response body.
func New(base *url.URL, key string, fetcher Fetcher) *Client {
	return &Client{
		base:    strings.TrimSuffix(base.String(), "/"),
		key:     key,
		fetcher: fetcher,
	}
}

// URL builds the upstream URL for op: the base, the operation path, the key,
// format=json and then params in order.
func (c *Client) URL(op Operation, params ...Param) string {
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteByte('/')
	b.WriteString(string(op))
	b.WriteString("?key=")
	b.WriteString(url.QueryEscape(c.key))
	b.WriteString("&format=json")
	for _, p := range params {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Routes lists every route.
func (c *Client) Routes(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, OpRoutes)
}

// Directions lists the directions served by route rt.
func (c *Client) Directions(ctx context.Context, rt string) (json.RawMessage, error) {
	return c.call(ctx, OpDirections, Param{"rt", rt})
}

// Stops lists the stops of route rt in direction dir. An empty dir means
// DefaultDirection.
func (c *Client) Stops(ctx context.Context, rt, dir string) (json.RawMessage, error) {
	if dir == "" {
		dir = DefaultDirection
	}
	return c.call(ctx, OpStops, Param{"rt", rt}, Param{"dir", dir})
}

// Predictions returns arrival predictions for stopID on route rt.
func (c *Client) Predictions(ctx context.Context, rt, stopID string) (json.RawMessage, error) {
	return c.call(ctx, OpPredictions, Param{"stpid", stopID}, Param{"rt", rt})
}

// Vehicles returns the live vehicles on route rt.
func (c *Client) Vehicles(ctx context.Context, rt string) (json.RawMessage, error) {
	return c.call(ctx, OpVehicles, Param{"rt", rt})
}

func (c *Client) call(ctx context.Context, op Operation, params ...Param) (json.RawMessage, error) {
	return c.fetcher.GetJSON(ctx, upstream.Call{
		Upstream:  UpstreamName,
		Operation: string(op),
		URL:       c.URL(op, params...),
	})
}
