// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/go-core-stack/transit-proxy/pkg/metra"
)

// Required parameters are bound as pointers: a parameter that is present but
// empty is forwarded as is, only an absent one is rejected.

type directionsQuery struct {
	Route *string `query:"rt" validate:"required"`
}

type stopsQuery struct {
	Route     *string `query:"rt" validate:"required"`
	Direction string  `query:"direction"`
}

type predictionsQuery struct {
	Route  *string `query:"rt" validate:"required"`
	StopID *string `query:"stop_id" validate:"required"`
}

type vehiclesQuery struct {
	Route *string `query:"rt" validate:"required"`
}

func (p *Proxy) handleRoutes(w http.ResponseWriter, r *http.Request) {
	body, err := p.bus.Routes(r.Context())
	p.respond(w, r, body, err)
}

func (p *Proxy) handleDirections(w http.ResponseWriter, r *http.Request) {
	q := directionsQuery{Route: queryParam(r.URL.Query(), "rt")}
	if !p.check(w, r, q) {
		return
	}
	body, err := p.bus.Directions(r.Context(), *q.Route)
	p.respond(w, r, body, err)
}

func (p *Proxy) handleStops(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := stopsQuery{Route: queryParam(values, "rt"), Direction: values.Get("direction")}
	if !p.check(w, r, q) {
		return
	}
	body, err := p.bus.Stops(r.Context(), *q.Route, q.Direction)
	p.respond(w, r, body, err)
}

func (p *Proxy) handlePredictions(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := predictionsQuery{Route: queryParam(values, "rt"), StopID: queryParam(values, "stop_id")}
	if !p.check(w, r, q) {
		return
	}
	body, err := p.bus.Predictions(r.Context(), *q.Route, *q.StopID)
	p.respond(w, r, body, err)
}

func (p *Proxy) handleVehicles(w http.ResponseWriter, r *http.Request) {
	q := vehiclesQuery{Route: queryParam(r.URL.Query(), "rt")}
	if !p.check(w, r, q) {
		return
	}
	body, err := p.bus.Vehicles(r.Context(), *q.Route)
	p.respond(w, r, body, err)
}

// handleMetraFeed relays an upstream 4xx or 5xx with the upstream's own status.
func (p *Proxy) handleMetraFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := metra.ParseFeed(mux.Vars(r)["feed"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := p.metra.Feed(r.Context(), feed)
	if status, payload, ok := relayedFailure(err); ok {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Msg("upstream request failed")
		writeJSON(w, status, payload)
		return
	}
	p.respond(w, r, body, err)
}

func (p *Proxy) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
}

// check validates a bound query and answers 422 listing the missing
// parameters when it fails.
func (p *Proxy) check(w http.ResponseWriter, r *http.Request, q any) bool {
	err := p.validate.Struct(q)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("query validation failed")
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return false
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	payload, _ := json.Marshal(struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}{
		Error:  "missing required query parameter: " + strings.Join(fields, ", "),
		Fields: fields,
	})
	writeJSON(w, http.StatusUnprocessableEntity, payload)
	return false
}

// respond writes the upstream body verbatim, or maps err onto a failure
// status. A failure is never reported as success.
func (p *Proxy) respond(w http.ResponseWriter, r *http.Request, body json.RawMessage, err error) {
	if err != nil {
		status := statusFor(err)
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Msg("upstream request failed")
		writeError(w, status, messageFor(status, err))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func queryParam(values url.Values, name string) *string {
	if !values.Has(name) {
		return nil
	}
	v := values.Get(name)
	return &v
}

// newValidator reports field errors using the query parameter names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}
