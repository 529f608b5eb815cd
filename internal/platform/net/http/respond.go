// Package http is the transport layer: router seam, server and the JSON envelope
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "seochecker/internal/platform/errors"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Envelope wraps every JSON body the API writes
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Response is what return-style handlers produce; an error Body becomes an error envelope
type Response struct {
	Status int
	Body   any
}

// OK is a 200 with data
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Created is a 201 with data
func Created(data any) Response { return Response{Status: stdhttp.StatusCreated, Body: data} }

// Error maps err to its status when written
func Error(err error) Response { return Response{Body: err} }

// RequestID returns the request id chi stored on ctx, if any
func RequestID(r *stdhttp.Request) string { return chimw.GetReqID(r.Context()) }

// Handle adapts a return-style handler to net/http
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		Write(w, r, h(r))
	}
}

// Write renders resp inside the envelope
func Write(w stdhttp.ResponseWriter, r *stdhttp.Request, resp Response) {
	env := Envelope{StatusCode: resp.Status, RequestID: RequestID(r)}
	if err, ok := resp.Body.(error); ok && err != nil {
		wire := perr.WireFrom(err)
		env.StatusCode = perr.HTTPStatus(err)
		env.Code, env.Error, env.Field = wire.Code, wire.Message, wire.Field
	} else {
		env.Data = resp.Body
	}
	if env.StatusCode == 0 {
		env.StatusCode = stdhttp.StatusOK
	}
	env.Status = stdhttp.StatusText(env.StatusCode)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(env.StatusCode)
	_ = json.NewEncoder(w).Encode(env)
}
