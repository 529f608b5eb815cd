// Package httpkit is the handler and routing surface modules use instead of
// importing internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "seochecker/internal/platform/net/http"
	"seochecker/internal/platform/net/http/bind"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is the platform router seam
	Router = phttp.Router
)

// Created wraps data in a 201 response; return it from a handler to override the 200
func Created(data any) Response { return phttp.Created(data) }

// Param returns a named path parameter, e.g. {id}
func Param(r *http.Request, key string) string { return phttp.URLParam(r, key) }

// Get mounts a body-less handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) { r.Get(path, Call(h)) }

// Post mounts a body-less handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) { r.Post(path, Call(h)) }

// PostJSON mounts a handler under POST that receives the decoded and validated body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(h))
}

// JSON decodes and validates the body into T before calling fn
// validation failures map to 400 envelopes
func JSON[T any](fn func(*http.Request, T) (any, error)) Handler {
	return Call(func(r *http.Request) (any, error) {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return nil, err
		}
		return fn(r, in)
	})
}

// Call adapts fn to the envelope: errors map through perr, a returned
// Response is written as is, anything else is a 200 with data
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}
