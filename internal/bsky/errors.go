package bsky

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bluesky-social/indigo/xrpc"
)

// APIError is a non-2xx XRPC response, flattened from *xrpc.Error so
// callers and fakes need not build the nested xrpc types.
type APIError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
	err      error
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s: %s", e.Endpoint, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// wrapErr annotates an error returned by an indigo call. Non-xrpc errors
// (transport, decode) keep their identity behind the endpoint prefix.
func wrapErr(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	if ae := fromXRPC(endpoint, err); ae != nil {
		return ae
	}
	return fmt.Errorf("%s: %w", endpoint, err)
}

func fromXRPC(endpoint string, err error) *APIError {
	var xe *xrpc.Error
	if !errors.As(err, &xe) {
		return nil
	}
	ae := &APIError{Endpoint: endpoint, Status: xe.StatusCode, err: err}
	var body *xrpc.XRPCError
	if errors.As(xe.Wrapped, &body) {
		ae.Code = body.ErrStr
		ae.Message = body.Message
	}
	return ae
}

func asAPIError(err error) *APIError {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae
	}
	return fromXRPC("", err)
}

// IsNotFound reports whether err means the requested actor, post or
// thread does not exist (or cannot be resolved).
func IsNotFound(err error) bool {
	ae := asAPIError(err)
	if ae == nil {
		return false
	}
	switch {
	case ae.Status == http.StatusNotFound:
		return true
	case ae.Code == "NotFound":
		return true
	case ae.Status == http.StatusBadRequest && ae.Code == "InvalidRequest":
		return true
	}
	return false
}

// IsTokenRejected reports whether the upstream refused the presented token.
func IsTokenRejected(err error) bool {
	ae := asAPIError(err)
	if ae == nil {
		return false
	}
	return ae.Code == "ExpiredToken" || ae.Code == "InvalidToken"
}
