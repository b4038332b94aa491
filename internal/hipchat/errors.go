package hipchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnexpectedResponse means the acknowledgement had no status field.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrNotSent means the API answered with a status other than "sent".
	ErrNotSent = errors.New("event was not sent to hipchat")
)

// DeliveryError is a transport level failure (connect, timeout, DNS, bad body).
type DeliveryError struct {
	Op  string
	Err error
}

func (e *DeliveryError) Error() string { return "hipchat " + e.Op + ": " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }

// APIError is a non-2xx answer from the chat API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hipchat api returned %d", e.StatusCode)
	if e.Type != "" {
		b.WriteString(" ")
		b.WriteString(e.Type)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func newAPIError(code int, raw []byte) *APIError {
	e := &APIError{StatusCode: code}
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		e.Type = body.Error.Type
		e.Message = body.Error.Message
	}
	return e
}

// ErrorKind classifies delivery errors for logs and metrics.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindUnexpectedResponse ErrorKind = "unexpected_response"
	KindNotConfirmed       ErrorKind = "not_confirmed"
	KindTransport          ErrorKind = "transport"
)

func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnexpectedResponse):
		return KindUnexpectedResponse
	case errors.Is(err, ErrNotSent):
		return KindNotConfirmed
	default:
		return KindTransport
	}
}
