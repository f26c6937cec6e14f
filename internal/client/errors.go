package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed client call.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport means no response was received.
	KindTransport
	// KindAPI is a non-2xx response.
	KindAPI
	// KindSessionExpired means the session was cleared and the user must log in again.
	KindSessionExpired
	// KindDecode is a 2xx response whose body did not match the expected shape.
	KindDecode
	// KindValidation is input rejected before any network call.
	KindValidation
	// KindThrottled means the request pacer gave up before a slot freed.
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindSessionExpired:
		return "session_expired"
	case KindDecode:
		return "decode"
	case KindValidation:
		return "validation"
	case KindThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

const (
	MsgConnectivity   = "cannot connect to the server"
	MsgSessionExpired = "session expired, please log in again"
	MsgNotAnImage     = "only image files are allowed"
	MsgImageTooLarge  = "image exceeds the 5MB limit"
	MsgThrottled      = "too many requests, try again shortly"
)

// Error is returned by every client operation. Error() is exactly the
// user-facing message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a client error of kind k.
func IsKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

func apiError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("HTTP error: %d", status)
	}
	return &Error{Kind: KindAPI, Status: status, Message: message}
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: MsgConnectivity, Err: err}
}

func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Message: "unexpected response from server", Err: err}
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// sessionExpired carries status 0 when the expiry was detected locally.
func sessionExpired(status int) *Error {
	return &Error{Kind: KindSessionExpired, Status: status, Message: MsgSessionExpired}
}
