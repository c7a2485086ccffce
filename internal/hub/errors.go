package hub

import "fmt"

// Kind is the hub's error taxonomy. It is a classification, not a set of
// concrete error types: every failure path in the hub tags itself with
// one Kind so an external adapter can map it to a status code without
// string-matching messages.
type Kind int

const (
	// KindBadConfig marks a malformed or ambiguous config document.
	// Fatal to the loader invocation, not to an already-running hub.
	KindBadConfig Kind = iota
	// KindUnknownTool marks a qualified name with no registry entry.
	KindUnknownTool
	// KindServerUnavailable marks an owner upstream that is not Connected
	// at dispatch time.
	KindServerUnavailable
	// KindUpstreamError marks an upstream-returned JSON-RPC error object.
	KindUpstreamError
	// KindTransportError marks an HTTP/socket failure, timeout, non-200
	// on unary dispatch, or a mid-stream failure.
	KindTransportError
	// KindFramingError marks a streaming chunk the hub could neither
	// parse nor forward verbatim.
	KindFramingError
)

func (k Kind) String() string {
	switch k {
	case KindBadConfig:
		return "BadConfig"
	case KindUnknownTool:
		return "UnknownTool"
	case KindServerUnavailable:
		return "ServerUnavailable"
	case KindUpstreamError:
		return "UpstreamError"
	case KindTransportError:
		return "TransportError"
	case KindFramingError:
		return "FramingError"
	default:
		return "Unknown"
	}
}

// Error is the hub's single error type: a Kind plus a message and an
// optional wrapped cause, so callers can errors.Is/errors.As against the
// taxonomy while an adapter maps Kind to a status code.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// newError builds an *Error, used internally so call sites read as a
// short classification instead of a struct literal.
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
