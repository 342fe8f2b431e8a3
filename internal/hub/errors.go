package hub

import (
	"errors"
	"fmt"
)

// Kind is one of the stable, enumerated error kinds a caller can switch
// on (spec §7). Component boundaries do not carry exception-chain
// semantics beyond wrapping the original cause.
type Kind string

const (
	KindInvalidType              Kind = "InvalidType"
	KindMissingField              Kind = "MissingField"
	KindPortExhausted             Kind = "PortExhausted"
	KindServiceUnreachable        Kind = "ServiceUnreachable"
	KindRegistrationFailed        Kind = "RegistrationFailed"
	KindNotFound                  Kind = "NotFound"
	KindImmutable                 Kind = "Immutable"
	KindDeintegrationBlocked      Kind = "DeintegrationBlocked"
	KindCleanupVerificationFailed Kind = "CleanupVerificationFailed"
	KindRecordNotFound            Kind = "RecordNotFound"
	KindStateCorrupt              Kind = "StateCorrupt"
	KindTypeUnavailable           Kind = "TypeUnavailable"
	KindRequestTimeout             Kind = "RequestTimeout"
	KindDeliveryFailed             Kind = "DeliveryFailed"
	KindActionUnsupported          Kind = "ActionUnsupported"
)

// Error is the single error type raised across the hub's component
// boundaries. Callers match on Kind (via Is below, which uses
// errors.As) rather than on message text.
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

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func NewInvalidTypeError(typ string) *Error {
	return New(KindInvalidType, fmt.Sprintf("unknown integration type %q", typ))
}

func NewMissingFieldError(field string) *Error {
	return New(KindMissingField, fmt.Sprintf("required field %q is missing", field))
}

func NewPortExhaustedError(start, max int) *Error {
	return New(KindPortExhausted, fmt.Sprintf("no free port found in %d attempts starting at %d", max, start))
}

func NewServiceUnreachableError(url string, cause error) *Error {
	return Wrap(KindServiceUnreachable, fmt.Sprintf("initial health probe of %s failed", url), cause)
}

func NewRegistrationFailedError(cause error) *Error {
	return Wrap(KindRegistrationFailed, "type-specific initialization failed", cause)
}

func NewNotFoundError(id string) *Error {
	return New(KindNotFound, fmt.Sprintf("integration %q not found", id))
}

func NewImmutableError(id string) *Error {
	return New(KindImmutable, fmt.Sprintf("integration %q is removed and immutable", id))
}

func NewDeintegrationBlockedError(reason string) *Error {
	return New(KindDeintegrationBlocked, reason)
}

func NewCleanupVerificationFailedError(reason string) *Error {
	return New(KindCleanupVerificationFailed, reason)
}

func NewRecordNotFoundError(deintegrationID string) *Error {
	return New(KindRecordNotFound, fmt.Sprintf("deintegration record %q not found", deintegrationID))
}

func NewStateCorruptError(cause error) *Error {
	return Wrap(KindStateCorrupt, "state snapshot failed to parse", cause)
}

func NewTypeUnavailableError(typ string) *Error {
	return New(KindTypeUnavailable, fmt.Sprintf("adapter type %q is no longer registered", typ))
}

func NewRequestTimeoutError(topic string) *Error {
	return New(KindRequestTimeout, fmt.Sprintf("request on %q timed out waiting for a reply", topic))
}

func NewDeliveryFailedError(url string, cause error) *Error {
	return Wrap(KindDeliveryFailed, fmt.Sprintf("webhook delivery to %s failed", url), cause)
}

func NewActionUnsupportedError(name string) *Error {
	return New(KindActionUnsupported, fmt.Sprintf("action %q is not supported by this handle", name))
}
