// Package mgmterr defines the error taxonomy returned by the management
// service's subsystems. Handlers at the BeeMsg/RPC boundary translate
// these into wire-level codes; nothing crosses a task boundary as an
// unchecked failure.
package mgmterr

import (
	"errors"
	"fmt"
)

// Kind is a coarse error category used for wire-level translation.
type Kind string

const (
	KindConfig             Kind = "config"
	KindIO                 Kind = "io"
	KindStoreNotFound      Kind = "store.not_found"
	KindStoreAlreadyExists Kind = "store.already_exists"
	KindStoreConstraint    Kind = "store.constraint"
	KindStoreConflict      Kind = "store.conflict"
	KindStoreSerialization Kind = "store.serialization"
	KindStoreMigration     Kind = "store.migration_failed"
	KindWireMalformed      Kind = "wire.malformed"
	KindWireAuth           Kind = "wire.auth"
	KindWireUnsupported    Kind = "wire.unsupported"
	KindTransportBind      Kind = "transport.bind"
	KindTransportAccept    Kind = "transport.accept"
	KindTransportTLS       Kind = "transport.tls"
	KindRegistryDisabled   Kind = "registry.disabled"
	KindRegistryExhausted  Kind = "registry.id_exhausted"
	KindQuotaUnreachable   Kind = "quota.unreachable"
	KindQuotaPartialPull   Kind = "quota.partial_pull"
	KindShutdown           Kind = "shutdown"
	KindBusy               Kind = "busy"
	KindLicenseDenied      Kind = "license.denied"
)

// Error is a kind-tagged, user-facing error with an optional cause chain.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a new Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFound builds a KindStoreNotFound error.
func NotFound(what string) *Error {
	return New(KindStoreNotFound, what+" not found")
}

// AlreadyExists builds a KindStoreAlreadyExists error.
func AlreadyExists(what string) *Error {
	return New(KindStoreAlreadyExists, what+" already exists")
}

// Conflictf builds a human-readable KindStoreConflict error.
func Conflictf(format string, args ...any) *Error {
	return New(KindStoreConflict, fmt.Sprintf(format, args...))
}
