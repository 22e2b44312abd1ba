// Package kvserrors defines the single error taxonomy shared by every KVS
// package. It generalizes a static-sentinel-errors.New convention
// (ErrSnapshotNotFoundTrueNAS, ErrInvalidProtocol, ...) into one
// parameterized Kind, since callers need to switch on *kind* across many
// call sites regardless of which operation produced the failure.
package kvserrors

import (
	"errors"
	"fmt"
	"os"
)

// Kind enumerates the failure categories a KVS operation can report.
type Kind int

const (
	KindUnmappedError Kind = iota
	KindFileNotFound
	KindKvsFileReadError
	KindKvsHashFileReadError
	KindJSONParserError
	KindJSONGeneratorError
	KindPhysicalStorageFailure
	KindIntegrityCorrupted
	KindValidationFailed
	KindEncryptionFailed
	KindResourceBusy
	KindOutOfStorageSpace
	KindQuotaExceeded
	KindAuthenticationFailed
	KindKeyNotFound
	KindKeyDefaultNotFound
	KindSerializationFailed
	KindDeserializationFailed
	KindInvalidSnapshotID
	KindInvalidInstanceID
	KindConversionFailed
	KindMutexLockFailed
	KindInstanceParametersMismatch
	KindUnknownBackend
	KindBackendAlreadyRegistered
	KindInvalidBackendParameters
)

var kindNames = map[Kind]string{
	KindUnmappedError:              "unmapped_error",
	KindFileNotFound:               "file_not_found",
	KindKvsFileReadError:           "kvs_file_read_error",
	KindKvsHashFileReadError:       "kvs_hash_file_read_error",
	KindJSONParserError:            "json_parser_error",
	KindJSONGeneratorError:         "json_generator_error",
	KindPhysicalStorageFailure:     "physical_storage_failure",
	KindIntegrityCorrupted:         "integrity_corrupted",
	KindValidationFailed:           "validation_failed",
	KindEncryptionFailed:           "encryption_failed",
	KindResourceBusy:               "resource_busy",
	KindOutOfStorageSpace:          "out_of_storage_space",
	KindQuotaExceeded:              "quota_exceeded",
	KindAuthenticationFailed:       "authentication_failed",
	KindKeyNotFound:                "key_not_found",
	KindKeyDefaultNotFound:         "key_default_not_found",
	KindSerializationFailed:        "serialization_failed",
	KindDeserializationFailed:      "deserialization_failed",
	KindInvalidSnapshotID:          "invalid_snapshot_id",
	KindInvalidInstanceID:          "invalid_instance_id",
	KindConversionFailed:           "conversion_failed",
	KindMutexLockFailed:            "mutex_lock_failed",
	KindInstanceParametersMismatch: "instance_parameters_mismatch",
	KindUnknownBackend:             "unknown_backend",
	KindBackendAlreadyRegistered:   "backend_already_registered",
	KindInvalidBackendParameters:   "invalid_backend_parameters",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the concrete error type returned by every KVS operation that can
// fail. Op names the operation that failed (e.g. "kvs.Get",
// "jsonbackend.Flush"); Err, when non-nil, is the underlying cause and is
// reachable through Unwrap for errors.Is/errors.As interop with stdlib and
// third-party errors.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error carrying kind, the failing operation name and a
// human-readable message, with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an *Error carrying kind and op, wrapping an underlying cause
// for errors.Is/errors.As interop.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// any chain of wrapped errors.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// FromIOError maps a filesystem error into the KVS error taxonomy the way
// the source's `impl From<std::io::Error> for ErrorCode` does: a
// not-found condition becomes KindFileNotFound, anything else becomes an
// unmapped error carrying the original cause.
func FromIOError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return Wrap(KindFileNotFound, op, err)
	}
	return Wrap(KindUnmappedError, op, err)
}
