package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies the failures the core can surface. Every kind is
// recoverable at the request boundary.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindDuplicateIdentity  Kind = "duplicate_identity"
	KindInvalidTimeRange   Kind = "invalid_time_range"
	KindSchedulingConflict Kind = "scheduling_conflict"
	KindInvalidTransition  Kind = "invalid_transition"
	KindInvalidMileage     Kind = "invalid_mileage"
	KindVehicleUnavailable Kind = "vehicle_unavailable"
	KindNotFound           Kind = "not_found"
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Error carries a kind plus a human-readable detail. Scheduling conflicts
// additionally name the booking ids that block the requested window.
type Error struct {
	Kind        Kind
	Message     string
	ConflictIDs []int
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a SchedulingConflict error naming the blocking bookings.
func Conflict(ids []int) *Error {
	return &Error{
		Kind:        KindSchedulingConflict,
		Message:     fmt.Sprintf("requested window overlaps booking(s) %v", ids),
		ConflictIDs: ids,
	}
}

// Storage wraps a storage-layer failure as StorageUnavailable, keeping the
// cause for logs while callers only see the generic kind.
func Storage(err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: fmt.Sprintf("storage unavailable: %v", err)}
}

// KindOf extracts the kind from err, or empty when err is not ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is lets errors.Is match two core errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// HTTPStatus maps an error to the status code the API layer writes.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateIdentity, KindSchedulingConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindInvalidTimeRange, KindInvalidMileage, KindVehicleUnavailable:
		return http.StatusUnprocessableEntity
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
