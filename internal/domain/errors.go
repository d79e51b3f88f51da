package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrSyncInProgress is never returned by a sync pass; it names the no-op case for callers that report it.
var ErrSyncInProgress = errors.New("sync already in progress")

type kinder interface{ Kind() string }

// StorageUnavailable: local persistence is not initialised, closed or rejected a write.
type StorageUnavailable struct {
	Op  string
	Err error
}

func (e *StorageUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage unavailable: %s", e.Op)
	}
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}
func (e *StorageUnavailable) Unwrap() error { return e.Err }
func (e *StorageUnavailable) Kind() string  { return "storage_unavailable" }

// NetworkFailure: the remote call did not complete.
type NetworkFailure struct {
	Op  string
	Err error
}

func (e *NetworkFailure) Error() string { return fmt.Sprintf("network failure: %s: %v", e.Op, e.Err) }
func (e *NetworkFailure) Unwrap() error { return e.Err }
func (e *NetworkFailure) Kind() string  { return "network_failure" }

// RemoteRejection: the remote answered but refused the operation.
type RemoteRejection struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("remote rejected %s: status %d: %s", e.Op, e.Status, e.Message)
}
func (e *RemoteRejection) Kind() string { return "remote_rejection" }

// Permanent reports a client-side (4xx) rejection that a replay cannot fix.
// 408, 409, 425 and 429 are retried.
func (e *RemoteRejection) Permanent() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

func Kind(err error) string {
	var k kinder
	switch {
	case err == nil:
		return ""
	case errors.As(err, &k):
		return k.Kind()
	case errors.Is(err, ErrSyncInProgress):
		return "sync_in_progress"
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrMissingStaff),
		errors.Is(err, ErrInvalidItem), errors.Is(err, ErrMissingID):
		return "bad_request"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

var kindToStatus = map[string]int{
	"":                    http.StatusOK,
	"storage_unavailable": http.StatusServiceUnavailable,
	"network_failure":     http.StatusBadGateway,
	"remote_rejection":    http.StatusBadGateway,
	"sync_in_progress":    http.StatusConflict,
	"bad_request":         http.StatusBadRequest,
	"timeout":             http.StatusGatewayTimeout,
	"canceled":            http.StatusBadRequest,
}

func HTTPStatus(err error) int {
	if code, ok := kindToStatus[Kind(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func IsPermanentRejection(err error) bool {
	var rr *RemoteRejection
	return errors.As(err, &rr) && rr.Permanent()
}
