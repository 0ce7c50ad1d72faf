package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"github.com/summerlabs/notifai/internal/device"
	"github.com/summerlabs/notifai/internal/store"
)

// Kind is the user-facing classification of a run fault.
type Kind string

const (
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindNetwork          Kind = "NETWORK_ERROR"
	KindSystem           Kind = "SYSTEM_ERROR"
	KindStorage          Kind = "STORAGE_ERROR"
	KindCancelled        Kind = "CANCELLED"
	KindUnknown          Kind = "UNKNOWN_ERROR"
)

// UserMessage returns the message shown to the user for this kind.
func (k Kind) UserMessage() string {
	switch k {
	case KindPermissionDenied:
		return "SMS access permission is required"
	case KindNetwork:
		return "Please check your internet connection"
	case KindSystem:
		return "Unable to process messages at the moment"
	case KindStorage:
		return "Not enough storage space available"
	case KindCancelled:
		return "SMS processing cancelled"
	default:
		return "Something went wrong, please try again"
	}
}

// Retryable reports whether a run failing with this kind should go through
// the bounded retry loop before surfacing as a terminal failure.
// Permission, invalid-state, and unclassified runtime faults are retryable;
// storage exhaustion and cancellation are not.
func (k Kind) Retryable() bool {
	switch k {
	case KindPermissionDenied, KindSystem, KindUnknown:
		return true
	}
	return false
}

// ClassifyError maps a raised fault onto its kind.
func ClassifyError(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, device.ErrPermissionDenied), errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, device.ErrInvalidState):
		return KindSystem
	case store.IsStorageFull(err):
		return KindStorage
	default:
		return KindUnknown
	}
}
