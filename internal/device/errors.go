package device

import "errors"

// Fault classes surfaced by device sources. The pipeline maps these onto
// its user-facing error kinds.
var (
	// ErrPermissionDenied means access to the device message store was
	// revoked or never granted.
	ErrPermissionDenied = errors.New("device store access denied")

	// ErrInvalidState means the source is in a state it cannot serve reads
	// from (closed handle, missing table, corrupted page).
	ErrInvalidState = errors.New("device store in invalid state")
)
