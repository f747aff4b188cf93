package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Store failure kinds. Repositories wrap these so callers can decide
	// whether a failure is retryable without inspecting Badger internals.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrConflict         = fmt.Errorf("conflict")

	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrReceiverNotFound  = fmt.Errorf("receiver not found")
	ErrPostNotFound      = fmt.Errorf("post not found")
	ErrCommentNotFound   = fmt.Errorf("comment not found")

	// ErrPresenceUnderflow signals a decrement without a matching increment.
	// It is clamped and logged, never returned to a peer.
	ErrPresenceUnderflow = fmt.Errorf("presence count underflow")

	ErrHubClosed = fmt.Errorf("broadcast hub closed")
)
