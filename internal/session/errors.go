package session

import "errors"

var (
	// ErrSessionClosed rejects any mutating call after submission. The
	// persisted result is never touched; the session never reopens.
	ErrSessionClosed = errors.New("session already submitted")

	// ErrIndexOutOfRange marks an answer or flag aimed outside the active
	// question sequence.
	ErrIndexOutOfRange = errors.New("question index out of range")
)
