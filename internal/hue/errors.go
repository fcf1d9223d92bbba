package hue

import "errors"

// Bridge error taxonomy. Callers match with errors.Is; the wrapped message
// keeps the underlying transport or API detail.
var (
	// ErrBridgeUnreachable covers timeouts and transport failures. The
	// pre-call state is considered unchanged; no retry is attempted here.
	ErrBridgeUnreachable = errors.New("bridge unreachable")

	// ErrUnauthorized means the application key was rejected.
	ErrUnauthorized = errors.New("bridge rejected application key")

	// ErrNotFound means the addressed resource does not exist on the bridge.
	ErrNotFound = errors.New("resource not found")
)
