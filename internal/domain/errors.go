package domain

import "errors"

// Failure taxonomy for session and transport operations. Producers wrap a
// sentinel with fmt.Errorf("%w: ...", ...) to attach detail; callers classify
// with errors.Is.
var (
	// ErrAlreadyConnected rejects a connect attempt while any session, either
	// role, is active or being established.
	ErrAlreadyConnected = errors.New("session already active")

	// ErrConnectFailed covers dial and link-setup failures.
	ErrConnectFailed = errors.New("connect failed")

	// ErrServiceNotFound means the peer's GATT database lacks the chat service.
	ErrServiceNotFound = errors.New("chat service not found")

	// ErrCharacteristicsNotFound means the chat service is present but one of
	// its characteristics is missing.
	ErrCharacteristicsNotFound = errors.New("chat characteristics not found")

	// ErrNotConnected rejects sends without an outbound link.
	ErrNotConnected = errors.New("not connected")

	// ErrWriteFailed wraps transport write errors. The session survives.
	ErrWriteFailed = errors.New("write failed")

	// ErrDecode marks an inbound payload that is not valid UTF-8.
	ErrDecode = errors.New("malformed message payload")

	// ErrAdvertisingUnavailable means the platform cannot take the peripheral
	// role. The app stays usable as an initiator.
	ErrAdvertisingUnavailable = errors.New("advertising unavailable")

	// ErrPeerBusy refuses an inbound write while a session with a different
	// peer holds the slot.
	ErrPeerBusy = errors.New("busy with another peer")

	// ErrClosed rejects operations on a component that has shut down.
	ErrClosed = errors.New("closed")
)
