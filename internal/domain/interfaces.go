package domain

import (
	"context"
	"time"
)

// Central scans for and connects to advertising peers.
type Central interface {
	// Scan observes advertisements until timeout elapses or ctx is cancelled,
	// invoking found on the calling goroutine once per distinct device.
	Scan(ctx context.Context, timeout time.Duration, found func(Discovery)) error

	// Connect dials the given transport address and returns an open link.
	Connect(ctx context.Context, address string) (Link, error)
}

// Link is an open connection to a remote device. Exactly one session owns a
// link at a time.
type Link interface {
	// Peer identifies the remote end.
	Peer() PeerIdentity

	// Services resolves the remote GATT database.
	Services(ctx context.Context) ([]ServiceInfo, error)

	// Write delivers payload to the named characteristic and waits for the
	// acknowledgement.
	Write(ctx context.Context, characteristicUUID string, payload []byte) error

	// Subscribe starts notifications on the named characteristic. deliver
	// runs on a transport goroutine and must not block.
	Subscribe(characteristicUUID string, deliver func(payload []byte)) error

	// Unsubscribe stops notifications previously started with Subscribe.
	Unsubscribe(characteristicUUID string) error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Advertiser exposes the responder surface: an advertisement plus the chat
// GATT service, with inbound writes funnelled into a MessageSink.
//
// Registration with the platform stack is asynchronous. Advertise returns
// once the requests are submitted; the result channel reports one outcome per
// registration stage and is then closed. A platform that cannot take the
// peripheral role fails fast with ErrAdvertisingUnavailable.
type Advertiser interface {
	Advertise(ctx context.Context, ad Advertisement, sink MessageSink) (<-chan error, error)

	// Close withdraws the advertisement and service. Idempotent.
	Close() error
}

// MessageSink accepts raw inbound payloads on behalf of the session owner.
//
// Accept is invoked from transport callback contexts (notification handlers,
// bus write dispatch) and must not block. A non-nil error instructs the
// transport to refuse the write; undecodable payloads are dropped internally
// and are not errors.
type MessageSink interface {
	Accept(from PeerIdentity, payload []byte) error
}

// InitiatorService performs the central role: discovery, link setup and
// outbound writes. Session bookkeeping stays with the coordinator.
type InitiatorService interface {
	Scan(ctx context.Context, timeout time.Duration) ([]PeerIdentity, error)
	Connect(ctx context.Context, address string, sink MessageSink) (*Session, error)
	Send(ctx context.Context, sess *Session, text string) (Message, error)
	Disconnect(sess *Session)
}

// SessionCoordinator owns the single session slot across both roles and is
// the sink every inbound payload funnels through.
type SessionCoordinator interface {
	MessageSink

	Connect(ctx context.Context, address string) (Status, error)
	Send(ctx context.Context, text string) (Message, error)

	// Teardown releases the session, best-effort, and returns the status it
	// replaced. Idempotent.
	Teardown() Status

	Status() Status
}

// ResponderService manages the peripheral role's advertising worker.
type ResponderService interface {
	Start(ctx context.Context) error
	Stop()

	// Advertising reports whether the advertisement is believed live.
	Advertising() bool
}
