package domain

import (
	"fmt"
	"time"
)

// Role distinguishes which side established the active session.
type Role int

const (
	// RoleInitiator means we scanned, connected and hold the outbound link.
	RoleInitiator Role = iota
	// RoleResponder means a remote central claimed the session by writing to
	// our advertised service. There is no outbound link.
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// SessionState tracks the connection lifecycle. At most one session exists at
// a time across both roles.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the single active conversation with a peer.
type Session struct {
	ID            string
	Peer          PeerIdentity
	Role          Role
	EstablishedAt time.Time

	// Link is the outbound transport handle, owned exclusively by this
	// session. Nil for responder sessions, which receive through the
	// advertised characteristics instead.
	Link Link
}

// Status is a point-in-time snapshot of the session coordinator. Session
// fields are zero unless State is StateConnected.
type Status struct {
	State         SessionState
	SessionID     string
	Peer          PeerIdentity
	Role          Role
	EstablishedAt time.Time
}
