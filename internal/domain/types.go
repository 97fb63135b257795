package domain

import "fmt"

// PeerIdentity names a remote device the way the transport reports it.
type PeerIdentity struct {
	Address string // transport address, a MAC on BlueZ; may be empty when unresolvable
	Name    string // advertised device name, often empty
}

// Label renders the identity for logs and the status line.
func (p PeerIdentity) Label() string {
	switch {
	case p.Name != "" && p.Address != "":
		return fmt.Sprintf("%s (%s)", p.Name, p.Address)
	case p.Address != "":
		return p.Address
	case p.Name != "":
		return p.Name
	default:
		return "unknown peer"
	}
}

// IsZero reports whether nothing about the peer is known.
func (p PeerIdentity) IsZero() bool {
	return p.Address == "" && p.Name == ""
}

// Discovery is a single scan observation.
type Discovery struct {
	Peer PeerIdentity

	// ChatService records whether the advertisement carried ServiceUUID.
	ChatService bool
}

// Direction marks which way a message travelled.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Message is one chat message as the UI consumes it.
//
// The wire payload prefixes the sender's display name and is never re-split
// on receipt, so inbound messages keep the decoded payload whole in Body and
// leave Sender empty. Outbound messages carry the local display name in
// Sender and the typed text in Body.
type Message struct {
	Sender    string
	Body      string
	Direction Direction
}

// ServiceInfo describes one resolved remote GATT service.
type ServiceInfo struct {
	UUID            string
	Characteristics []string
}

// Advertisement describes the responder surface registered with the platform
// stack: the broadcast name plus the chat service and its characteristics.
type Advertisement struct {
	LocalName     string
	ServiceUUID   string
	WriteCharUUID string // written by remote centrals, carries inbound messages
	ReadCharUUID  string // read or subscribed to by remote centrals
}
