package domain

// GATT identifiers for the chat protocol. Both roles depend on these being
// byte-for-byte stable: the initiator matches them against the remote GATT
// database and the responder registers them with the local stack.
const (
	// ServiceUUID identifies the chat service in advertisements and GATT.
	ServiceUUID = "00001234-0000-1000-8000-00805f9b34fb"

	// TXCharUUID is written by the remote central. One write carries exactly
	// one message payload.
	TXCharUUID = "00001235-0000-1000-8000-00805f9b34fb"

	// RXCharUUID is read or subscribed to by the remote central for messages
	// flowing back from the advertising side.
	RXCharUUID = "00001236-0000-1000-8000-00805f9b34fb"

	// LocalNamePrefix starts every advertised device name. Scanners use it as
	// secondary evidence that a device speaks the chat protocol.
	LocalNamePrefix = "BitChat"
)

// AdvertisedName renders the device name broadcast while advertising.
func AdvertisedName(displayName string) string {
	return LocalNamePrefix + "-" + displayName
}
