// Package initiator drives the central role.
//
// It discovers advertising peers, opens the outbound link, resolves the chat
// service, binds inbound notifications to the session's sink, and writes
// outbound payloads.
package initiator
