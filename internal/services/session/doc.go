// Package session coordinates the single chat session across both roles.
//
// The coordinator owns the Idle/Connecting/Connected state machine, claims
// the session slot for whichever side establishes contact first, and funnels
// every inbound payload through one queue.
package session
