// Package queue buffers inbound messages between transport callbacks and the
// interactive display loop.
package queue
