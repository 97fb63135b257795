// Package responder manages the peripheral role's advertising worker.
package responder
