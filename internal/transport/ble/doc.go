// Package ble provides the Bluetooth Low Energy transports: a central built
// on tinygo.org/x/bluetooth, and a BlueZ D-Bus peripheral exposing the chat
// service for the responder role.
//
// Both are Linux-only. Other platforms get stubs that fail fast, leaving the
// rest of the app testable against the in-memory transports.
package ble
