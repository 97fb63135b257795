// Package app wires application dependencies for the CLI.
//
// It loads Config from file, environment and defaults, builds the BLE
// transports and high-level services from it, and exposes them via the App
// struct for commands to use. Tests inject fake transports through
// Config.Central and Config.Advertiser.
package app
