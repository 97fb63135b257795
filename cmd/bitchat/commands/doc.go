// Package commands defines the bitchat CLI.
//
// Commands
//
//   - chat     Interactive session running both BLE roles: it advertises the
//     chat service for inbound peers and accepts /-verbs for scanning,
//     connecting, and tearing down, with plain lines sent as messages
//   - scan     One discovery sweep printing nearby chat peers
//   - version  Print the build version
//
// # Implementation
//
// The root command merges flags over the loaded configuration before any
// subcommand runs. Commands that touch the radio build the dependency graph
// (transports, services, inbox) themselves, so `version` works on hosts
// without a BLE adapter.
package commands
