// Package bletest provides in-memory transport implementations for tests.
//
// Central, Link and Advertiser satisfy the domain transport contracts against
// scripted peers, so session logic can be exercised without a radio or a
// system bus.
package bletest
