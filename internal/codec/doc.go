// Package codec encodes and decodes the chat wire payload.
//
// A payload is the UTF-8 encoding of "{name}: {text}", produced whole, sent
// in a single characteristic write, and displayed whole on receipt. Nothing
// ever re-splits it on the colon.
package codec
