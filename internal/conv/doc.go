// Package conv provides safe integer conversions and the little-endian
// float32 encoding used by on-disk vector formats.
//
// The integer helpers validate untrusted values read from disk (file
// footers, counts, offsets) before they are used as sizes or indexes.
package conv
