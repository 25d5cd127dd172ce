// Package wire implements the bolt-on framing shared by every wire type that
// can carry an optional access-condition payload: core bytes, an escape
// delimiter, then the condition payload.
package wire

import "bytes"

// Delimiter is the 4-byte escape sequence that separates the core,
// condition-free bytes of a serialized object from its trailing condition
// payload. The underlying core codec (Umbral's MessageKit encoding) is
// assumed to never produce this sequence on its own; see the internal/wire
// section of DESIGN.md for what happens if that assumption is violated.
var Delimiter = []byte{0xBC, 0xBC, 0xBC, 0xBC}

// Split splits b into its core bytes and condition payload. ok is false if
// the delimiter is not present, in which case core is all of b and payload
// is nil.
func Split(b []byte) (core, payload []byte, ok bool) {
	idx := bytes.Index(b, Delimiter)
	if idx < 0 {
		return b, nil, false
	}
	return b[:idx], b[idx+len(Delimiter):], true
}

// Join concatenates core and, if payload is non-empty, the delimiter and
// payload.
func Join(core, payload []byte) []byte {
	if len(payload) == 0 {
		out := make([]byte, len(core))
		copy(out, core)
		return out
	}
	out := make([]byte, 0, len(core)+len(Delimiter)+len(payload))
	out = append(out, core...)
	out = append(out, Delimiter...)
	out = append(out, payload...)
	return out
}
