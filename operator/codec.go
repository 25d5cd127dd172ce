package operator

import (
	"encoding/binary"
	"fmt"
)

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendLenPrefixed(b, v []byte) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(v)))
	b = append(b, tmp[:]...)
	return append(b, v...)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, fmt.Errorf("operator: unexpected end of encoded data")
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *byteReader) lenPrefixed() ([]byte, error) {
	lenBytes, err := r.bytes(2)
	if err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(lenBytes))
	return r.bytes(n)
}
