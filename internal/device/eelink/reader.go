package eelink

import (
	"encoding/binary"
	"errors"
)

var errShortData = errors.New("truncated data")

// reader walks a byte buffer extracting big-endian fields.
type reader struct {
	d   []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.d) - r.off
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errShortData
	}
	d := r.d[r.off : r.off+n]
	r.off += n
	return d, nil
}

func (r *reader) uint8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, errShortData
	}
	v := r.d[r.off]
	r.off++
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errShortData
	}
	v := binary.BigEndian.Uint32(r.d[r.off:])
	r.off += 4
	return v, nil
}
