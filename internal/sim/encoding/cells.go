// Package encoding packs dense cell-code rows for the frame stream.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrLength = errors.New("decoded cell count mismatch")

// EncodeCells run-length encodes codes as base64(uvarint code, uvarint run)
// pairs.
func EncodeCells(codes []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(codes); {
		c := codes[i]
		run := 1
		for i+run < len(codes) && codes[i+run] == c {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeCells reverses EncodeCells. want is the expected number of cells
// (width*height of the frame); the output never grows past it.
func DecodeCells(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFFFF {
			return nil, fmt.Errorf("cell code too large: %d", c)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("%w: run %d at %d", ErrLength, run, i)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(c))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d want %d", ErrLength, len(out), want)
	}
	return out, nil
}
