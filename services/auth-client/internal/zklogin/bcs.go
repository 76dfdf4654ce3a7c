package zklogin

import (
	"bytes"
	"encoding/binary"
)

// bcsWriter writes the subset of BCS the zkLogin signature needs:
// ULEB128 length prefixes, u8, little-endian u64, strings and vectors.
type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) uleb128(n uint64) {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if n == 0 {
			return
		}
	}
}

func (w *bcsWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) bytes(b []byte) {
	w.uleb128(uint64(len(b)))
	w.buf.Write(b)
}

func (w *bcsWriter) str(s string) {
	w.bytes([]byte(s))
}

func (w *bcsWriter) strs(v []string) {
	w.uleb128(uint64(len(v)))
	for _, s := range v {
		w.str(s)
	}
}

func (w *bcsWriter) Bytes() []byte {
	return w.buf.Bytes()
}
