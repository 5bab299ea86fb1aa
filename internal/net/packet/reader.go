package packet

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Reader reads packet fields from a decoded payload.
// Bytes 0-1 are always the little-endian opcode.
//
// Byte reads and bit reads share one cursor: bit reads consume single bits
// LSB-first within the current byte, and any byte-level read first discards
// the remainder of a partially consumed byte (byte alignment rule).
type Reader struct {
	data   []byte
	off    int
	bitPos uint // 0..7, bits already consumed in data[off]
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 2} // skip opcode
}

// NewRawReader reads from offset 0 with no opcode header.
func NewRawReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Opcode() uint16 {
	if len(r.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data[0:2])
}

// Align discards the rest of a partially consumed byte.
func (r *Reader) Align() {
	if r.bitPos != 0 {
		r.bitPos = 0
		r.off++
	}
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	r.Align()
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	r.Align()
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	return int32(r.ReadDU())
}

// ReadDU reads 4 bytes as little-endian uint32.
func (r *Reader) ReadDU() uint32 {
	r.Align()
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	r.Align()
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadF reads 4 bytes as a little-endian IEEE-754 float32.
func (r *Reader) ReadF() float32 {
	return math.Float32frombits(r.ReadDU())
}

// ReadBit reads a single bit, LSB-first within the current byte.
func (r *Reader) ReadBit() uint32 {
	if r.off >= len(r.data) {
		return 0
	}
	v := uint32(r.data[r.off]>>r.bitPos) & 1
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.off++
	}
	return v
}

// ReadBits reads n bits (n <= 32), LSB-first. The first bit read becomes
// bit 0 of the result.
func (r *Reader) ReadBits(n uint) uint32 {
	var v uint32
	for i := uint(0); i < n; i++ {
		v |= r.ReadBit() << i
	}
	return v
}

// ReadBitsSigned reads n bits and sign-extends the result.
func (r *Reader) ReadBitsSigned(n uint) int32 {
	v := r.ReadBits(n)
	if n < 32 && v&(1<<(n-1)) != 0 {
		v |= ^uint32(0) << n
	}
	return int32(v)
}

// ReadString reads a bit-packed wide string: one extended flag bit, then
// 7 (short form, length < 128) or 15 (extended form) length bits, then
// length UTF-16LE code units. The cursor is byte-aligned after the length
// bits and again after the character data.
func (r *Reader) ReadString() string {
	ext := r.ReadBit()
	var n uint32
	if ext == 0 {
		n = r.ReadBits(7)
	} else {
		n = r.ReadBits(15)
	}
	r.Align()
	raw := r.ReadBytes(int(n) * 2)
	return utf16leToUTF8(raw)
}

// utf16leToUTF8 decodes UTF-16LE bytes to a UTF-8 string.
func utf16leToUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return string(raw) // fallback to raw bytes
	}
	return string(out)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	r.Align()
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread whole bytes.
func (r *Reader) Remaining() int {
	n := len(r.data) - r.off
	if r.bitPos != 0 {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}
