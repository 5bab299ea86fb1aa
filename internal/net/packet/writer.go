package packet

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Writer builds a server packet. All multi-byte writes are little-endian.
// Bit writes share the buffer with byte writes: bits accumulate LSB-first
// into the current byte, and any byte-level write first pads the partial
// byte with zero bits (byte alignment rule, mirror of Reader).
type Writer struct {
	buf    []byte
	bitPos uint // 0..7, bits already written into buf[len(buf)-1]
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode uint16) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteH(opcode)
	return w
}

// Align pads the current byte with zero bits so the next write starts on
// a byte boundary.
func (w *Writer) Align() {
	w.bitPos = 0
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.Align()
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.Align()
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteD writes 4 bytes little-endian (signed).
func (w *Writer) WriteD(v int32) {
	w.WriteDU(uint32(v))
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	w.Align()
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.Align()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteF writes a little-endian IEEE-754 float32.
func (w *Writer) WriteF(v float32) {
	w.WriteDU(math.Float32bits(v))
}

// WriteBit writes a single bit, LSB-first within the current byte.
func (w *Writer) WriteBit(v uint32) {
	if w.bitPos == 0 {
		w.buf = append(w.buf, 0)
	}
	if v&1 != 0 {
		w.buf[len(w.buf)-1] |= 1 << w.bitPos
	}
	w.bitPos++
	if w.bitPos == 8 {
		w.bitPos = 0
	}
}

// WriteBits writes the low n bits of v, LSB-first.
func (w *Writer) WriteBits(v uint32, n uint) {
	for i := uint(0); i < n; i++ {
		w.WriteBit(v >> i)
	}
}

// WriteBitsSigned writes the low n bits of a signed value (two's complement).
func (w *Writer) WriteBitsSigned(v int32, n uint) {
	w.WriteBits(uint32(v), n)
}

// WriteString writes a bit-packed wide string: extended flag bit, 7 or 15
// length bits, then UTF-16LE code units. Strings shorter than 128 code
// units use the short form.
func (w *Writer) WriteString(s string) {
	units := utf16.Encode([]rune(s))
	n := uint32(len(units))
	if n < 128 {
		w.WriteBit(0)
		w.WriteBits(n, 7)
	} else {
		w.WriteBit(1)
		w.WriteBits(n, 15)
	}
	w.Align()
	for _, u := range units {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], u)
		w.buf = append(w.buf, b[:]...)
	}
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.Align()
	w.buf = append(w.buf, b...)
}

// Bytes returns the encoded packet content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length in whole bytes (a partial byte counts).
func (w *Writer) Len() int {
	return len(w.buf)
}
