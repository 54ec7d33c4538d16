// Package wire implements the message codec: length-framed binary
// packing of typed fields into a growable buffer, and the hex-text
// envelope used to carry that buffer safely over the named queue
// transport.
//
// POSIX message queues have no portable Go client, so the transport
// itself lives in internal/queue; this package only deals with bytes.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Buffer is a growable little-endian byte buffer with a read cursor:
// pack appends, unpack advances.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer returns an empty buffer ready for packing.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// BufferFromBytes wraps existing bytes for unpacking, cursor at zero.
func BufferFromBytes(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Bytes returns the buffer's raw packed contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset rewinds the read cursor to the start without discarding data,
// for reuse before each unpack pass.
func (b *Buffer) Reset() {
	b.pos = 0
}

// PutUint32 appends a little-endian u32.
func (b *Buffer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

// PutUint64 appends a little-endian u64.
func (b *Buffer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

// PutBytes appends a u32 length prefix followed by the raw bytes.
func (b *Buffer) PutBytes(p []byte) {
	b.PutUint32(uint32(len(p)))
	b.data = append(b.data, p...)
}

// GetUint32 reads and advances past a little-endian u32.
func (b *Buffer) GetUint32() (uint32, error) {
	if b.pos+4 > len(b.data) {
		return 0, fmt.Errorf("wire: buffer underrun reading u32 at offset %d", b.pos)
	}
	v := binary.LittleEndian.Uint32(b.data[b.pos : b.pos+4])
	b.pos += 4
	return v, nil
}

// GetUint64 reads and advances past a little-endian u64.
func (b *Buffer) GetUint64() (uint64, error) {
	if b.pos+8 > len(b.data) {
		return 0, fmt.Errorf("wire: buffer underrun reading u64 at offset %d", b.pos)
	}
	v := binary.LittleEndian.Uint64(b.data[b.pos : b.pos+8])
	b.pos += 8
	return v, nil
}

// GetBytes reads a u32 length prefix then that many raw bytes.
func (b *Buffer) GetBytes() ([]byte, error) {
	n, err := b.GetUint32()
	if err != nil {
		return nil, err
	}
	if b.pos+int(n) > len(b.data) {
		return nil, fmt.Errorf("wire: buffer underrun reading %d bytes at offset %d", n, b.pos)
	}
	out := make([]byte, n)
	copy(out, b.data[b.pos:b.pos+int(n)])
	b.pos += int(n)
	return out, nil
}

// ToHex hex-encodes the packed bytes for embedding in an envelope.
func (b *Buffer) ToHex() string {
	return hex.EncodeToString(b.data)
}

// FromHex decodes a hex string into a fresh unpack-ready buffer.
func FromHex(s string) (*Buffer, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("wire: odd-length hex string")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: invalid hex string: %w", err)
	}
	return &Buffer{data: raw}, nil
}
