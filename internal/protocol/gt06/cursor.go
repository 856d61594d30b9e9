package gt06

import "encoding/binary"

// cursor walks a payload front to back. Callers check has before reading.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{buf: b}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) has(n int) bool {
	return c.remaining() >= n
}

func (c *cursor) u8() byte {
	b := c.buf[c.pos]
	c.pos++
	return b
}

func (c *cursor) u16() uint16 {
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) i16() int16 {
	return int16(c.u16())
}

func (c *cursor) u32() uint32 {
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

// uint reads an n-byte big-endian unsigned integer, n <= 8
func (c *cursor) uint(n int) uint64 {
	var v uint64
	for _, b := range c.buf[c.pos : c.pos+n] {
		v = v<<8 | uint64(b)
	}
	c.pos += n
	return v
}

func (c *cursor) bytes(n int) []byte {
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) peek(n int) []byte {
	return c.buf[c.pos : c.pos+n]
}

func (c *cursor) rest() []byte {
	return c.bytes(c.remaining())
}

func (c *cursor) skip(n int) {
	c.pos += n
}
