package stego

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// FrameMagic opens every embedded frame
	FrameMagic = "MCSF"
	// FrameEnd closes every embedded frame
	FrameEnd = "MCSE"
	// FrameVersion is the current frame layout version
	FrameVersion = 0x02

	// fixed part: magic, version, flags, ordinal, total, payload length, payload id
	frameHeaderSize  = 4 + 1 + 1 + 4 + 4 + 8 + 8
	frameTrailerSize = 4 + len(FrameEnd)

	// FrameOverhead is the size of a frame carrying no name, seed or data
	FrameOverhead = frameHeaderSize + 4 + frameTrailerSize

	maxNameLength = 0xFFFF
	// MaxChunks bounds how many carriers a single payload may be spread over
	MaxChunks = 1 << 16
)

// Frame flags
const (
	FlagLast        uint8 = 1 << 0
	FlagName        uint8 = 1 << 1
	FlagInterleaved uint8 = 1 << 2
	FlagEncrypted   uint8 = 1 << 3
)

// Chunk is one carrier's share of the payload plus the metadata needed to put
// it back in place.
//
// Byte layout (big-endian):
//
//	0-3:   magic "MCSF"
//	4:     version
//	5:     flags
//	6-9:   ordinal
//	10-13: total chunk count
//	14-21: stored payload length
//	22-29: payload id, shared by every chunk of one Split
//	       [flags&FlagName]        uint16 name length, name
//	       [flags&FlagInterleaved] uint64 seed
//	       uint32 data length, data
//	       uint32 CRC32-IEEE of everything above
//	       end marker "MCSE"
type Chunk struct {
	Ordinal     uint32
	Total       uint32
	Last        bool
	Name        string
	Interleaved bool
	Encrypted   bool
	Seed        uint64
	PayloadLen  uint64
	PayloadID   uint64
	Data        []byte
}

func (c *Chunk) flags() uint8 {
	var flags uint8
	if c.Last {
		flags |= FlagLast
	}
	if c.Name != "" {
		flags |= FlagName
	}
	if c.Interleaved {
		flags |= FlagInterleaved
	}
	if c.Encrypted {
		flags |= FlagEncrypted
	}
	return flags
}

// FrameSize returns the length of the serialized chunk
func (c *Chunk) FrameSize() int {
	size := frameHeaderSize + 4 + len(c.Data) + frameTrailerSize
	if c.Name != "" {
		size += 2 + len(c.Name)
	}
	if c.Interleaved {
		size += 8
	}
	return size
}

// ChunkCapacity returns how many data bytes fit in capacityBytes once the
// frame around them is paid for, name and seed included.
func ChunkCapacity(capacityBytes int, name string, interleaved bool) int {
	empty := Chunk{Name: name, Interleaved: interleaved}
	return max(capacityBytes-empty.FrameSize(), 0)
}

// MarshalBinary serializes the chunk into a self-delimiting frame
func (c *Chunk) MarshalBinary() ([]byte, error) {
	if len(c.Name) > maxNameLength {
		return nil, fmt.Errorf("payload name too long: %d bytes", len(c.Name))
	}
	if uint64(len(c.Data)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("chunk too large: %d bytes", len(c.Data))
	}
	if c.Total == 0 || c.Ordinal >= c.Total {
		return nil, fmt.Errorf("ordinal %d out of range for %d chunks", c.Ordinal, c.Total)
	}

	buf := make([]byte, 0, c.FrameSize())
	buf = append(buf, FrameMagic...)
	buf = append(buf, FrameVersion, c.flags())
	buf = binary.BigEndian.AppendUint32(buf, c.Ordinal)
	buf = binary.BigEndian.AppendUint32(buf, c.Total)
	buf = binary.BigEndian.AppendUint64(buf, c.PayloadLen)
	buf = binary.BigEndian.AppendUint64(buf, c.PayloadID)

	if c.Name != "" {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Name)))
		buf = append(buf, c.Name...)
	}
	if c.Interleaved {
		buf = binary.BigEndian.AppendUint64(buf, c.Seed)
	}

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Data)))
	buf = append(buf, c.Data...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	buf = append(buf, FrameEnd...)
	return buf, nil
}

// UnmarshalChunk parses a frame produced by MarshalBinary. Bytes after the end
// marker are ignored.
func UnmarshalChunk(frame []byte) (*Chunk, error) {
	r := frameReader{buf: frame}

	magic := r.next(4)
	if r.err != nil || string(magic) != FrameMagic {
		return nil, fmt.Errorf("%w: frame magic not found", ErrMalformedFrame)
	}
	version := r.readByte()
	flags := r.readByte()
	if r.err == nil && version != FrameVersion {
		return nil, fmt.Errorf("%w: unsupported frame version %d", ErrMalformedFrame, version)
	}

	c := &Chunk{
		Ordinal:     r.readUint32(),
		Total:       r.readUint32(),
		PayloadLen:  r.readUint64(),
		PayloadID:   r.readUint64(),
		Last:        flags&FlagLast != 0,
		Interleaved: flags&FlagInterleaved != 0,
		Encrypted:   flags&FlagEncrypted != 0,
	}
	if flags&FlagName != 0 {
		nameLen := int(r.readUint16())
		c.Name = string(r.next(nameLen))
	}
	if c.Interleaved {
		c.Seed = r.readUint64()
	}
	dataLen := int(r.readUint32())
	data := r.next(dataLen)
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, r.err)
	}
	c.Data = bytes.Clone(data)
	if c.Data == nil {
		c.Data = []byte{}
	}

	covered := r.pos
	checksum := r.readUint32()
	end := r.next(len(FrameEnd))
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, r.err)
	}
	if string(end) != FrameEnd {
		return nil, fmt.Errorf("%w: end marker not found", ErrMalformedFrame)
	}
	if crc32.ChecksumIEEE(frame[:covered]) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedFrame)
	}

	if c.Total == 0 || c.Total > MaxChunks || c.Ordinal >= c.Total {
		return nil, fmt.Errorf("%w: ordinal %d out of range for %d chunks", ErrMalformedFrame, c.Ordinal, c.Total)
	}
	if c.Last != (c.Ordinal == c.Total-1) {
		return nil, fmt.Errorf("%w: last flag inconsistent with ordinal %d of %d", ErrMalformedFrame, c.Ordinal, c.Total)
	}
	return c, nil
}

// ReadFrame pulls one frame out of a carrier, reading only as many bits as the
// frame's own length fields call for.
func (ch *Channel) ReadFrame(samples []byte) (*Chunk, error) {
	var frame []byte
	read := func(n int) ([]byte, error) {
		part, err := ch.ExtractBytes(samples, len(frame), n)
		if err != nil {
			if errors.Is(err, ErrCapacityExceeded) {
				return nil, fmt.Errorf("%w: frame runs past end of carrier", ErrMalformedFrame)
			}
			return nil, err
		}
		frame = append(frame, part...)
		return part, nil
	}

	header, err := read(frameHeaderSize)
	if err != nil {
		return nil, err
	}
	if string(header[:4]) != FrameMagic {
		return nil, fmt.Errorf("%w: frame magic not found", ErrMalformedFrame)
	}

	flags := header[5]
	if flags&FlagName != 0 {
		nameLen, err := read(2)
		if err != nil {
			return nil, err
		}
		if _, err := read(int(binary.BigEndian.Uint16(nameLen))); err != nil {
			return nil, err
		}
	}
	if flags&FlagInterleaved != 0 {
		if _, err := read(8); err != nil {
			return nil, err
		}
	}

	dataLen, err := read(4)
	if err != nil {
		return nil, err
	}
	remaining := int64(binary.BigEndian.Uint32(dataLen)) + int64(frameTrailerSize)
	if remaining > int64(ch.CapacityBytes(samples)-len(frame)) {
		return nil, fmt.Errorf("%w: frame runs past end of carrier", ErrMalformedFrame)
	}
	if _, err := read(int(remaining)); err != nil {
		return nil, err
	}

	return UnmarshalChunk(frame)
}

// WriteFrame serializes c and embeds it at the start of samples
func (ch *Channel) WriteFrame(samples []byte, c *Chunk) error {
	frame, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return ch.EmbedBytes(samples, frame)
}

type frameReader struct {
	buf []byte
	pos int
	err error
}

func (r *frameReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("need %d bytes at offset %d, frame has %d", n, r.pos, len(r.buf))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *frameReader) readByte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *frameReader) readUint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *frameReader) readUint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *frameReader) readUint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
