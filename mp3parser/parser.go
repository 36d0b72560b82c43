package mp3parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// read syncsafe int for ID3v2 size
func syncSafeToInt(b []byte) int {
	return int(b[0]&0x7F)<<21 |
		int(b[1]&0x7F)<<14 |
		int(b[2]&0x7F)<<7 |
		int(b[3]&0x7F)
}

func ReadID3v2(r io.ReadSeeker) (*ID3v2Header, []byte, error) {
	buf := make([]byte, 10)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// too short for a tag, let the frame scan handle it
			_, seekErr := r.Seek(int64(-n), io.SeekCurrent)
			return nil, nil, seekErr
		}
		return nil, nil, err
	}
	if string(buf[:3]) != "ID3" {
		// no ID3v2, seek back
		_, err := r.Seek(-10, io.SeekCurrent)
		return nil, nil, err
	}
	h := &ID3v2Header{
		Version: [2]byte{buf[3], buf[4]},
		Flags:   buf[5],
		Size:    syncSafeToInt(buf[6:10]),
	}

	// Read the ID3v2 data
	id3Data := make([]byte, h.Size)
	_, err = io.ReadFull(r, id3Data)
	if err != nil {
		return nil, nil, fmt.Errorf("truncated ID3v2 tag: %w", err)
	}

	return h, id3Data, nil
}

// ParseFrameHeader decodes a 4-byte MPEG-1 Layer III frame header
func ParseFrameHeader(headerBytes []byte) (*MP3FrameHeader, error) {
	header := binary.BigEndian.Uint32(headerBytes)

	// check sync
	if (header & 0xFFE00000) != 0xFFE00000 {
		return nil, fmt.Errorf("invalid sync word: 0x%08X", header)
	}

	versionID := int((header >> 19) & 0x3)
	layer := int((header >> 17) & 0x3)
	prot := ((header >> 16) & 0x1) == 0
	bitrateIdx := int((header >> 12) & 0xF)
	sampleRateIdx := int((header >> 10) & 0x3)
	padding := ((header >> 9) & 0x1) == 1
	channelMode := int((header >> 6) & 0x3)

	if versionID != 3 || layer != 1 {
		return nil, fmt.Errorf("only MPEG-1 Layer III frames are supported")
	}

	// lookup tables (MPEG1 Layer III only for now)
	bitrateTable := [16]int{
		0, 32, 40, 48, 56, 64, 80, 96,
		112, 128, 160, 192, 224, 256, 320, 0,
	}
	sampleRateTable := [4]int{44100, 48000, 32000, 0}

	bitrate := bitrateTable[bitrateIdx] * 1000
	sampleRate := sampleRateTable[sampleRateIdx]

	if bitrate == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("unsupported bitrate or samplerate")
	}

	frameLen := (144*bitrate)/sampleRate + btoi(padding)

	return &MP3FrameHeader{
		VersionID:     versionID,
		Layer:         layer,
		ProtectionBit: prot,
		Bitrate:       bitrate,
		SampleRate:    sampleRate,
		Padding:       padding,
		ChannelMode:   channelMode,
		FrameLength:   frameLen,
	}, nil
}

// ParseMP3File parses an entire MP3 file. Bytes that do not continue the
// frame sequence (an ID3v1 tag, junk, a truncated last frame) are kept in
// Trailer so WriteMP3File reproduces the input exactly.
func ParseMP3File(data []byte) (*MP3File, error) {
	reader := bytes.NewReader(data)

	mp3File := &MP3File{}

	// Read ID3v2 if present
	id3v2, id3v2Data, err := ReadID3v2(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read ID3v2: %w", err)
	}
	mp3File.ID3v2 = id3v2
	mp3File.ID3v2Data = id3v2Data

	pos := len(data) - reader.Len()
	for pos+4 <= len(data) {
		frameHeader, err := ParseFrameHeader(data[pos : pos+4])
		if err != nil || pos+frameHeader.FrameLength > len(data) {
			break
		}

		frame := &MP3Frame{
			Header:      frameHeader,
			HeaderBytes: bytes.Clone(data[pos : pos+4]),
			Data:        bytes.Clone(data[pos+4 : pos+frameHeader.FrameLength]),
		}
		mp3File.Frames = append(mp3File.Frames, frame)
		pos += frameHeader.FrameLength
	}
	mp3File.Trailer = bytes.Clone(data[pos:])

	if len(mp3File.Frames) == 0 {
		return nil, fmt.Errorf("no MPEG audio frames found")
	}
	mp3File.ID3v1 = ReadID3v1(mp3File.Trailer)

	return mp3File, nil
}

// ReadID3v1 parses a 128-byte ID3v1 tag at the end of data, if there is one
func ReadID3v1(data []byte) *ID3v1Tag {
	if len(data) < 128 {
		return nil
	}
	buf := data[len(data)-128:]
	if string(buf[:3]) != "TAG" {
		return nil
	}
	trim := func(b []byte) string {
		return string(bytes.TrimRight(b, "\x00 "))
	}
	return &ID3v1Tag{
		Title:   trim(buf[3:33]),
		Artist:  trim(buf[33:63]),
		Album:   trim(buf[63:93]),
		Year:    trim(buf[93:97]),
		Comment: trim(buf[97:127]),
		Genre:   buf[127],
	}
}

func WriteMP3File(mp3File *MP3File) ([]byte, error) {
	var buf bytes.Buffer

	// Write ID3v2 if present
	if mp3File.ID3v2 != nil {
		// Write ID3v2 header
		buf.WriteString("ID3")
		buf.WriteByte(mp3File.ID3v2.Version[0])
		buf.WriteByte(mp3File.ID3v2.Version[1])
		buf.WriteByte(mp3File.ID3v2.Flags)

		// Write syncsafe size
		size := mp3File.ID3v2.Size
		sizeBuf := make([]byte, 4)
		sizeBuf[0] = byte((size >> 21) & 0x7F)
		sizeBuf[1] = byte((size >> 14) & 0x7F)
		sizeBuf[2] = byte((size >> 7) & 0x7F)
		sizeBuf[3] = byte(size & 0x7F)
		buf.Write(sizeBuf)

		// Write ID3v2 data
		buf.Write(mp3File.ID3v2Data)
	}

	for _, frame := range mp3File.Frames {
		if len(frame.Data) != frame.Header.FrameLength-4 {
			return nil, fmt.Errorf("frame data is %d bytes, header expects %d", len(frame.Data), frame.Header.FrameLength-4)
		}
		buf.Write(frame.HeaderBytes)
		buf.Write(frame.Data)
	}
	buf.Write(mp3File.Trailer)

	return buf.Bytes(), nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
