package mp3parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, joint stereo
var header128 = []byte{0xFF, 0xFB, 0x90, 0x40}

func frame(fill byte, padded bool) []byte {
	h := bytes.Clone(header128)
	n := 417
	if padded {
		h[2] |= 0x02
		n++
	}
	body := bytes.Repeat([]byte{fill}, n-4)
	return append(h, body...)
}

func TestParseFrameHeader(t *testing.T) {
	h, err := ParseFrameHeader(header128)
	require.NoError(t, err)
	assert.Equal(t, 128000, h.Bitrate)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, 417, h.FrameLength)
	assert.Equal(t, 1, h.ChannelMode)
	assert.False(t, h.ProtectionBit)

	padded := bytes.Clone(header128)
	padded[2] |= 0x02
	h, err = ParseFrameHeader(padded)
	require.NoError(t, err)
	assert.Equal(t, 418, h.FrameLength)

	_, err = ParseFrameHeader([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
	// MPEG-2
	_, err = ParseFrameHeader([]byte{0xFF, 0xF3, 0x90, 0x40})
	assert.Error(t, err)
	// free format bitrate
	_, err = ParseFrameHeader([]byte{0xFF, 0xFB, 0x00, 0x40})
	assert.Error(t, err)
}

func TestParseWriteRoundTrip(t *testing.T) {
	id3 := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x0A"), bytes.Repeat([]byte{'t'}, 10)...)
	tag := make([]byte, 128)
	copy(tag, "TAGtitle")

	var data []byte
	data = append(data, id3...)
	data = append(data, frame(1, false)...)
	data = append(data, frame(2, true)...)
	data = append(data, frame(3, false)...)
	data = append(data, []byte("junk")...)
	data = append(data, tag...)

	file, err := ParseMP3File(data)
	require.NoError(t, err)
	require.NotNil(t, file.ID3v2)
	assert.Equal(t, 10, file.ID3v2.Size)
	require.Len(t, file.Frames, 3)
	assert.Len(t, file.Frames[1].Data, 414)
	assert.Equal(t, append([]byte("junk"), tag...), file.Trailer)
	// junk before the tag stays in the trailer
	require.NotNil(t, file.ID3v1)
	assert.Equal(t, "title", file.ID3v1.Title)

	out, err := WriteMP3File(file)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestParseTruncatedFrame(t *testing.T) {
	data := append(frame(1, false), frame(2, false)[:100]...)
	file, err := ParseMP3File(data)
	require.NoError(t, err)
	require.Len(t, file.Frames, 1)
	assert.Len(t, file.Trailer, 100)
	assert.Nil(t, file.ID3v1)

	out, err := WriteMP3File(file)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestParseNoFrames(t *testing.T) {
	_, err := ParseMP3File([]byte("definitely not an mp3 file"))
	assert.Error(t, err)

	_, err = ParseMP3File([]byte("ID3\x03\x00\x00\x00\x00\x01\x00short"))
	assert.Error(t, err)
}

func TestWriteRejectsResizedFrame(t *testing.T) {
	file, err := ParseMP3File(frame(1, false))
	require.NoError(t, err)
	file.Frames[0].Data = file.Frames[0].Data[:10]
	_, err = WriteMP3File(file)
	assert.Error(t, err)
}

// setBits writes the low n bits of v at bit position pos, MSB first
func setBits(buf []byte, pos, n, v int) {
	for i := range n {
		bit := (v >> (n - 1 - i)) & 1
		p := pos + i
		buf[p/8] |= byte(bit << (7 - p%8))
	}
}

// zeroed joint stereo frame whose side info declares main_data_begin and a
// single granule/channel part2_3_length
func reservoirFrame(mainDataBegin, mainDataBits int) []byte {
	f := frame(0, false)
	side := f[4 : 4+32]
	setBits(side, 0, 9, mainDataBegin)
	// private bits (3) and scfsi (2x4) precede granule 0 channel 0
	setBits(side, 20, 12, mainDataBits)
	return f
}

func TestParseSideInfo(t *testing.T) {
	f := reservoirFrame(300, 1234)
	h, err := ParseFrameHeader(f[:4])
	require.NoError(t, err)

	start, end := SideInfoOffset(h)
	assert.Equal(t, 0, start)
	assert.Equal(t, 32, end)

	si, err := ParseSideInfo(h, f[4+start:4+end])
	require.NoError(t, err)
	assert.Equal(t, 300, si.MainDataBegin)
	assert.Equal(t, 1234, si.Part23Length[0][0])
	assert.Equal(t, 0, si.Part23Length[1][1])
	assert.Equal(t, 155, si.MainDataBytes())

	_, err = ParseSideInfo(h, f[4:10])
	assert.Error(t, err)
}

func TestSideInfoOffsetWithCRC(t *testing.T) {
	// protection bit cleared means a CRC word follows the header; mono
	h, err := ParseFrameHeader([]byte{0xFF, 0xFA, 0x90, 0xC0})
	require.NoError(t, err)
	start, end := SideInfoOffset(h)
	assert.Equal(t, 2, start)
	assert.Equal(t, 19, end)
}

func TestFreeBytesFollowsReservoir(t *testing.T) {
	var data []byte
	data = append(data, reservoirFrame(0, 100*8)...)
	// second frame's main data starts 50 bytes back, inside the first frame
	data = append(data, reservoirFrame(50, 80*8)...)

	file, err := ParseMP3File(data)
	require.NoError(t, err)
	free, err := FreeBytes(file)
	require.NoError(t, err)
	require.Len(t, free, 2)

	// each main data area is 381 bytes; used stream ranges are [0,100) and [331,411)
	require.Len(t, free[0], 231)
	assert.Equal(t, 32+100, free[0][0])
	assert.Equal(t, 32+330, free[0][len(free[0])-1])

	require.Len(t, free[1], 351)
	assert.Equal(t, 32+30, free[1][0])
	assert.Equal(t, 412, free[1][len(free[1])-1])
}

func TestFreeBytesRejectsOverrun(t *testing.T) {
	file, err := ParseMP3File(reservoirFrame(0, 400*8))
	require.NoError(t, err)
	_, err = FreeBytes(file)
	assert.Error(t, err)
}
