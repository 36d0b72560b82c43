package mp3parser

import (
	"fmt"
	"io"
)

type BitReader struct {
	data []byte
	pos  int // bit position
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (br *BitReader) ReadBits(n int) (int, error) {
	if n <= 0 || n > 32 {
		return 0, fmt.Errorf("invalid bit count %d", n)
	}
	var val int
	for range n {
		bytePos := br.pos / 8
		if bytePos >= len(br.data) {
			return 0, io.ErrUnexpectedEOF
		}
		bit := (br.data[bytePos] >> (7 - br.pos%8)) & 1
		val = val<<1 | int(bit)
		br.pos++
	}
	return val, nil
}

func (br *BitReader) Skip(n int) {
	br.pos += n
}

// SideInfo holds the fields of MPEG-1 Layer III side information that locate
// a frame's main data in the bit reservoir.
type SideInfo struct {
	MainDataBegin int
	// Part23Length is indexed by granule, then channel, in bits
	Part23Length [2][2]int
}

// MainDataBytes is how many reservoir bytes the frame's main data occupies
func (s *SideInfo) MainDataBytes() int {
	bits := 0
	for _, gr := range s.Part23Length {
		for _, ch := range gr {
			bits += ch
		}
	}
	return (bits + 7) / 8
}

func channelCount(h *MP3FrameHeader) int {
	if h.ChannelMode == 3 {
		return 1
	}
	return 2
}

// SideInfoOffset returns where the side information starts within frame data
// and where it ends; the CRC word, when present, comes first.
func SideInfoOffset(h *MP3FrameHeader) (start, end int) {
	if h.ProtectionBit {
		start = 2
	}
	if channelCount(h) == 1 {
		return start, start + 17
	}
	return start, start + 32
}

func ParseSideInfo(h *MP3FrameHeader, sideInfo []byte) (*SideInfo, error) {
	channels := channelCount(h)
	br := NewBitReader(sideInfo)

	si := &SideInfo{}
	var err error
	if si.MainDataBegin, err = br.ReadBits(9); err != nil {
		return nil, fmt.Errorf("side info: %w", err)
	}

	// private bits, then scfsi
	if channels == 1 {
		br.Skip(5)
	} else {
		br.Skip(3)
	}
	br.Skip(4 * channels)

	for gr := range 2 {
		for ch := range channels {
			if si.Part23Length[gr][ch], err = br.ReadBits(12); err != nil {
				return nil, fmt.Errorf("side info granule %d channel %d: %w", gr, ch, err)
			}
			// big_values through count1table_select
			br.Skip(47)
		}
	}
	return si, nil
}

// FreeBytes reports, per frame, the offsets into frame.Data that no decoder
// reads: bytes of the main data area outside every frame's main data. Main
// data may start in earlier frames (main_data_begin), so the whole file is
// needed to answer this.
func FreeBytes(file *MP3File) ([][]int, error) {
	starts := make([]int, len(file.Frames))
	areaStart := make([]int, len(file.Frames))
	stream := 0
	for i, frame := range file.Frames {
		_, end := SideInfoOffset(frame.Header)
		if end > len(frame.Data) {
			return nil, fmt.Errorf("frame %d: %d bytes cannot hold side info", i, len(frame.Data))
		}
		starts[i] = stream
		areaStart[i] = end
		stream += len(frame.Data) - end
	}

	used := make([]bool, stream)
	for i, frame := range file.Frames {
		start, end := SideInfoOffset(frame.Header)
		si, err := ParseSideInfo(frame.Header, frame.Data[start:end])
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		// a stream cut mid-reservoir points before the first frame
		begin := max(starts[i]-si.MainDataBegin, 0)
		last := starts[i] - si.MainDataBegin + si.MainDataBytes()
		if last > stream {
			return nil, fmt.Errorf("frame %d: main data runs past the end of the stream", i)
		}
		for p := begin; p < last; p++ {
			used[p] = true
		}
	}

	free := make([][]int, len(file.Frames))
	for i, frame := range file.Frames {
		for off := areaStart[i]; off < len(frame.Data); off++ {
			if !used[starts[i]+off-areaStart[i]] {
				free[i] = append(free[i], off)
			}
		}
	}
	return free, nil
}
