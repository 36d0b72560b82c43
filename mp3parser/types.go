// Package mp3parser splits MPEG-1 Layer III files into tags and frames and
// locates frame bytes that decoders never read.
package mp3parser

type ID3v2Header struct {
	Version [2]byte
	Flags   byte
	// Size excludes the 10 byte header
	Size int
}

// MP3FrameHeader is a decoded 4-byte frame header. ProtectionBit is true when
// a CRC word follows the header.
type MP3FrameHeader struct {
	VersionID     int
	Layer         int
	ProtectionBit bool
	Bitrate       int
	SampleRate    int
	Padding       bool
	ChannelMode   int
	FrameLength   int
}

type ID3v1Tag struct {
	Title   string
	Artist  string
	Album   string
	Year    string
	Comment string
	Genre   byte
}

type MP3Frame struct {
	Header      *MP3FrameHeader
	HeaderBytes []byte // written back untouched
	Data        []byte // CRC, side info and main data area
}

// MP3File holds every byte of the input: WriteMP3File of an unmodified
// MP3File reproduces it exactly.
type MP3File struct {
	ID3v2     *ID3v2Header
	ID3v2Data []byte
	Frames    []*MP3Frame
	// Trailer holds the bytes after the last frame, verbatim
	Trailer []byte
	// ID3v1 is parsed from the end of Trailer when present
	ID3v1 *ID3v1Tag
}
