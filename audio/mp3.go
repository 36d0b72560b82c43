package audio

import (
	"bytes"
	"fmt"

	"multicarrier-stego/carrier"

	"github.com/bogem/id3v2"
	"github.com/go-audio/audio"
	"github.com/tosone/minimp3"
)

// MP3Adapter decodes MP3 to 16-bit PCM and embeds in the low byte of each
// sample. The LSBs would not survive a lossy re-encode, so the stego carrier
// is emitted as WAV.
type MP3Adapter struct{}

func NewMP3Adapter() *MP3Adapter {
	return &MP3Adapter{}
}

func (a *MP3Adapter) Name() string { return "mp3" }
func (a *MP3Adapter) Category() carrier.Category { return carrier.Audio }
func (a *MP3Adapter) Extensions() []string { return []string{".mp3"} }

func (a *MP3Adapter) Sniff(data []byte) bool {
	return sniffMP3(data)
}

func sniffMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	// frame sync with a valid layer
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && (data[1]>>1)&0x3 != 0
}

// DecodeMP3 decodes an MP3 file to 16-bit little-endian PCM
func DecodeMP3(mp3Data []byte) ([]byte, *Metadata, error) {
	decoder, data, err := minimp3.DecodeFull(mp3Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to decode MP3: %v", carrier.ErrUnsupportedFormat, err)
	}
	defer decoder.Close()

	if decoder.Channels == 0 || decoder.SampleRate == 0 || len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: MP3 contains no audio", carrier.ErrUnsupportedFormat)
	}

	samplesPerChannel := len(data) / 2 / decoder.Channels
	metadata := &Metadata{
		SampleRate: decoder.SampleRate,
		Channels:   decoder.Channels,
		BitDepth:   16,
		Duration:   float64(samplesPerChannel) / float64(decoder.SampleRate),
	}
	return data, metadata, nil
}

func (a *MP3Adapter) Decode(data []byte) (*carrier.Raw, error) {
	pcm, metadata, err := DecodeMP3(data)
	if err != nil {
		return nil, err
	}
	samples, err := pcm16ToInts(pcm)
	if err != nil {
		return nil, err
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: metadata.Channels,
			SampleRate:  metadata.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return &carrier.Raw{
		Samples:  lowBytes(samples),
		BitDepth: 16,
		Ext:      ".wav",
		Context:  &pcmContext{buf: buf, bitDepth: 16, signed: true},
	}, nil
}

func (a *MP3Adapter) Encode(raw *carrier.Raw) ([]byte, error) {
	ctx, ok := raw.Context.(*pcmContext)
	if !ok {
		return nil, fmt.Errorf("mp3: raw buffer was not produced by this adapter")
	}
	return encodePCM(ctx, raw.Samples)
}

func (a *MP3Adapter) Describe(data []byte) map[string]string {
	md := map[string]string{}
	if _, metadata, err := DecodeMP3(data); err == nil {
		md = metadata.describe()
	}
	for k, v := range describeID3(data) {
		md[k] = v
	}
	return md
}

// describeID3 reads the common ID3v2 text frames
func describeID3(data []byte) map[string]string {
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return nil
	}
	defer tag.Close()

	md := map[string]string{}
	for key, value := range map[string]string{
		"title":  tag.Title(),
		"artist": tag.Artist(),
		"album":  tag.Album(),
		"year":   tag.Year(),
		"genre":  tag.Genre(),
	} {
		if value != "" {
			md[key] = value
		}
	}
	return md
}
