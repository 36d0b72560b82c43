package stego

import (
	"bytes"
	"fmt"

	"multicarrier-stego/crypto"
)

// DefaultPayloadName is used when the first chunk carries no name
const DefaultPayloadName = "extracted_file.bin"

// Payload is the secret file being hidden
type Payload struct {
	Name    string
	Content []byte
}

// Options controls the optional layers applied before chunking
type Options struct {
	Password   string
	Encrypt    bool
	Interleave bool
	// Seed overrides the random interleaver seed when non-nil
	Seed *uint64
}

// Split encrypts and interleaves the payload as requested, then cuts it into
// one framed chunk per weight.
func Split(payload Payload, weights []float64, opts Options) ([]*Chunk, error) {
	if len(weights) == 0 || len(weights) > MaxChunks {
		return nil, fmt.Errorf("%w: %d carriers", ErrInvalidWeights, len(weights))
	}
	content := payload.Content

	if opts.Encrypt {
		sealed, err := crypto.Encrypt(content, opts.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		content = sealed
	}

	var seed uint64
	if opts.Interleave {
		if opts.Seed != nil {
			seed = *opts.Seed
		} else {
			s, err := NewSeed()
			if err != nil {
				return nil, err
			}
			seed = s
		}
		content = Scramble(content, seed)
	}

	ranges, err := Allocate(len(content), weights)
	if err != nil {
		return nil, err
	}
	id, err := randomUint64()
	if err != nil {
		return nil, err
	}

	total := uint32(len(ranges))
	chunks := make([]*Chunk, len(ranges))
	for i, r := range ranges {
		c := &Chunk{
			Ordinal:     uint32(i),
			Total:       total,
			Last:        i == len(ranges)-1,
			Encrypted:   opts.Encrypt,
			Interleaved: opts.Interleave,
			Seed:        seed,
			PayloadLen:  uint64(len(content)),
			PayloadID:   id,
			Data:        bytes.Clone(content[r.Start:r.End]),
		}
		if c.Data == nil {
			c.Data = []byte{}
		}
		if i == 0 {
			c.Name = payload.Name
		}
		chunks[i] = c
	}
	return chunks, nil
}

// Join puts chunks back together in ordinal order and strips the optional
// layers every chunk records. All chunks must come from the same Split. When
// some ordinals are missing it returns an *IncompleteError; the partial
// payload is returned alongside it only when no cipher or interleaving was
// applied, since otherwise the bytes are useless.
func Join(chunks []*Chunk, password string) (*Payload, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to reassemble", ErrMalformedFrame)
	}

	ref := chunks[0]
	total := ref.Total
	payloadLen := ref.PayloadLen
	byOrdinal := make(map[uint32]*Chunk, len(chunks))
	for _, c := range chunks {
		if c.PayloadID != ref.PayloadID || c.Total != total || c.PayloadLen != payloadLen {
			return nil, fmt.Errorf("%w: chunk %d belongs to a different payload", ErrMalformedFrame, c.Ordinal)
		}
		if c.Encrypted != ref.Encrypted || c.Interleaved != ref.Interleaved || c.Seed != ref.Seed {
			return nil, fmt.Errorf("%w: chunk %d disagrees on encryption or interleaving", ErrMalformedFrame, c.Ordinal)
		}
		if prev, ok := byOrdinal[c.Ordinal]; ok {
			if !bytes.Equal(prev.Data, c.Data) {
				return nil, fmt.Errorf("%w: conflicting copies of chunk %d", ErrMalformedFrame, c.Ordinal)
			}
			continue
		}
		byOrdinal[c.Ordinal] = c
	}

	var missing []uint32
	ordered := make([]*Chunk, 0, len(byOrdinal))
	for ord := uint32(0); ord < total; ord++ {
		c, ok := byOrdinal[ord]
		if !ok {
			missing = append(missing, ord)
			continue
		}
		ordered = append(ordered, c)
	}

	first, haveFirst := byOrdinal[0]
	name := DefaultPayloadName
	if haveFirst && first.Name != "" {
		name = first.Name
	}

	var content []byte
	for _, c := range ordered {
		content = append(content, c.Data...)
	}
	if content == nil {
		content = []byte{}
	}

	if len(missing) > 0 {
		incomplete := &IncompleteError{Total: total, Missing: missing}
		if ref.Encrypted || ref.Interleaved {
			return nil, incomplete
		}
		return &Payload{Name: name, Content: content}, incomplete
	}

	if uint64(len(content)) != payloadLen {
		return nil, fmt.Errorf("%w: reassembled %d bytes, chunks declare %d", ErrMalformedFrame, len(content), payloadLen)
	}

	if ref.Interleaved {
		unscrambled, err := Unscramble(content, ref.Seed, len(content))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		content = unscrambled
	}

	if ref.Encrypted {
		plain, err := crypto.Decrypt(content, password)
		if err != nil {
			return nil, err
		}
		content = plain
	}

	return &Payload{Name: name, Content: content}, nil
}
