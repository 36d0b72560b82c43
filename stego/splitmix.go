package stego

// SplitMix64 is the choice source of the interleaver. Its recurrence is fixed
// so that any implementation seeded with the same value replays the same
// sequence:
//
//	state += 0x9E3779B97F4A7C15
//	z = state
//	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
//	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
//	out = z ^ (z >> 31)
//
// A generator belongs to exactly one Scramble or Unscramble call.
type SplitMix64 struct {
	state uint64
}

func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

func (s *SplitMix64) Uint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Bit returns the top bit of the next output
func (s *SplitMix64) Bit() bool {
	return s.Uint64()>>63 == 1
}
