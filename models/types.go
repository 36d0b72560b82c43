// Package models contain needed models
package models

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Missing lists unrecovered chunk ordinals on partial reassembly
	Missing []uint32 `json:"missing,omitempty"`
}

// CarrierReport describes one stego carrier in a distribute response
type CarrierReport struct {
	Source     string  `json:"source"`
	Filename   string  `json:"filename"`
	Adapter    string  `json:"adapter"`
	Ordinal    uint32  `json:"ordinal"`
	FrameBytes int     `json:"frame_bytes"`
	PSNR       float64 `json:"psnr"`
}

// CapacityReport describes how much one carrier can hold. CapacityBytes is
// the raw channel size, PayloadBytes what is left for chunk data after the
// frame, including the secret's name and the interleaver seed when the
// request names them.
type CapacityReport struct {
	Filename      string            `json:"filename"`
	Adapter       string            `json:"adapter,omitempty"`
	Category      string            `json:"category"`
	CapacityBytes int               `json:"capacity_bytes"`
	PayloadBytes  int               `json:"payload_bytes"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// CapacityResponse is returned by POST /stego/capacity
type CapacityResponse struct {
	Success  bool             `json:"success"`
	LSBBits  int              `json:"lsb_bits"`
	Carriers []CapacityReport `json:"carriers"`
}
