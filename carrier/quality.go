package carrier

import (
	"math"
)

// CalculatePSNR compares two equally sized sample buffers. Elements belong to
// a bitDepth-bit signal (8 when zero) and embedding only touches their low
// byte, so the low byte difference is the signal difference and the peak is
// the full signal range. Identical buffers give +Inf.
func CalculatePSNR(original, stego []byte, bitDepth int) float64 {
	if len(original) != len(stego) {
		return 0.0
	}

	if len(original) == 0 {
		return 0.0
	}

	var mse float64
	for i := range original {
		diff := float64(original[i]) - float64(stego[i])
		mse += diff * diff
	}
	mse /= float64(len(original))

	// If MSE is 0, signals are identical
	if mse == 0 {
		return math.Inf(1)
	}

	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 8
	}
	// PSNR = 20 * log10(MAX / sqrt(MSE))
	maxSignalValue := math.Exp2(float64(bitDepth)) - 1
	return 20 * math.Log10(maxSignalValue/math.Sqrt(mse))
}

func ValidatePSNR(psnr float64, threshold float64) bool {
	if math.IsInf(psnr, 1) {
		return true // Infinite PSNR is always good
	}
	return psnr >= threshold
}
