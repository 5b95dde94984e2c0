package audio

// BytesToSamples converts raw little-endian PCM bytes to 16-bit signed
// samples. The byte slice length must be even.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts 16-bit signed samples back to little-endian PCM bytes.
func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return pcm
}

// Stats summarizes the amplitude characteristics of a waveform on the
// 16-bit signed scale.
type Stats struct {
	SampleCount      int
	MaxAmplitude     int
	MeanAbsAmplitude float64
	NonZeroRatio     float64
}

// ComputeStats scans a waveform once and returns its amplitude statistics.
func ComputeStats(samples []int16) Stats {
	stats := Stats{SampleCount: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	var sumAbs float64
	nonZero := 0
	for _, s := range samples {
		abs := int(s)
		if abs < 0 {
			abs = -abs
		}
		if abs > stats.MaxAmplitude {
			stats.MaxAmplitude = abs
		}
		if s != 0 {
			nonZero++
		}
		sumAbs += float64(abs)
	}

	stats.MeanAbsAmplitude = sumAbs / float64(len(samples))
	stats.NonZeroRatio = float64(nonZero) / float64(len(samples))
	return stats
}
