package level

import (
	"math"
	"math/cmplx"

	"github.com/opd-ai/rtcevent/event"
)

// SpectrumSize is the FFT window. The spectrum has SpectrumSize/2 bins.
const SpectrumSize = 256

// soundLevel maps the RMS of 16-bit PCM from [-60 dBFS, 0 dBFS] onto [0, 100].
func soundLevel(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms/32768)
	return event.ClampSoundLevel(float32((db + 60) / 60 * 100))
}

// spectrum returns the magnitude spectrum of the first SpectrumSize samples,
// zero padded, with a Hann window applied.
func spectrum(samples []int16) event.AudioSpectrum {
	buf := make([]complex128, SpectrumSize)
	for i := 0; i < SpectrumSize && i < len(samples); i++ {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(SpectrumSize-1)))
		buf[i] = complex(float64(samples[i])*w, 0)
	}
	fft(buf)

	out := make(event.AudioSpectrum, SpectrumSize/2)
	for i := range out {
		out[i] = float32(cmplx.Abs(buf[i]))
	}
	return event.ClampSpectrum(out)
}

// fft is an in-place radix-2 Cooley-Tukey transform. len(data) must be a
// power of two.
func fft(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	for i, j := 0, 0; i < n; i++ {
		if j > i {
			data[i], data[j] = data[j], data[i]
		}
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := 2 * math.Pi / float64(size)
		for i := 0; i < n; i += size {
			for j := 0; j < half; j++ {
				u := data[i+j]
				v := data[i+j+half] * complex(math.Cos(float64(j)*step), -math.Sin(float64(j)*step))
				data[i+j] = u + v
				data[i+j+half] = u - v
			}
		}
	}
}

// pcm16 interprets little-endian interleaved 16-bit PCM. A trailing odd
// byte is ignored.
func pcm16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[2*i]) | int16(data[2*i+1])<<8
	}
	return out
}
