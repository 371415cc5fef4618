package testutil

import (
	"math"
	"math/rand"
)

// ComplexTone generates a complex exponential e^(j*2*pi*f*t) scaled by amplitude.
func ComplexTone(freqHz, sampleRate, amplitude float64, length int) []complex128 {
	out := make([]complex128, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		phase := step * float64(i)
		out[i] = complex(amplitude*math.Cos(phase), amplitude*math.Sin(phase))
	}
	return out
}

// ComplexNoise generates complex white noise with a fixed seed for reproducibility.
func ComplexNoise(seed int64, amplitude float64, length int) []complex128 {
	out := make([]complex128, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = complex((rng.Float64()*2-1)*amplitude, (rng.Float64()*2-1)*amplitude)
	}
	return out
}

// FMTone generates a complex baseband FM signal carrying a sinusoidal
// message of the given audio frequency and peak deviation.
func FMTone(audioHz, deviationHz, sampleRate float64, length int) []complex128 {
	out := make([]complex128, length)
	phase := 0.0
	for i := range out {
		msg := math.Sin(2 * math.Pi * audioHz * float64(i) / sampleRate)
		phase += 2 * math.Pi * deviationHz * msg / sampleRate
		out[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	return out
}

// AMTone generates a complex baseband AM signal: carrier at DC with a
// sinusoidal envelope of the given modulation depth.
func AMTone(audioHz, depth, sampleRate float64, length int) []complex128 {
	out := make([]complex128, length)
	for i := range out {
		env := 1 + depth*math.Sin(2*math.Pi*audioHz*float64(i)/sampleRate)
		out[i] = complex(env, 0)
	}
	return out
}

// DeterministicSine generates a deterministic real sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}
