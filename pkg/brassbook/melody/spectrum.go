package melody

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	nFFT      = 2048
	hopLength = 512

	// amin floors of the dB conversions: 1e-5 amplitude, 1e-10 power.
	amplitudeFloor = 1e-5
	powerFloor     = 1e-10
	dynamicRangeDB = 80.0
)

// trimSilence drops leading and trailing frames whose RMS is more than
// topDB below the loudest frame.
func trimSilence(y []float64, topDB float64) []float64 {
	if len(y) == 0 {
		return y
	}

	power := framePower(y)
	peak := math.Max(powerFloor, maxOf(power))

	first, last := -1, -1
	for i, p := range power {
		db := 10*math.Log10(math.Max(powerFloor, p)) - 10*math.Log10(peak)
		if db > -topDB {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return y[:0]
	}

	start := first * hopLength
	end := (last + 1) * hopLength
	if end > len(y) {
		end = len(y)
	}
	if start > end {
		start = end
	}
	return y[start:end]
}

// framePower is the mean square of each centered, zero-padded frame.
func framePower(y []float64) []float64 {
	padded := centerPad(y)
	frames := 1 + (len(padded)-nFFT)/hopLength
	out := make([]float64, frames)
	for t := 0; t < frames; t++ {
		var sum float64
		for _, v := range padded[t*hopLength : t*hopLength+nFFT] {
			sum += v * v
		}
		out[t] = sum / nFFT
	}
	return out
}

func centerPad(y []float64) []float64 {
	padded := make([]float64, len(y)+nFFT)
	copy(padded[nFFT/2:], y)
	return padded
}

// hann returns the periodic Hann window used for spectral analysis.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// powerSpectrogram returns |STFT|^2 as [frame][bin] with nFFT/2+1 bins.
func powerSpectrogram(y []float64) [][]float64 {
	padded := centerPad(y)
	window := hann(nFFT)
	frames := 1 + (len(padded)-nFFT)/hopLength
	bins := nFFT/2 + 1

	spec := make([][]float64, frames)
	frame := make([]float64, nFFT)
	for t := 0; t < frames; t++ {
		seg := padded[t*hopLength : t*hopLength+nFFT]
		for i := range frame {
			frame[i] = seg[i] * window[i]
		}
		coeffs := fft.FFTReal(frame)
		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			m := cmplx.Abs(coeffs[k])
			row[k] = m * m
		}
		spec[t] = row
	}
	return spec
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(f float64) float64 {
	if f < melMinLogHz {
		return f / melFSP
	}
	return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
}

func melToHz(m float64) float64 {
	if m < melMinLogMel {
		return m * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
}

// melFilterBank builds nMels area-normalized triangular filters spanning
// 0..sampleRate/2.
func melFilterBank(sampleRate, nMels int) [][]float64 {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / nFFT
	}

	minMel, maxMel := hzToMel(0), hzToMel(float64(sampleRate)/2)
	hz := make([]float64, nMels+2)
	for i := range hz {
		hz[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for i := 0; i < nMels; i++ {
		row := make([]float64, bins)
		lowerWidth := hz[i+1] - hz[i]
		upperWidth := hz[i+2] - hz[i+1]
		norm := 2.0 / (hz[i+2] - hz[i])
		for k, f := range fftFreqs {
			lower := (f - hz[i]) / lowerWidth
			upper := (hz[i+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			row[k] = w * norm
		}
		weights[i] = row
	}
	return weights
}

// melDB computes the mel spectrogram in dB as [frame][mel], floored
// dynamicRangeDB below its global maximum.
func melDB(y []float64, sampleRate, nMels int) [][]float64 {
	spec := powerSpectrogram(y)
	bank := melFilterBank(sampleRate, nMels)

	out := make([][]float64, len(spec))
	top := math.Inf(-1)
	for t, row := range spec {
		mels := make([]float64, nMels)
		for m, filter := range bank {
			var e float64
			for k, w := range filter {
				if w != 0 {
					e += w * row[k]
				}
			}
			db := 20 * math.Log10(math.Max(amplitudeFloor, math.Abs(e)))
			mels[m] = db
			if db > top {
				top = db
			}
		}
		out[t] = mels
	}

	floor := top - dynamicRangeDB
	for _, mels := range out {
		for m, v := range mels {
			if v < floor {
				mels[m] = floor
			}
		}
	}
	return out
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
