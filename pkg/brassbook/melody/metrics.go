package melody

import (
	"errors"
	"math"
)

var errDegenerateNote = errors.New("note with zero length")

// levels maps each frame's fractional part (the rounded peak dB / 100) back
// to an integer loudness.
func levels(frames []float64) []int {
	out := make([]int, len(frames))
	for i, y := range frames {
		out[i] = int(math.RoundToEven((y - math.Floor(y)) * 100))
	}
	return out
}

func sumWindow(xs []int, from, n int) int {
	if from >= len(xs) {
		return 0
	}
	to := from + n
	if to > len(xs) {
		to = len(xs)
	}
	s := 0
	for _, x := range xs[from:to] {
		s += x
	}
	return s
}

func repeat(v, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// loudnessErrors flags, frame by frame, notes whose mean loudness drifts
// more than threshold from the reference note.
func loudnessErrors(refLen, perfLen, refLevels, perfLevels []int, threshold float64) ([]int, error) {
	var out []int
	refPos, perfPos := 0, 0
	for i := range refLen {
		if refLen[i] == 0 || perfLen[i] == 0 {
			return nil, errDegenerateNote
		}
		refSum := sumWindow(refLevels, refPos, refLen[i])
		perfSum := sumWindow(perfLevels, perfPos, perfLen[i])

		flag := 1
		if refSum != 0 {
			refMean := float64(refSum) / float64(refLen[i])
			perfMean := float64(perfSum) / float64(perfLen[i])
			if math.Abs(1-perfMean/refMean) <= threshold {
				flag = 0
			}
		}
		out = append(out, repeat(flag, perfLen[i])...)
		refPos += refLen[i]
		perfPos += perfLen[i]
	}
	return out, nil
}

// rhythmErrors flags the overhang of notes held too long or too short.
func rhythmErrors(refLen, perfLen []int, threshold float64) ([]int, error) {
	var out []int
	for i := range refLen {
		if refLen[i] == 0 {
			return nil, errDegenerateNote
		}
		t, c := refLen[i], perfLen[i]
		if math.Abs(float64(t-c)/float64(t)) <= threshold {
			out = append(out, repeat(0, c)...)
			continue
		}
		out = append(out, repeat(0, min(t, c))...)
		diff := c - t
		if diff < 0 {
			diff = -diff
		}
		out = append(out, repeat(1, diff)...)
	}
	return out, nil
}

// pitchErrors flags every frame of a note sung on the wrong band.
func pitchErrors(refBands, perfBands, perfLen []int) []int {
	var out []int
	for i := range refBands {
		flag := 0
		if refBands[i] != perfBands[i] {
			flag = 1
		}
		out = append(out, repeat(flag, perfLen[i])...)
	}
	return out
}

// relativeVolume scales the performer's levels by their maximum.
func relativeVolume(perfLevels []int) []float64 {
	peak := 1
	if len(perfLevels) > 0 {
		peak = perfLevels[0]
		for _, v := range perfLevels[1:] {
			if v > peak {
				peak = v
			}
		}
	}
	out := make([]float64, len(perfLevels))
	for i, v := range perfLevels {
		if peak == 0 {
			out[i] = float64(v)
			continue
		}
		out[i] = round2(float64(v) / float64(peak))
	}
	return out
}

// integralScore is one minus the error rate across rhythm and pitch flags.
func integralScore(errs []int) float64 {
	if len(errs) == 0 {
		return 1
	}
	sum := 0
	for _, e := range errs {
		sum += e
	}
	return 1 - round2(float64(sum)/float64(len(errs)))
}

// windowed majority-votes flags over windows of seconds*timeFactor entries.
func windowed(flags []int, seconds, timeFactor float64) []int {
	size := int(math.RoundToEven(round2(seconds) * timeFactor))
	if size == 0 {
		return []int{}
	}

	out := []int{}
	for len(flags) > 0 {
		n := min(size, len(flags))
		sum := 0
		for _, f := range flags[:n] {
			sum += f
		}
		v := 0
		if float64(sum)/float64(n) > 0.5 {
			v = 1
		}
		out = append(out, v)
		flags = flags[n:]
	}
	return out
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
