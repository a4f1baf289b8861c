package melody

import "math"

// notes is the run-length view of a melody: one entry per held band.
type notes struct {
	all     []float64 // band + length/100
	bands   []int
	lengths []int
}

// extractNotes collapses consecutive frames on the same band into notes.
// A run shorter than minPer is not emitted and its count carries into the
// next run.
func extractNotes(melody []float64, minPer float64) notes {
	var n notes
	counter := 0
	for i := 0; i+1 < len(melody); i++ {
		band := math.Floor(melody[i])
		if band == math.Floor(melody[i+1]) {
			counter++
		} else if float64(counter) >= minPer {
			n.all = append(n.all, band+float64(counter)/100)
			n.bands = append(n.bands, int(band))
			n.lengths = append(n.lengths, counter)
			counter = 0
		}
	}
	return n
}

const (
	insertedLength = 1
	insertedBand   = 6
)

// alignNotes patches single-note slips when the two note counts differ: a
// note the performer inserted, or a note the performer skipped, gets a
// placeholder on the other side. Afterwards every parallel sequence is padded
// to a common length.
func alignNotes(ref, perf *notes, refFrames, perfFrames []float64) ([]float64, []float64) {
	if len(ref.all) != len(perf.all) {
		var extraPerf, extraRef []int
		limit := min(len(ref.all), len(perf.all)) - 3
		for i := 0; i < limit; i++ {
			if perf.all[i] == ref.all[i] {
				continue
			}
			switch {
			case equalFloats(perf.all[i+1:i+3], ref.all[i:i+2]):
				extraPerf = append(extraPerf, i)
			case equalFloats(perf.all[i:i+2], ref.all[i+1:i+3]):
				extraRef = append(extraRef, i)
			}
		}

		for _, idx := range extraPerf {
			ref.lengths = insertAt(ref.lengths, idx, insertedLength)
			ref.bands = insertAt(ref.bands, idx, insertedBand)
		}
		for _, idx := range extraRef {
			perf.lengths = insertAt(perf.lengths, idx, insertedLength)
			perf.bands = insertAt(perf.bands, idx, insertedBand)
		}
	}

	refFrames, perfFrames = padPair(refFrames, perfFrames, 0)
	ref.bands, perf.bands = padPair(ref.bands, perf.bands, 0)
	ref.lengths, perf.lengths = padPair(ref.lengths, perf.lengths, insertedLength)
	return refFrames, perfFrames
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// insertAt inserts v before index i; an index past the end appends.
func insertAt[T any](s []T, i int, v T) []T {
	if i >= len(s) {
		return append(s, v)
	}
	if i < 0 {
		i = 0
	}
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// padPair extends the shorter slice with fill so both have the same length.
func padPair[T any](a, b []T, fill T) ([]T, []T) {
	for len(a) < len(b) {
		a = append(a, fill)
	}
	for len(b) < len(a) {
		b = append(b, fill)
	}
	return a, b
}
