package draw

import "github.com/tolelom/drawchain/core"

// Keno draws core.KenoDraws distinct numbers in 1..core.KenoNumbers, in draw
// order. Duplicates are skipped by re-hashing, so the result is fully
// determined by seed.
func Keno(seed []byte) []int {
	s := NewStream(seed)
	var seen Bitmap
	out := make([]int, 0, core.KenoDraws)
	for len(out) < core.KenoDraws {
		n := s.Intn(core.KenoNumbers) + 1
		if seen.Has(n) {
			continue
		}
		seen.Set(n)
		out = append(out, n)
	}
	return out
}

// Hits counts how many of the selected numbers were drawn.
func Hits(selection, drawn []int) int {
	return BitmapOf(selection).And(BitmapOf(drawn)).Count()
}
