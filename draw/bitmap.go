package draw

import "math/bits"

// Bitmap is a membership set over the numbers 0..127.
type Bitmap [2]uint64

// BitmapOf builds a bitmap from nums.
func BitmapOf(nums []int) Bitmap {
	var b Bitmap
	for _, n := range nums {
		b.Set(n)
	}
	return b
}

// Set adds n.
func (b *Bitmap) Set(n int) { b[n>>6] |= 1 << uint(n&63) }

// Has reports whether n is a member.
func (b Bitmap) Has(n int) bool { return b[n>>6]&(1<<uint(n&63)) != 0 }

// And returns the intersection.
func (b Bitmap) And(o Bitmap) Bitmap { return Bitmap{b[0] & o[0], b[1] & o[1]} }

// Count returns the number of members.
func (b Bitmap) Count() int { return bits.OnesCount64(b[0]) + bits.OnesCount64(b[1]) }
