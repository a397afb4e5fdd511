package lconsensus

import "math/bits"

// TwoThirdsStake returns floor(2*total/3) without overflowing
// for any uint64 total.
func TwoThirdsStake(total uint64) uint64 {
	return (total/3)*2 + ((total%3)*2)/3
}

// AddStake returns a+b, and false if the sum does not fit in a uint64.
func AddStake(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
