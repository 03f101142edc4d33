package common

// AlignUp rounds x up to the next multiple of a. An a of zero leaves x as is.
func AlignUp(x, a uint64) uint64 {
	if a == 0 {
		return x
	}
	if r := x % a; r != 0 {
		return x + (a - r)
	}
	return x
}

// Blocks returns how many a-sized blocks are needed to hold n bytes.
func Blocks(n, a uint64) uint64 {
	if a == 0 {
		return 0
	}
	return AlignUp(n, a) / a
}
