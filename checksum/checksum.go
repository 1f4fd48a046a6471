// Package checksum computes and validates the 8-character trailing
// checksum used by Bitcoin output descriptors.
//
// The algorithm is a 40-bit BCH-style polynomial over a 32-symbol
// alphabet, as specified by the Bitcoin Core descriptor checksum scheme.
// No package in the reference corpus implements this particular
// polynomial (it is specific to output descriptors, not to base58 or
// bech32), so it is written here directly against the published
// algorithm rather than against an example implementation.
package checksum

import "strings"

// inputCharset is the set of characters that may legally appear in a
// descriptor expression (before the checksum suffix). A character's
// index here determines its symbol class (index & 31) and group class
// (index >> 5).
const inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
	"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
	"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

// charset is the 32-symbol alphabet the checksum itself is rendered in.
const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Length is the fixed length, in characters, of a descriptor checksum.
const Length = 8

// polyMod folds one more symbol into the running 40-bit checksum state.
func polyMod(c uint64, val uint64) uint64 {
	c0 := byte(c >> 35)
	c = ((c & 0x7ffffffff) << 5) ^ val
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// Compute returns the 8-character checksum of a descriptor prefix (the
// expression without any "#checksum" suffix). It is a pure function of
// the prefix bytes and does not depend on wildcard expansion: callers
// must compute it before substituting "*" wildcards by index.
//
// Compute returns an empty string if expr contains a character outside
// the descriptor input charset.
func Compute(expr string) string {
	var (
		c        uint64 = 1
		cls      uint64
		clsCount int
	)
	for _, r := range expr {
		pos := strings.IndexRune(inputCharset, r)
		if pos < 0 {
			return ""
		}
		c = polyMod(c, uint64(pos&31))
		cls = cls*3 + uint64(pos>>5)
		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}
	for i := 0; i < Length; i++ {
		c = polyMod(c, 0)
	}
	c ^= 1

	out := make([]byte, Length)
	for i := 0; i < Length; i++ {
		out[i] = charset[(c>>(5*(7-i)))&31]
	}
	return string(out)
}

// Validate reports whether got is exactly the checksum of expr.
func Validate(expr, got string) bool {
	return len(got) == Length && Compute(expr) == got
}
