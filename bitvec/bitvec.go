// Package bitvec provides the bit-level helpers used by signals, shadows,
// tracers and the cosimulation codec. Vectors are at most 64 bits wide and
// are carried in a uint64, least significant bit first.
package bitvec

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxWidth is the widest vector supported.
const MaxWidth = 64

// Mask returns a mask with the w lowest bits set.
func Mask(w int) uint64 {
	if w >= MaxWidth {
		return ^uint64(0)
	}

	if w <= 0 {
		return 0
	}

	return (uint64(1) << uint(w)) - 1
}

// WidthFor returns the number of bits needed to hold every value of the
// half-open range [min, max). Ranges with negative values use two's
// complement and include a sign bit.
func WidthFor(min, max int64) int {
	var w int
	if max > 0 {
		w = bits.Len64(uint64(max - 1))
	}

	if min < 0 {
		neg := bits.Len64(uint64(-(min + 1)))
		if neg > w {
			w = neg
		}

		w++
	}

	if w == 0 {
		w = 1
	}

	return w
}

// Slice returns bits [hi:lo) of v, that is hi-lo bits starting at lo.
func Slice(v uint64, hi, lo int) uint64 {
	if hi <= lo || lo < 0 || hi > MaxWidth {
		panic(fmt.Sprintf("bitvec: invalid slice [%d:%d]", hi, lo))
	}

	return (v >> uint(lo)) & Mask(hi-lo)
}

// Bit returns bit i of v.
func Bit(v uint64, i int) bool {
	if i < 0 || i >= MaxWidth {
		panic(fmt.Sprintf("bitvec: invalid bit index %d", i))
	}

	return (v>>uint(i))&1 == 1
}

// A Part is one operand of Concat.
type Part struct {
	Value uint64
	Width int
}

// Concat joins parts into one vector. The first part ends up in the most
// significant position. It also returns the total width.
func Concat(parts ...Part) (uint64, int) {
	var v uint64

	width := 0
	for _, p := range parts {
		width += p.Width
		if width > MaxWidth {
			panic(fmt.Sprintf("bitvec: concatenation wider than %d bits", MaxWidth))
		}

		v = (v << uint(p.Width)) | (p.Value & Mask(p.Width))
	}

	return v, width
}

// SignExtend interprets the w lowest bits of v as a two's complement number.
func SignExtend(v uint64, w int) int64 {
	if w <= 0 || w >= MaxWidth {
		return int64(v)
	}

	shift := uint(MaxWidth - w)

	return int64(v<<shift) >> shift
}

// Binary returns the shortest binary text of v, "0" for zero.
func Binary(v uint64) string {
	return strconv.FormatUint(v, 2)
}

// PadBinary returns the binary text of the w lowest bits of v, zero padded
// to w digits.
func PadBinary(v uint64, w int) string {
	s := Binary(v & Mask(w))
	if len(s) < w {
		s = strings.Repeat("0", w-len(s)) + s
	}

	return s
}

// ParseBinary parses a binary text of at most 64 digits.
func ParseBinary(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("bitvec: empty binary value")
	}

	v, err := strconv.ParseUint(s, 2, MaxWidth)
	if err != nil {
		return 0, errors.Errorf("bitvec: invalid binary value %q", s)
	}

	return v, nil
}
