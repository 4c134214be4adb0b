package sim

import (
	"fmt"
	"log"

	"github.com/sarchlab/deltasim/bitvec"
)

// A Shadow is a read-only signal derived from other signals. It is
// recomputed in the same delta as the commit of any of its sources, so
// waiters on a shadow wake in the same delta as waiters on the sources.
// Shadows of shadows are recomputed after all their sources, once per
// delta.
type Shadow[T comparable] struct {
	*Signal[T]

	sources []SignalInfo
}

// NewShadow creates a shadow whose value is compute() over the sources.
func NewShadow[T comparable](
	k *Kernel,
	name string,
	sources []SignalInfo,
	compute func() T,
	opts ...SignalOption,
) *Shadow[T] {
	s := newSignal(k, name, compute(), opts)
	s.readOnly = true
	s.compute = compute

	for _, src := range sources {
		b := src.base()
		if b.k != k {
			log.Panicf("shadow %s: source %s belongs to another kernel",
				s.name, b.name)
		}

		b.shadows = append(b.shadows, s.signalBase)

		if b.rank >= s.rank {
			s.rank = b.rank + 1
		}
	}

	k.registerSignal(s)

	return &Shadow[T]{Signal: s, sources: sources}
}

// Sources returns the signals the shadow is derived from.
func (s *Shadow[T]) Sources() []SignalInfo {
	return s.sources
}

// SliceOf creates a shadow carrying bits [hi:lo) of src.
func SliceOf(k *Kernel, src SignalInfo, hi, lo int) *Shadow[uint64] {
	if lo < 0 || hi <= lo || hi > src.Width() {
		log.Panicf("invalid slice [%d:%d] of %s with width %d",
			hi, lo, src.Name(), src.Width())
	}

	name := fmt.Sprintf("%s[%d:%d]", src.Name(), hi, lo)

	return NewShadow(k, name, []SignalInfo{src},
		func() uint64 {
			b, _ := src.Bits()
			return bitvec.Slice(b, hi, lo)
		},
		WithWidth(hi-lo))
}

// BitOf creates a shadow carrying bit i of src.
func BitOf(k *Kernel, src SignalInfo, i int) *Shadow[bool] {
	if i < 0 || i >= src.Width() {
		log.Panicf("invalid bit %d of %s with width %d",
			i, src.Name(), src.Width())
	}

	name := fmt.Sprintf("%s[%d]", src.Name(), i)

	return NewShadow(k, name, []SignalInfo{src},
		func() bool {
			b, _ := src.Bits()
			return bitvec.Bit(b, i)
		})
}

// ConcatOf creates a shadow carrying the concatenation of srcs, the first
// one in the most significant position.
func ConcatOf(k *Kernel, name string, srcs ...SignalInfo) *Shadow[uint64] {
	width := 0
	for _, src := range srcs {
		if src.Width() == 0 {
			log.Panicf("concat %s: %s has no bit width", name, src.Name())
		}

		width += src.Width()
	}

	if width > bitvec.MaxWidth {
		log.Panicf("concat %s: %d bits is too wide", name, width)
	}

	parts := make([]bitvec.Part, len(srcs))

	return NewShadow(k, name, srcs,
		func() uint64 {
			for i, src := range srcs {
				b, _ := src.Bits()
				parts[i] = bitvec.Part{Value: b, Width: src.Width()}
			}

			v, _ := bitvec.Concat(parts...)

			return v
		},
		WithWidth(width))
}
