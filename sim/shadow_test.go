package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Shadow", func() {
	var k *Kernel

	BeforeEach(func() {
		k = newTestKernel()
	})

	It("should follow its sources", func() {
		v := NewSignal(k, "v", uint8(0))
		sl := SliceOf(k, v, 4, 2)
		b0 := BitOf(k, v, 0)
		cat := ConcatOf(k, "cat", b0, sl)

		Expect(sl.Name()).To(Equal("v[4:2]"))
		Expect(sl.Width()).To(Equal(2))
		Expect(cat.Width()).To(Equal(3))

		var slice uint64
		var bit bool
		var joined uint64

		k.Process("p", func(p *Proc) error {
			v.Set(0b1101)
			p.Wait(sl)
			slice, bit, joined = sl.Value(), b0.Value(), cat.Value()

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(slice).To(Equal(uint64(0b11)))
		Expect(bit).To(BeTrue())
		Expect(joined).To(Equal(uint64(0b111)))
	})

	It("should wake its waiters in the same delta as the source", func() {
		v := NewSignal(k, "v", uint8(0))
		hi := BitOf(k, v, 7)

		var srcDelta, shadowDelta int

		k.Process("src", func(p *Proc) error {
			p.Wait(v)
			srcDelta = p.Kernel().Delta()

			return nil
		})
		k.Process("shadow", func(p *Proc) error {
			p.Wait(hi.Posedge())
			shadowDelta = p.Kernel().Delta()

			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			v.Set(0x80)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(srcDelta).To(Equal(1))
		Expect(shadowDelta).To(Equal(srcDelta))
	})

	It("should compute custom functions", func() {
		a := NewSignal(k, "a", 2)
		b := NewSignal(k, "b", 3)
		sum := NewShadow(k, "sum", []SignalInfo{a, b},
			func() int { return a.Value() + b.Value() })

		Expect(sum.Value()).To(Equal(5))
		Expect(sum.Sources()).To(HaveLen(2))

		k.Process("p", func(p *Proc) error {
			a.Set(10)
			b.Set(20)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Value()).To(Equal(30))
	})

	It("should be read-only", func() {
		v := NewSignal(k, "v", uint8(0))
		sl := SliceOf(k, v, 2, 0)

		Expect(IsKind(sl.TrySet(1), ReadOnlyError)).To(BeTrue())
		Expect(func() { SliceOf(k, v, 9, 0) }).To(Panic())
		Expect(func() { BitOf(k, v, 8) }).To(Panic())
	})

	It("should evaluate a shadow of shadows after all its sources", func() {
		rec := &changeRecorder{}
		k.AcceptHook(rec)

		p2 := NewSignal(k, "p2", false)
		p3 := NewSignal(k, "p3", true)
		b := BitOf(k, p3, 0)
		a := NewShadow(k, "a", []SignalInfo{b, p2},
			func() bool { return b.Value() != p2.Value() })

		Expect(a.Value()).To(BeTrue())

		negWoken := 0

		k.Process("neg", func(p *Proc) error {
			p.Wait(a.Negedge())
			negWoken++

			return nil
		})
		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			p2.Set(true)
			p3.Set(false)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(a.Value()).To(BeTrue())
		Expect(rec.of("a")).To(BeEmpty())
		Expect(rec.of("p3[0]")).To(HaveLen(1))
		Expect(negWoken).To(Equal(0))
	})

	It("should evaluate each shadow once per delta", func() {
		rec := &changeRecorder{}
		k.AcceptHook(rec)

		v := NewSignal(k, "v", uint8(0))
		lo := SliceOf(k, v, 4, 0)
		hi := SliceOf(k, v, 8, 4)
		sum := NewShadow(k, "sum", []SignalInfo{v, lo, hi},
			func() uint64 { return uint64(v.Value()) + lo.Value() + hi.Value() })

		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			v.Set(0x21)

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Value()).To(Equal(uint64(0x21 + 1 + 2)))
		Expect(rec.of("sum")).To(Equal([]change{{1, "sum", "36"}}))
	})
})
