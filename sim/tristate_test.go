package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tristate", func() {
	var k *Kernel

	BeforeEach(func() {
		k = newTestKernel()
	})

	It("should be undriven without active drivers", func() {
		bus := NewTristate[int](k, "bus", nil)
		bus.Driver()

		Expect(bus.Driven()).To(BeFalse())
		Expect(bus.String()).To(Equal("Z"))

		_, ok := bus.Bits()
		Expect(ok).To(BeFalse())
	})

	It("should resolve a single driver and fail on a conflict", func() {
		bus := NewTristate[int](k, "bus", Strict[int]())
		a, b, _ := bus.Driver(), bus.Driver(), bus.Driver()

		var atOne int
		var drivenAtOne bool

		k.Process("drv", func(p *Proc) error {
			p.Wait(Delay(1))
			a.Set(5)
			p.Wait()
			atOne, drivenAtOne = bus.Value(), bus.Driven()
			p.Wait(Delay(1))
			b.Set(7)
			p.Wait(Delay(10))

			return nil
		})

		status, err := k.Run()

		Expect(atOne).To(Equal(5))
		Expect(drivenAtOne).To(BeTrue())
		Expect(status).To(Equal(StatusFailed))
		Expect(IsKind(err, ResolutionConflict)).To(BeTrue())
		Expect(k.CurrentTime()).To(Equal(VTime(2)))
	})

	It("should go back to undriven on release", func() {
		bus := NewTristate[uint8](k, "bus", nil)
		a := bus.Driver()

		var negedges int

		k.Always("watch", func(p *Proc) error {
			negedges++
			return nil
		}, bus.Negedge())
		k.Process("drv", func(p *Proc) error {
			a.Set(3)
			p.Wait(Delay(1))
			a.Release()

			return nil
		})

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(bus.Driven()).To(BeFalse())
		Expect(a.Driven()).To(BeFalse())
		Expect(negedges).To(Equal(1))
	})

	It("should resolve wired-and and wired-or", func() {
		and := NewTristate(k, "and", WiredAnd[uint8]())
		or := NewTristate(k, "or", WiredOr[uint8]())

		for _, bus := range []*Tristate[uint8]{and, or} {
			bus.Driver().Set(0b1100)
			bus.Driver().Set(0b1010)
		}

		k.Process("p", func(p *Proc) error { return nil })

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(and.Value()).To(Equal(uint8(0b1000)))
		Expect(or.Value()).To(Equal(uint8(0b1110)))
		Expect(and.NumDrivers()).To(Equal(2))
	})

	It("should not be assigned directly", func() {
		bus := NewTristate[int](k, "bus", nil)

		Expect(IsKind(bus.TrySet(1), ReadOnlyError)).To(BeTrue())
		Expect(bus.SetBits(1)).NotTo(Succeed())
	})
})
