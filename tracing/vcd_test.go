package tracing

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/deltasim/sim"
)

func buildDesign() *sim.Kernel {
	k := sim.MakeBuilder().WithQuiet().Build()

	clk := sim.NewSignal(k, "clk", false)
	cnt := sim.NewSignal(k, "cpu.cnt", 0, sim.WithRange(0, 4))
	state := sim.NewSignal(k, "cpu.alu.state", "idle")

	k.Clock(clk, 5)
	k.Counter(clk, cnt)
	k.Process("ctrl", func(p *sim.Proc) error {
		p.Wait(sim.Delay(7))
		state.Set("run busy")
		p.Wait(sim.Delay(5))

		return sim.ErrStopSimulation
	})

	return k
}

var _ = Describe("VCDTracer", func() {
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	It("should dump the header and the changes", func() {
		k := buildDesign()
		buf := new(bytes.Buffer)
		tracer := NewVCDTracer(buf, WithDate(date), WithInitialValues())
		CollectTrace(k, tracer)

		status, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(sim.StatusStopped))
		Expect(tracer.Err()).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal(`$date
	Tue, 02 Jan 2024 03:04:05 UTC
$end
$version
	deltasim
$end
$timescale
	1ns
$end

$scope module top $end
	$var wire 1 ! clk $end
	$scope module cpu $end
		$var reg 2 " cnt $end
		$scope module alu $end
			$var string 1 # state $end
		$upscope $end
	$upscope $end
$upscope $end

$enddefinitions $end
#0
$dumpvars
0!
b0 "
sidle #
$end
#5
1!
b1 "
#7
srun_busy #
#10
0!
#12
`))
	})

	It("should skip the initial values by default", func() {
		k := buildDesign()
		buf := new(bytes.Buffer)
		CollectTrace(k, NewVCDTracer(buf, WithDate(date),
			WithTimescale("10ps"), WithTopScope("tb")))

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("\t10ps\n"))
		Expect(buf.String()).To(ContainSubstring("$scope module tb $end"))
		Expect(buf.String()).NotTo(ContainSubstring("$dumpvars"))
		Expect(buf.String()).To(HaveSuffix("$enddefinitions $end\n" +
			"#5\n1!\nb1 \"\n#7\nsrun_busy #\n#10\n0!\n#12\n"))
	})

	It("should write undriven values", func() {
		k := sim.MakeBuilder().WithQuiet().Build()
		bit := sim.NewTristate[bool](k, "bit", nil)
		bus := sim.NewTristate[uint8](k, "bus", nil)
		bit.Driver()
		bus.Driver()

		buf := new(bytes.Buffer)
		CollectTrace(k, NewVCDTracer(buf, WithDate(date), WithInitialValues()))

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("$dumpvars\nz!\nbz \"\n$end\n"))
	})

	It("should write into a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "wave.vcd")
		tracer, err := OpenVCD(path, WithDate(date))
		Expect(err).NotTo(HaveOccurred())

		k := buildDesign()
		CollectTrace(k, tracer)

		_, err = k.Run()
		Expect(err).NotTo(HaveOccurred())

		content, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(HavePrefix("$date\n"))
		Expect(string(content)).To(HaveSuffix("#12\n"))
	})

	It("should not attach the same tracer twice", func() {
		k := sim.MakeBuilder().WithQuiet().Build()
		tracer := NewVCDTracer(new(bytes.Buffer))
		CollectTrace(k, tracer)

		Expect(func() { CollectTrace(k, tracer) }).To(Panic())
	})

	It("should encode identifiers", func() {
		Expect(VCDCode(0)).To(Equal("!"))
		Expect(VCDCode(93)).To(Equal("~"))
		Expect(VCDCode(94)).To(Equal("\"!"))
		Expect(VCDCode(95)).To(Equal("\"\""))
	})
})

var _ = Describe("ActivityTracer", func() {
	It("should count changes", func() {
		k := buildDesign()
		tracer := NewActivityTracer()
		CollectTrace(k, tracer)

		_, err := k.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(tracer.SignalNames()).To(Equal(
			[]string{"clk", "cpu.cnt", "cpu.alu.state"}))
		Expect(tracer.ChangeCount("clk")).To(Equal(uint64(2)))
		Expect(tracer.ChangeCount("cpu.cnt")).To(Equal(uint64(1)))
		Expect(tracer.ActiveDeltas()).To(Equal(uint64(4)))
		Expect(tracer.Busiest(1)).To(Equal([]string{"clk"}))

		at, ok := tracer.LastChange("cpu.alu.state")
		Expect(ok).To(BeTrue())
		Expect(at).To(Equal(sim.VTime(7)))
	})
})
