package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/deltasim/sim"
)

func get(m *Monitor, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	m.router().ServeHTTP(rec, req)

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		k   *sim.Kernel
		clk *sim.Signal[bool]
		cnt *sim.Signal[int]
		m   *Monitor
	)

	BeforeEach(func() {
		k = sim.MakeBuilder().WithQuiet().Build()
		clk = sim.NewSignal(k, "clk", false)
		cnt = sim.NewSignal(k, "cpu.cnt", 0, sim.WithRange(0, 8))
		k.Clock(clk, 5)
		k.Counter(clk, cnt)

		m = NewMonitor()
		m.RegisterKernel(k)
	})

	It("should fall back to a random port", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should pause and continue the kernel", func() {
		Expect(get(m, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(k.IsPaused()).To(BeTrue())

		Expect(get(m, "/api/continue").Code).To(Equal(http.StatusOK))
		Expect(k.IsPaused()).To(BeFalse())
	})

	It("should report the current time", func() {
		_, err := k.RunFor(12)
		Expect(err).ToNot(HaveOccurred())

		rsp := struct {
			Now    uint64 `json:"now"`
			Paused bool   `json:"paused"`
		}{}
		Expect(json.Unmarshal(get(m, "/api/now").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp.Now).To(Equal(uint64(12)))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should list signals with their values", func() {
		_, err := k.RunFor(12)
		Expect(err).ToNot(HaveOccurred())

		var rsp []signalRsp
		Expect(json.Unmarshal(get(m, "/api/signals").Body.Bytes(), &rsp)).
			To(Succeed())

		Expect(rsp).To(Equal([]signalRsp{
			{Name: "clk", Width: 1, Driven: true, Value: "false"},
			{Name: "cpu.cnt", Width: 3, Driven: true, Value: "1"},
		}))
	})

	It("should list signals while the kernel is paused", func() {
		k.Pause()
		defer k.Continue()

		rec := get(m, "/api/signals")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should show signal details", func() {
		rec := get(m, "/api/signal/cpu.cnt")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("cpu.cnt"))
	})

	It("should return 404 for unknown signals", func() {
		rec := get(m, "/api/signal/nope")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should list processes", func() {
		var rsp []sim.ProcessRecord
		Expect(json.Unmarshal(get(m, "/api/processes").Body.Bytes(), &rsp)).
			To(Succeed())

		Expect(rsp).To(Equal([]sim.ProcessRecord{
			{ID: 1, Name: "clk.gen"},
			{ID: 2, Name: "cpu.cnt.count"},
		}))
	})

	It("should track simulated time with a progress bar", func() {
		bar := m.CreateProgressBar("Simulated time", 20)
		k.AcceptHook(NewTimeProgress(bar))

		_, err := k.RunFor(10)
		Expect(err).ToNot(HaveOccurred())

		var rsp []progressBarRsp
		Expect(json.Unmarshal(get(m, "/api/progress").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("Simulated time"))
		Expect(rsp[0].Finished).To(Equal(uint64(10)))
		Expect(rsp[0].Total).To(Equal(uint64(20)))

		m.CompleteProgressBar(bar)
		Expect(get(m, "/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should cap progress at the total", func() {
		bar := m.CreateProgressBar("bar", 5)
		bar.IncrementFinished(2)
		Expect(bar.snapshot().Finished).To(Equal(uint64(2)))

		bar.SetFinished(9)
		Expect(bar.snapshot().Finished).To(Equal(uint64(5)))
	})

	It("should report resource usage", func() {
		rec := get(m, "/api/resource")
		Expect(rec.Code).To(Equal(http.StatusOK))

		rsp := resourceRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get(m, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
