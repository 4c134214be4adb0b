package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sarchlab/deltasim/sim"
)

// A bench elaborates a design on a kernel. The returned function summarizes
// the run.
type bench struct {
	desc  string
	build func(k *sim.Kernel) func() string
}

var benches = map[string]bench{
	"flipflop": {
		desc:  "D flip-flop clocked every 10 units, d pulses from 5 to 25",
		build: flipFlop,
	},
	"counter": {
		desc:  "4-bit counter on a clock of period 10",
		build: counter,
	},
}

func benchNames() []string {
	names := make([]string, 0, len(benches))
	for name := range benches {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// trajectory records the committed values of a signal.
type trajectory struct {
	name  string
	steps []string
}

func watch[T comparable](k *sim.Kernel, s *sim.Signal[T]) *trajectory {
	t := &trajectory{name: s.Name()}
	t.steps = append(t.steps, fmt.Sprintf("%v@0", s.Value()))

	k.Always(s.Name()+".watch", func(p *sim.Proc) error {
		t.steps = append(t.steps, fmt.Sprintf("%v@%d", s.Value(), p.Now()))
		return nil
	}, s)

	return t
}

func (t *trajectory) String() string {
	return t.name + ": " + strings.Join(t.steps, " ")
}

func flipFlop(k *sim.Kernel) func() string {
	clk := sim.NewSignal(k, "clk", false)
	d := sim.NewSignal(k, "d", false)
	q := sim.NewSignal(k, "q", false)

	k.Clock(clk, 10)

	k.Process("stimulus", func(p *sim.Proc) error {
		p.Wait(sim.Delay(5))
		d.Set(true)
		p.Wait(sim.Delay(20))
		d.Set(false)

		return nil
	})

	k.Always("dff", func(_ *sim.Proc) error {
		q.Set(d.Value())
		return nil
	}, clk.Posedge())

	return watch(k, q).String
}

func counter(k *sim.Kernel) func() string {
	clk := sim.NewSignal(k, "clk", false)
	cnt := sim.NewSignal(k, "cnt", 0, sim.WithRange(0, 16))

	k.Clock(clk, 5)
	k.Counter(clk, cnt)

	return watch(k, cnt).String
}
