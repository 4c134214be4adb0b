package sim

import "log"

// Clock registers a process that toggles clk every halfPeriod time units,
// starting halfPeriod after time 0.
func (k *Kernel) Clock(clk *Signal[bool], halfPeriod VTime) ProcessRecord {
	if halfPeriod == 0 {
		log.Panic("clock half period must be positive")
	}

	return k.Process(clk.Name()+".gen", func(p *Proc) error {
		for {
			p.Wait(Delay(halfPeriod))
			clk.Set(!clk.Value())
		}
	})
}

// Counter registers a process that increments cnt on every posedge of clk,
// wrapping at the range of cnt when it has one.
func (k *Kernel) Counter(clk *Signal[bool], cnt *Signal[int]) ProcessRecord {
	return k.Always(cnt.Name()+".count", func(p *Proc) error {
		next := cnt.Value() + 1

		if min, max, ok := cnt.Range(); ok && int64(next) >= max {
			next = int(min)
		}

		return cnt.TrySet(next)
	}, clk.Posedge())
}
