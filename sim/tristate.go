package sim

import (
	"github.com/pkg/errors"
)

// A ResolveFunc combines the values of two or more active drivers of a
// tristate signal.
type ResolveFunc[T comparable] func(values []T) (T, error)

// Strict rejects more than one active driver.
func Strict[T comparable]() ResolveFunc[T] {
	return func(values []T) (T, error) {
		var zero T
		return zero, errors.Errorf("%d drivers active: %v", len(values), values)
	}
}

// WiredAnd resolves active drivers with a bitwise and.
func WiredAnd[T comparable]() ResolveFunc[T] {
	return wired[T](func(a, b uint64) uint64 { return a & b })
}

// WiredOr resolves active drivers with a bitwise or.
func WiredOr[T comparable]() ResolveFunc[T] {
	return wired[T](func(a, b uint64) uint64 { return a | b })
}

func wired[T comparable](op func(a, b uint64) uint64) ResolveFunc[T] {
	return func(values []T) (T, error) {
		var zero T

		acc, ok := toBits(values[0])
		if !ok {
			return zero, errors.Errorf("%T values can not be wired", zero)
		}

		for _, v := range values[1:] {
			b, _ := toBits(v)
			acc = op(acc, b)
		}

		out, _ := fromBits[T](acc, 64, true)

		return out, nil
	}
}

// A Tristate is a resolved signal. It is assigned only through its drivers;
// its value is the resolution of the drivers that are active. With no
// active driver it is undriven.
type Tristate[T comparable] struct {
	*Signal[T]

	drivers    []*Driver[T]
	resolution ResolveFunc[T]
}

// NewTristate creates a tristate signal. A nil resolution means Strict.
func NewTristate[T comparable](
	k *Kernel,
	name string,
	resolution ResolveFunc[T],
	opts ...SignalOption,
) *Tristate[T] {
	var zero T

	s := newSignal(k, name, zero, opts)
	s.readOnly = true
	s.driven = false
	s.resolved = true

	if resolution == nil {
		resolution = Strict[T]()
	}

	t := &Tristate[T]{Signal: s, resolution: resolution}
	s.resolve = t.resolve

	k.registerSignal(s)

	return t
}

// Driver creates a new driver of the tristate. A new driver is inactive.
func (t *Tristate[T]) Driver() *Driver[T] {
	d := &Driver[T]{bus: t}
	t.drivers = append(t.drivers, d)

	return d
}

// NumDrivers returns the number of drivers created on the tristate.
func (t *Tristate[T]) NumDrivers() int {
	return len(t.drivers)
}

func (t *Tristate[T]) resolve() (T, bool, error) {
	var zero T

	active := make([]T, 0, len(t.drivers))
	for _, d := range t.drivers {
		if d.driven {
			active = append(active, d.val)
		}
	}

	switch len(active) {
	case 0:
		return zero, false, nil
	case 1:
		return active[0], true, nil
	}

	v, err := t.resolution(active)
	if err != nil {
		return zero, false, t.k.errorf(ResolutionConflict, t.name, "%v", err)
	}

	return v, true, nil
}

// A Driver is one source of a tristate signal.
type Driver[T comparable] struct {
	bus    *Tristate[T]
	val    T
	driven bool
}

// Set makes the driver active with the value v. A rejected value panics
// with a *SimError.
func (d *Driver[T]) Set(v T) {
	if err := d.TrySet(v); err != nil {
		panic(err)
	}
}

// TrySet makes the driver active with the value v.
func (d *Driver[T]) TrySet(v T) error {
	if err := d.bus.checkRange(v); err != nil {
		return err
	}

	if err := d.bus.checkWidth(v); err != nil {
		return err
	}

	d.val = v
	d.driven = true
	d.bus.k.markPending(d.bus.signalBase)

	return nil
}

// Release makes the driver inactive.
func (d *Driver[T]) Release() {
	var zero T

	d.val = zero
	d.driven = false
	d.bus.k.markPending(d.bus.signalBase)
}

// Value returns the value the driver drives.
func (d *Driver[T]) Value() T {
	return d.val
}

// Driven tells if the driver is active.
func (d *Driver[T]) Driven() bool {
	return d.driven
}
