package tracing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/bitvec"
	"github.com/sarchlab/deltasim/sim"
	"github.com/tebeka/atexit"
)

// A VCDOption configures a VCDTracer.
type VCDOption func(*VCDTracer)

// WithTimescale sets the timescale written in the header, "1ns" by
// default.
func WithTimescale(ts string) VCDOption {
	return func(t *VCDTracer) {
		t.timescale = ts
	}
}

// WithInitialValues makes the tracer dump the value of every signal at the
// start of the trace.
func WithInitialValues() VCDOption {
	return func(t *VCDTracer) {
		t.initialValues = true
	}
}

// WithDate sets the date written in the header.
func WithDate(d time.Time) VCDOption {
	return func(t *VCDTracer) {
		t.date = d
	}
}

// WithTopScope sets the name of the scope that holds all the signals,
// "top" by default.
func WithTopScope(name string) VCDOption {
	return func(t *VCDTracer) {
		t.topScope = name
	}
}

// VCDTracer writes signal changes in the Value Change Dump format.
type VCDTracer struct {
	w      *bufio.Writer
	closer io.Closer

	timescale     string
	initialValues bool
	date          time.Time
	topScope      string

	codes    map[string]string
	lastTime sim.VTime
	hasTime  bool
	err      error
}

// NewVCDTracer creates a tracer that writes into w.
func NewVCDTracer(w io.Writer, opts ...VCDOption) *VCDTracer {
	t := &VCDTracer{
		w:         bufio.NewWriter(w),
		timescale: "1ns",
		date:      time.Now(),
		topScope:  "top",
		codes:     make(map[string]string),
	}

	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// OpenVCD creates the file at path and a tracer that writes into it. The
// file is closed when the trace ends or when the program exits.
func OpenVCD(path string, opts ...VCDOption) (*VCDTracer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating trace file %s", path)
	}

	t := NewVCDTracer(f, opts...)

	atexit.Register(func() { _ = t.Close() })

	return t, nil
}

// Err returns the first write error, if any.
func (t *VCDTracer) Err() error {
	return t.err
}

// StartTrace writes the header and, if enabled, the initial values.
func (t *VCDTracer) StartTrace(now sim.VTime, signals []sim.SignalInfo) {
	t.printf("$date\n\t%s\n$end\n", t.date.Format(time.RFC1123))
	t.printf("$version\n\tdeltasim\n$end\n")
	t.printf("$timescale\n\t%s\n$end\n\n", t.timescale)

	for i, s := range signals {
		t.codes[s.Name()] = VCDCode(i)
	}

	t.writeScope(buildScope(t.topScope, signals), 0)

	t.printf("\n$enddefinitions $end\n")

	if !t.initialValues {
		return
	}

	t.printf("#%d\n$dumpvars\n", now)

	for _, s := range signals {
		t.writeValue(s)
	}

	t.printf("$end\n")

	t.lastTime = now
	t.hasTime = true
}

// TraceChanges writes the new values of the changed signals.
func (t *VCDTracer) TraceChanges(
	now sim.VTime,
	_ int,
	changed []sim.SignalInfo,
) {
	t.stamp(now)

	for _, s := range changed {
		t.writeValue(s)
	}
}

// EndTrace writes the final time and closes the output.
func (t *VCDTracer) EndTrace(now sim.VTime) {
	t.stamp(now)

	if err := t.Close(); err != nil && t.err == nil {
		t.err = err
	}
}

// Close flushes the output and closes it if it can be closed.
func (t *VCDTracer) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}

	if t.closer == nil {
		return nil
	}

	c := t.closer
	t.closer = nil

	return c.Close()
}

func (t *VCDTracer) stamp(now sim.VTime) {
	if t.hasTime && now == t.lastTime {
		return
	}

	t.printf("#%d\n", now)
	t.lastTime = now
	t.hasTime = true
}

func (t *VCDTracer) writeValue(s sim.SignalInfo) {
	code := t.codes[s.Name()]
	if code == "" {
		return
	}

	bits, ok := s.Bits()

	switch {
	case s.Width() == 0:
		t.printf("s%s %s\n", strings.ReplaceAll(s.String(), " ", "_"), code)
	case s.Width() == 1 && !s.Driven():
		t.printf("z%s\n", code)
	case s.Width() == 1:
		t.printf("%d%s\n", bits&1, code)
	case !ok:
		t.printf("bz %s\n", code)
	default:
		t.printf("b%s %s\n", bitvec.Binary(bits), code)
	}
}

func (t *VCDTracer) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}

	if _, err := fmt.Fprintf(t.w, format, args...); err != nil {
		t.err = err
	}
}

type scope struct {
	name     string
	children map[string]*scope
	order    []string
	vars     []sim.SignalInfo
	leafs    []string
}

func newScope(name string) *scope {
	return &scope{name: name, children: make(map[string]*scope)}
}

func buildScope(top string, signals []sim.SignalInfo) *scope {
	root := newScope(top)

	for _, s := range signals {
		parts := strings.Split(s.Name(), ".")
		cur := root

		for _, p := range parts[:len(parts)-1] {
			child, ok := cur.children[p]
			if !ok {
				child = newScope(p)
				cur.children[p] = child
				cur.order = append(cur.order, p)
			}

			cur = child
		}

		cur.vars = append(cur.vars, s)
		cur.leafs = append(cur.leafs, parts[len(parts)-1])
	}

	return root
}

func (t *VCDTracer) writeScope(sc *scope, depth int) {
	indent := strings.Repeat("\t", depth)

	t.printf("%s$scope module %s $end\n", indent, sc.name)

	for i, s := range sc.vars {
		kind, width := "reg", s.Width()

		switch width {
		case 0:
			kind, width = "string", 1
		case 1:
			kind = "wire"
		}

		t.printf("%s\t$var %s %d %s %s $end\n",
			indent, kind, width, t.codes[s.Name()], sc.leafs[i])
	}

	names := make([]string, len(sc.order))
	copy(names, sc.order)
	sort.Strings(names)

	for _, n := range names {
		t.writeScope(sc.children[n], depth+1)
	}

	t.printf("%s$upscope $end\n", indent)
}

// VCDCode returns the identifier code of the n-th variable. Codes use the
// printable characters from '!' to '~'.
func VCDCode(n int) string {
	const base = '~' - '!' + 1

	var b []byte
	for {
		b = append(b, byte('!'+n%base))
		n /= base

		if n == 0 {
			break
		}
	}

	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}

	return string(b)
}
