// Package cosim bridges the kernel with an external simulator over two
// ordered line streams.
//
// At startup the other side declares the signals it drives with
// "FROM <name> <width>" lines and the signals it reads with
// "TO <name> <width>" lines, ends the list with "START", and the host
// answers "OK". Every declared signal gets a short code in declaration
// order. At every stable point of the kernel, the host sends the time and
// the values of the TO signals that changed since the last exchange, and the
// other side answers with a line of FROM updates, or an empty line.
package cosim

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/bitvec"
	"github.com/sarchlab/deltasim/sim"
)

// Direction tells which side drives a shared signal.
type Direction int

// The directions of a shared signal.
const (
	// From signals are driven by the other side.
	From Direction = iota
	// To signals are driven by the kernel and read by the other side.
	To
)

func (d Direction) String() string {
	if d == From {
		return "FROM"
	}

	return "TO"
}

// A Port is a signal shared with the other side.
type Port struct {
	Code      string
	Direction Direction
	Signal    sim.SignalInfo

	last   uint64
	lastOK bool
}

// Session is the host side of a cosimulation. It implements
// sim.Cosimulator.
type Session struct {
	in    *bufio.Reader
	out   *bufio.Writer
	close func() error

	ports  []*Port
	byCode map[string]*Port

	started bool
	synced  bool
	closed  bool
}

// NewSession creates a session that reads from r and writes to w. Closing
// the session closes both streams if they can be closed.
func NewSession(r io.Reader, w io.Writer) *Session {
	s := &Session{
		in:     bufio.NewReader(r),
		out:    bufio.NewWriter(w),
		byCode: make(map[string]*Port),
	}

	s.close = func() error {
		var err error

		if c, ok := w.(io.Closer); ok {
			err = c.Close()
		}

		if c, ok := r.(io.Closer); ok {
			if cerr := c.Close(); err == nil {
				err = cerr
			}
		}

		return err
	}

	return s
}

// StartProcess starts cmd and connects a session to its standard input and
// output. Closing the session closes the input of the command and waits for
// it to exit.
func StartProcess(cmd *exec.Cmd) (*Session, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cosimulator stdin")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cosimulator stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting cosimulator %s", cmd.Path)
	}

	s := NewSession(stdout, stdin)
	s.close = func() error {
		if err := stdin.Close(); err != nil {
			return err
		}

		return cmd.Wait()
	}

	return s, nil
}

// Ports returns the shared signals in declaration order.
func (s *Session) Ports() []*Port {
	out := make([]*Port, len(s.ports))
	copy(out, s.ports)

	return out
}

// Start reads the declarations of the other side and acknowledges them.
func (s *Session) Start(k *sim.Kernel) error {
	if s.started {
		return errors.New("cosimulation already started")
	}

	s.started = true

	for {
		line, err := s.readLine()
		if err != nil {
			return errors.Wrap(err, "handshake")
		}

		if line == "" {
			continue
		}

		if line == "START" {
			break
		}

		if err := s.declare(k, line); err != nil {
			return err
		}
	}

	return s.writeLine("OK")
}

func (s *Session) declare(k *sim.Kernel, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return errors.Errorf("malformed declaration %q", line)
	}

	var dir Direction

	switch fields[0] {
	case "FROM":
		dir = From
	case "TO":
		dir = To
	default:
		return errors.Errorf("malformed declaration %q", line)
	}

	name := fields[1]

	width, err := strconv.Atoi(fields[2])
	if err != nil || width <= 0 || width > bitvec.MaxWidth {
		return errors.Errorf("invalid width in declaration %q", line)
	}

	sig, found := k.LookupSignal(name)
	if !found {
		return errors.Errorf("unknown signal %s", name)
	}

	if sig.Width() != width {
		return errors.Errorf("signal %s has width %d, declared %d",
			name, sig.Width(), width)
	}

	for _, p := range s.ports {
		if p.Signal == sig {
			return errors.Errorf("signal %s declared twice", name)
		}
	}

	p := &Port{
		Code:      Code(len(s.ports)),
		Direction: dir,
		Signal:    sig,
	}
	s.ports = append(s.ports, p)
	s.byCode[p.Code] = p

	return nil
}

// Exchange sends the TO signals that changed since the last exchange and
// applies the updates the other side answers with. Undriven signals are not
// sent.
func (s *Session) Exchange(now sim.VTime) (bool, error) {
	if !s.started {
		return false, errors.New("cosimulation not started")
	}

	if err := s.writeLine(FormatLine(uint64(now), s.snapshot())); err != nil {
		return false, err
	}

	s.synced = true

	line, err := s.readLine()
	if err != nil {
		return false, errors.Wrapf(err, "waiting for updates at time %d", now)
	}

	updates, err := ParseUpdates(line)
	if err != nil {
		return false, err
	}

	return s.apply(updates)
}

func (s *Session) snapshot() []Update {
	var updates []Update

	for _, p := range s.ports {
		if p.Direction != To {
			continue
		}

		v, ok := p.Signal.Bits()
		if !ok {
			p.lastOK = false
			continue
		}

		if s.synced && p.lastOK && p.last == v {
			continue
		}

		p.last, p.lastOK = v, true
		updates = append(updates, Update{Code: p.Code, Value: v})
	}

	return updates
}

func (s *Session) apply(updates []Update) (bool, error) {
	changed := false

	for _, u := range updates {
		p, found := s.byCode[u.Code]
		if !found {
			return changed, errors.Errorf("unknown signal code %s", u.Code)
		}

		if p.Direction != From {
			return changed, errors.Errorf(
				"signal %s is not driven by the cosimulator", p.Signal.Name())
		}

		if u.Value&^bitvec.Mask(p.Signal.Width()) != 0 {
			return changed, errors.Errorf("value %s too wide for signal %s",
				bitvec.Binary(u.Value), p.Signal.Name())
		}

		cur, ok := p.Signal.Bits()

		if err := p.Signal.SetBits(u.Value); err != nil {
			return changed, err
		}

		if !ok || cur != u.Value {
			changed = true
		}
	}

	return changed, nil
}

// Close ends the session. The other side sees the end of its input stream.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.out.Flush(); err != nil {
		s.close()
		return errors.Wrap(err, "flushing cosimulation stream")
	}

	return s.close()
}

func (s *Session) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}

	if err == io.EOF {
		return "", errors.New("cosimulator ended prematurely")
	}

	if err != nil {
		return "", errors.Wrap(err, "reading cosimulation stream")
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) writeLine(line string) error {
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return errors.Wrap(err, "writing cosimulation stream")
	}

	if err := s.out.Flush(); err != nil {
		return errors.Wrap(err, "writing cosimulation stream")
	}

	return nil
}
