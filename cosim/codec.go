package cosim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/deltasim/bitvec"
)

// Code returns the short code of the i-th declared signal. Codes are
// uppercase base 26 numbers with A as the zero digit: A, B, ..., Z, BA, BB.
func Code(i int) string {
	if i < 0 {
		panic("cosim: negative signal index")
	}

	if i == 0 {
		return "A"
	}

	var digits []byte
	for i > 0 {
		digits = append(digits, byte('A'+i%26))
		i /= 26
	}

	for l, r := 0, len(digits)-1; l < r; l, r = l+1, r-1 {
		digits[l], digits[r] = digits[r], digits[l]
	}

	return string(digits)
}

// An Update is one code-value token of the wire format.
type Update struct {
	Code  string
	Value uint64
}

func (u Update) String() string {
	return u.Code + bitvec.Binary(u.Value)
}

// FormatLine formats a host line: the time followed by the updates.
func FormatLine(now uint64, updates []Update) string {
	var sb strings.Builder

	sb.WriteString(strconv.FormatUint(now, 10))

	for _, u := range updates {
		sb.WriteByte(' ')
		sb.WriteString(u.String())
	}

	return sb.String()
}

// ParseUpdates splits a line of code-value tokens. An empty line holds no
// update.
func ParseUpdates(line string) ([]Update, error) {
	fields := strings.Fields(line)
	updates := make([]Update, 0, len(fields))

	for _, f := range fields {
		u, err := parseToken(f)
		if err != nil {
			return nil, err
		}

		updates = append(updates, u)
	}

	return updates, nil
}

// ParseLine splits a host line into its time and updates.
func ParseLine(line string) (uint64, []Update, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, errors.New("empty host line")
	}

	now, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, nil, errors.Errorf("invalid time %q", fields[0])
	}

	updates, err := ParseUpdates(strings.Join(fields[1:], " "))
	if err != nil {
		return 0, nil, err
	}

	return now, updates, nil
}

func parseToken(tok string) (Update, error) {
	n := 0
	for n < len(tok) && tok[n] >= 'A' && tok[n] <= 'Z' {
		n++
	}

	if n == 0 || n == len(tok) {
		return Update{}, errors.Errorf("malformed token %q", tok)
	}

	v, err := bitvec.ParseBinary(tok[n:])
	if err != nil {
		return Update{}, errors.Wrapf(err, "token %q", tok)
	}

	return Update{Code: tok[:n], Value: v}, nil
}
