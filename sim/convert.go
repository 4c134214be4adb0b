package sim

import (
	"reflect"

	"github.com/sarchlab/deltasim/bitvec"
)

// toBits returns the raw bit pattern of a boolean or integer value. Values
// of other kinds are not bit-representable.
func toBits(v interface{}) (uint64, bool) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}

		return 0, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return uint64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	default:
		return 0, false
	}
}

// fromBits builds a T from the w lowest bits of b. With signed set, signed
// kinds are sign extended from bit w-1; otherwise the bits are taken as an
// unsigned number.
func fromBits[T any](b uint64, w int, signed bool) (T, bool) {
	var out T

	rv := reflect.ValueOf(&out).Elem()

	switch rv.Kind() {
	case reflect.Bool:
		rv.SetBool(b&bitvec.Mask(w) != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		if signed {
			rv.SetInt(bitvec.SignExtend(b&bitvec.Mask(w), w))
		} else {
			rv.SetInt(int64(b & bitvec.Mask(w)))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		rv.SetUint(b & bitvec.Mask(w))
	default:
		return out, false
	}

	return out, true
}

// toInt64 converts an integer value for range checking. Unsigned values
// above the int64 range report false.
func toInt64(v interface{}) (int64, bool) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, false
		}

		return int64(u), true
	default:
		return 0, false
	}
}

// typeWidth returns the natural width of T, or 0 if T has none.
func typeWidth[T any]() int {
	var zero T

	rv := reflect.ValueOf(&zero).Elem()

	switch rv.Kind() {
	case reflect.Bool:
		return 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Type().Bits()
	default:
		return 0
	}
}

// signedKind reports whether T is a signed integer type.
func signedKind[T any]() bool {
	var zero T

	switch reflect.ValueOf(&zero).Elem().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return true
	default:
		return false
	}
}

// isZero is the edge predicate: bit-representable values are zero when
// their w lowest bits are clear, other values when they equal their zero
// value.
func isZero[T comparable](v T, w int) bool {
	if b, ok := toBits(v); ok {
		return b&bitvec.Mask(w) == 0
	}

	var zero T

	return v == zero
}
