package value

import (
	"cmp"
	"strings"
	"time"
)

// Compare orders a against b and reports whether the two are comparable.
//
// Null sorts before every other value. Int and Float compare numerically
// with each other, Date and Time compare as instants, and Bool orders false
// before true. Lists, objects and mismatched kinds are not comparable.
func Compare(a, b Value) (int, bool) {
	aNull, bNull := IsNull(a), IsNull(b)
	switch {
	case aNull && bNull:
		return 0, true
	case aNull:
		return -1, true
	case bNull:
		return 1, true
	}

	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return cmp.Compare(av, bv), true
		case Float:
			return cmp.Compare(float64(av), float64(bv)), true
		}
	case Float:
		switch bv := b.(type) {
		case Float:
			return cmp.Compare(av, bv), true
		case Int:
			return cmp.Compare(float64(av), float64(bv)), true
		}
	case String:
		if bv, ok := b.(String); ok {
			return strings.Compare(string(av), string(bv)), true
		}
	case Bool:
		if bv, ok := b.(Bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !bool(av):
				return -1, true
			default:
				return 1, true
			}
		}
	case Date, Time:
		at, _ := instant(a)
		if bt, ok := instant(b); ok {
			return at.Compare(bt), true
		}
	}
	return 0, false
}

// Equal reports structural equality. Int and Float are equal when
// numerically equal; Null equals only Null.
func Equal(a, b Value) bool {
	aNull, bNull := IsNull(a), IsNull(b)
	if aNull || bNull {
		return aNull && bNull
	}

	switch av := a.(type) {
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, exists := bv[k]
			if !exists || !Equal(elem, other) {
				return false
			}
		}
		return true
	}

	c, ok := Compare(a, b)
	return ok && c == 0
}

func instant(v Value) (time.Time, bool) {
	switch tv := v.(type) {
	case Date:
		return tv.Time, true
	case Time:
		return tv.Time, true
	default:
		return time.Time{}, false
	}
}
