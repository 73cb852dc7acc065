// Package coerce turns textual filter literals and decoded JSON/YAML values
// into typed values for a field.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// DefaultDelimiter separates list literals when the caller gives none.
const DefaultDelimiter = ","

// dateLayouts are tried in order when parsing dates and instants.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Coerce parses raw into a value of f's type, looking through the nullable
// wrapper. Strings pass through unchanged; dates parse ISO-ish layouts and
// pure date fields drop the time of day.
func Coerce(raw string, f schema.Field) (value.Value, error) {
	v, err := parse(raw, f.Type.Underlying())
	if err != nil {
		return nil, qerr.NewCoercion(f.Name, raw, f.Type.Name(), err)
	}
	return v, nil
}

// CoerceList splits raw on delim (DefaultDelimiter when empty), trims every
// segment, drops empty segments and coerces the rest to the element type of
// f. For a scalar field the element type is the field's own type, so the
// result suits set-membership tests against it.
func CoerceList(raw, delim string, f schema.Field) (value.List, error) {
	elem := f.Type.Underlying()
	if elem.Kind == value.KindList && elem.Elem != nil {
		elem = elem.Elem.Underlying()
	}

	segments := Split(raw, delim)
	list := make(value.List, 0, len(segments))
	for _, seg := range segments {
		v, err := parse(seg, elem)
		if err != nil {
			return nil, qerr.NewCoercion(f.Name, seg, elem.Name(), err)
		}
		list = append(list, v)
	}
	return list, nil
}

// Split splits raw on delim (DefaultDelimiter when empty), trims whitespace
// and drops empty segments.
func Split(raw, delim string) []string {
	if delim == "" {
		delim = DefaultDelimiter
	}
	var out []string
	for _, seg := range strings.Split(raw, delim) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func parse(raw string, t schema.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindString:
		return value.String(raw), nil
	case value.KindInt:
		return parseInt(strings.TrimSpace(raw), t)
	case value.KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), bitsOr64(t.Bits))
		if err != nil {
			return nil, err
		}
		return value.Float(f), nil
	case value.KindBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		}
		return nil, fmt.Errorf("expected true or false")
	case value.KindDate:
		ts, err := ParseTime(raw)
		if err != nil {
			return nil, err
		}
		return value.NewDate(ts), nil
	case value.KindTime:
		ts, err := ParseTime(raw)
		if err != nil {
			return nil, err
		}
		return value.NewTime(ts), nil
	default:
		return nil, fmt.Errorf("type %s has no literal form", t.Name())
	}
}

func parseInt(raw string, t schema.Type) (value.Value, error) {
	bits := bitsOr64(t.Bits)
	if t.Unsigned {
		u, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return nil, err
		}
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", u)
		}
		return value.Int(int64(u)), nil
	}
	n, err := strconv.ParseInt(raw, 10, bits)
	if err != nil {
		return nil, err
	}
	return value.Int(n), nil
}

// ParseTime parses an ISO-ish date or date-time. Inputs without a zone are
// read as UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func bitsOr64(bits int) int {
	if bits == 0 {
		return 64
	}
	return bits
}
