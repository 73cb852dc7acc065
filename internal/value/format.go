package value

import (
	"strconv"
	"strings"
	"time"
)

// Layouts used for textual dates and instants.
const (
	DateLayout = "2006-01-02"
	TimeLayout = time.RFC3339Nano
)

// Format renders v as plain text. Null renders as the empty string.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Bool:
		return strconv.FormatBool(bool(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case String:
		return string(val)
	case Date:
		return val.Format(DateLayout)
	case Time:
		return val.Format(TimeLayout)
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case Object:
		data, err := MarshalCanonical(val)
		if err != nil {
			return "{}"
		}
		return string(data)
	default:
		return ""
	}
}

// Native converts v to the Go value used by encoding/json and database/sql.
// Dates and instants become strings in DateLayout and TimeLayout.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Date:
		return val.Format(DateLayout)
	case Time:
		return val.Format(TimeLayout)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}
