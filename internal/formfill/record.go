package formfill

import (
	"encoding/json"
	"strconv"
)

// Record is a flat field map. Input records and derived records share this shape.
type Record map[string]string

// NewRecord converts a decoded JSON object into a Record. Values are coerced to
// strings: nil becomes "", numbers use their shortest decimal form and
// anything that is not a scalar is kept as compact JSON.
func NewRecord(raw map[string]any) Record {
	rec := make(Record, len(raw))
	for k, v := range raw {
		rec[k] = stringify(v)
	}
	return rec
}

// Clone returns a copy of r that can be modified without affecting r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
