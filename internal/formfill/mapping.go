package formfill

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor types.
const (
	TypeText     = "text"
	TypeCheckbox = "checkbox"
)

const defaultSize = 10

// typeMalformed marks an entry that is not an object. Render skips it.
const typeMalformed = "malformed"

// Descriptor says where and how one field is drawn on the template.
// Malformed values never fail decoding; they fall back to safe defaults.
type Descriptor struct {
	Page    int
	X       float64
	Y       float64
	Size    float64
	Type    string
	Sources []string // empty means the descriptor's own key
	// OnValue is the exact value that checks a checkbox. A null on_value in
	// the mapping is treated as absent.
	OnValue *string
}

// Mapping is the static field table the template coordinates are authored against.
type Mapping struct {
	Fields map[string]Descriptor
}

// Keys returns the field keys in a stable order.
func (m *Mapping) Keys() []string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseMapping decodes a mapping document. YAML is used when name ends in
// .yaml or .yml, JSON otherwise. An entry that is not an object is kept as a
// malformed descriptor instead of failing the document.
func ParseMapping(name string, b []byte) (*Mapping, error) {
	var doc struct {
		Fields map[string]any `json:"fields" yaml:"fields"`
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("yaml.Unmarshal %s: %w", name, err)
		}
	} else if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("json.Unmarshal %s: %w", name, err)
	}

	m := &Mapping{Fields: make(map[string]Descriptor, len(doc.Fields))}
	for key, raw := range doc.Fields {
		fields, ok := raw.(map[string]any)
		if !ok {
			slog.Warn("Mapping entry is not an object, it will be skipped.", "mapping", name, "field", key)
			d := descriptorFromMap(nil)
			d.Type = typeMalformed
			m.Fields[key] = d
			continue
		}
		m.Fields[key] = descriptorFromMap(fields)
	}
	return m, nil
}

func descriptorFromMap(raw map[string]any) Descriptor {
	d := Descriptor{
		Page: int(toNumber(raw["page"])),
		X:    toNumber(raw["x"]),
		Y:    toNumber(raw["y"]),
		Size: toNumber(raw["size"]),
		Type: strings.ToLower(strings.TrimSpace(toString(raw["type"]))),
	}
	if d.Page == 0 {
		d.Page = 1
	}
	if d.Size == 0 {
		d.Size = defaultSize
	}
	if d.Type == "" {
		d.Type = TypeText
	}

	switch src := raw["source"].(type) {
	case string:
		if src != "" {
			d.Sources = []string{src}
		}
	case []any:
		for _, s := range src {
			d.Sources = append(d.Sources, toString(s))
		}
	}

	if v, ok := raw["on_value"]; ok && v != nil {
		s := toString(v)
		d.OnValue = &s
	}
	return d
}

// toNumber accepts numbers and numeric strings; everything else is 0.
func toNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}
