package formfill

import (
	"fmt"
	"strings"
)

// CheckMark is drawn for checked boxes. A plain letter is used because check
// mark glyphs are missing from many subset fonts.
const CheckMark = "V"

const (
	lineHeightFactor  = 1.2
	checkboxSizeDelta = 2
)

// centeredKeys are printed into two-line boxes. A single-line value is moved
// down half a line so it sits in the middle of the box.
var centeredKeys = map[string]bool{
	"subscriber_name_print": true,
	"autopay_holder_print":  true,
}

var falsyCheckboxValues = map[string]bool{"0": true, "false": true, "off": true}

// Canvas is the page-addressed drawing surface a template is rendered onto.
type Canvas interface {
	PageCount() int
	// DrawText draws a single line with its baseline origin at x, y on the
	// 1-based page.
	DrawText(page int, x, y, size float64, text string) error
}

// Stats summarizes a render.
type Stats struct {
	Drawn   int // text lines and check marks
	Skipped int // descriptors that could not be placed
}

// Render draws every descriptor of m that has something to print. Descriptors
// that address a missing page or have an unknown type are skipped. Only a
// failing canvas aborts the render.
func Render(rec Record, m *Mapping, c Canvas) (Stats, error) {
	var st Stats
	pages := c.PageCount()

	for _, key := range m.Keys() {
		d := m.Fields[key]
		if d.Page < 1 || d.Page > pages {
			st.Skipped++
			continue
		}
		value := ResolveValue(rec, d, key)

		switch d.Type {
		case TypeText:
			n, err := drawText(c, key, d, value)
			st.Drawn += n
			if err != nil {
				return st, fmt.Errorf("field %s: %w", key, err)
			}
		case TypeCheckbox:
			if !IsChecked(d, value) {
				continue
			}
			if err := c.DrawText(d.Page, d.X, d.Y, d.Size+checkboxSizeDelta, CheckMark); err != nil {
				return st, fmt.Errorf("field %s: %w", key, err)
			}
			st.Drawn++
		default:
			st.Skipped++
		}
	}
	return st, nil
}

// ResolveValue looks up the value a descriptor prints. Multiple sources are
// concatenated without a separator; missing keys read as "".
func ResolveValue(rec Record, d Descriptor, key string) string {
	if len(d.Sources) == 0 {
		return rec[key]
	}
	if len(d.Sources) == 1 {
		return rec[d.Sources[0]]
	}
	var b strings.Builder
	for _, s := range d.Sources {
		b.WriteString(rec[s])
	}
	return b.String()
}

// IsChecked reports whether a checkbox with the resolved value is ticked. With
// an on_value only an exact match counts. Without one any non-empty value
// other than "0", "false" or "off" counts; the comparison is case-sensitive.
func IsChecked(d Descriptor, value string) bool {
	if d.OnValue != nil {
		return value == *d.OnValue
	}
	return value != "" && !falsyCheckboxValues[value]
}

func drawText(c Canvas, key string, d Descriptor, value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	lineHeight := d.Size * lineHeightFactor

	base := d.Y
	if centeredKeys[key] && len(lines) == 1 {
		base -= lineHeight / 2
	}

	drawn := 0
	for i, line := range lines {
		if line == "" {
			continue
		}
		if err := c.DrawText(d.Page, d.X, base-float64(i)*lineHeight, d.Size, line); err != nil {
			return drawn, err
		}
		drawn++
	}
	return drawn, nil
}
