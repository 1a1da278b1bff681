// Package pdf stamps text onto an existing PDF template using pdfcpu.
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// CoreFont is used when no TrueType font is installed. It only covers Latin text.
const CoreFont = "Helvetica"

func init() {
	// Serverless file systems are read-only outside the temp dir.
	api.DisableConfigDir()
}

func newConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Template is a validated template document. It is immutable and safe for
// concurrent use.
type Template struct {
	raw       []byte
	pageCount int
}

// LoadTemplate validates b and reads its page count.
func LoadTemplate(b []byte) (*Template, error) {
	if err := api.Validate(bytes.NewReader(b), newConfig()); err != nil {
		return nil, fmt.Errorf("failed to validate template: %w", err)
	}
	n, err := api.PageCount(bytes.NewReader(b), newConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	return &Template{raw: b, pageCount: n}, nil
}

// PageCount returns the number of pages in the template.
func (t *Template) PageCount() int { return t.pageCount }

// NewStamper starts a new output document that draws with fontName.
func (t *Template) NewStamper(fontName string) *Stamper {
	if fontName == "" {
		fontName = CoreFont
	}
	return &Stamper{
		tpl:      t,
		fontName: fontName,
		marks:    make(map[int][]*model.Watermark),
	}
}

// Stamper collects text stamps per page and writes them in a single pass.
// A Stamper belongs to one request and is not safe for concurrent use.
type Stamper struct {
	tpl      *Template
	fontName string
	marks    map[int][]*model.Watermark
}

func (s *Stamper) PageCount() int { return s.tpl.pageCount }

// DrawText stamps one line of text with its baseline origin at x, y (points,
// origin bottom left) on the 1-based page. The text is printed literally.
func (s *Stamper) DrawText(page int, x, y, size float64, text string) error {
	if page < 1 || page > s.tpl.pageCount {
		return fmt.Errorf("page %d out of range [1, %d]", page, s.tpl.pageCount)
	}
	points := int(math.Round(size))
	if points < 1 {
		points = 1
	}
	// pdfcpu anchors the text box, whose bottom edge is the rounded-up descent
	// below the baseline.
	y -= math.Ceil(font.Descent(s.fontName, points))

	var marks []*model.Watermark
	for _, seg := range literalSegments(text) {
		desc := fmt.Sprintf(
			"fontname:%s, points:%d, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000",
			s.fontName, points, formatPoints(x), formatPoints(y),
		)
		wm, err := pdfcpu.ParseTextWatermarkDetails(escapePercent(seg), desc, true, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to build stamp: %w", err)
		}
		marks = append(marks, wm)
		x += font.TextWidth(seg, s.fontName, points)
	}
	s.marks[page] = append(s.marks[page], marks...)
	return nil
}

// literalSegments splits text wherever pdfcpu would read a directive: a
// percent sign followed by p, P, t or v, and a backslash followed by n.
// Each segment is stamped separately so no directive spans a segment.
func literalSegments(text string) []string {
	var segs []string
	start := 0
	for i := 1; i < len(text); i++ {
		prev, c := text[i-1], text[i]
		if (prev == '%' && strings.IndexByte("pPtv", c) >= 0) || (prev == '\\' && c == 'n') {
			segs = append(segs, text[start:i])
			start = i
		}
	}
	return append(segs, text[start:])
}

// escapePercent makes pdfcpu print every percent sign of a segment. pdfcpu
// prints a run of n percent signs as n-1.
func escapePercent(seg string) string {
	if !strings.Contains(seg, "%") {
		return seg
	}
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		b.WriteByte(seg[i])
		if seg[i] == '%' && (i+1 == len(seg) || seg[i+1] != '%') {
			b.WriteByte('%')
		}
	}
	return b.String()
}

// Stamps returns the number of stamps drawn so far.
func (s *Stamper) Stamps() int {
	n := 0
	for _, m := range s.marks {
		n += len(m)
	}
	return n
}

// Bytes writes the stamped document. Without stamps the template is returned as is.
func (s *Stamper) Bytes() ([]byte, error) {
	if len(s.marks) == 0 {
		return bytes.Clone(s.tpl.raw), nil
	}
	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(s.tpl.raw), &buf, s.marks, newConfig()); err != nil {
		return nil, fmt.Errorf("failed to stamp template: %w", err)
	}
	return buf.Bytes(), nil
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
