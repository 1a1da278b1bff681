package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lllllllleong/formstamp/internal/formfill"
	"github.com/Lllllllleong/formstamp/internal/models"
	"github.com/Lllllllleong/formstamp/internal/testsupport"
	"github.com/stretchr/testify/require"
)

type stamp struct {
	page int
	x, y float64
	text string
}

// fakeDocument records stamps and serializes them as plain text.
type fakeDocument struct {
	pages    int
	stamps   []stamp
	drawErr  error
	bytesErr error
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) DrawText(page int, x, y, _ float64, text string) error {
	if d.drawErr != nil {
		return d.drawErr
	}
	d.stamps = append(d.stamps, stamp{page, x, y, text})
	return nil
}

func (d *fakeDocument) Bytes() ([]byte, error) {
	if d.bytesErr != nil {
		return nil, d.bytesErr
	}
	out := []byte("%PDF-fake\n")
	for _, s := range d.stamps {
		out = append(out, s.text...)
		out = append(out, '\n')
	}
	return out, nil
}

func (d *fakeDocument) texts() []string {
	var out []string
	for _, s := range d.stamps {
		out = append(out, s.text)
	}
	return out
}

var testMapping = &formfill.Mapping{Fields: map[string]formfill.Descriptor{
	"apply_date_year": {Page: 1, X: 400, Y: 80, Size: 10, Type: formfill.TypeText},
	"prev_carrier":    {Page: 1, X: 100, Y: 600, Size: 10, Type: formfill.TypeText},
	"mnp1":            {Page: 1, X: 20, Y: 600, Size: 10, Type: formfill.TypeCheckbox},
	"addr":            {Page: 2, X: 100, Y: 500, Size: 9, Type: formfill.TypeText},
	"unused":          {Page: 5, X: 1, Y: 1, Size: 10, Type: formfill.TypeText},
}}

func newTestFiller(doc *fakeDocument) *FormFillerFunction {
	return &FormFillerFunction{
		mapping:     testMapping,
		pageCount:   doc.pages,
		newDocument: func() document { return doc },
		location:    time.UTC,
		now:         func() time.Time { return time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC) },
		config:      FormFillerConfig{Filename: "form.pdf"},
	}
}

func TestProcess_Port(t *testing.T) {
	doc := &fakeDocument{pages: 2}
	f := newTestFiller(doc)

	res, err := f.Process(context.Background(), &models.FillRequest{
		Data: map[string]any{
			"join_type":    "port",
			"prev_carrier": "KT",
			"addr_road":    "Sejong-daero 110",
			"addr_detail":  " 3F ",
			"unused":       "never drawn",
		},
		Action: models.ActionDownload,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"Sejong-daero 110 3F", "2026", formfill.CheckMark, "KT"}, doc.texts())
	require.Equal(t, 4, res.Drawn)
	require.Equal(t, 1, res.Skipped)
	require.True(t, res.Download)
	require.Equal(t, "form.pdf", res.Filename)

	sum := sha256.Sum256(res.PDF)
	require.Equal(t, hex.EncodeToString(sum[:]), res.FileHash)
}

func TestProcess_NewSignupClearsPortFields(t *testing.T) {
	doc := &fakeDocument{pages: 2}
	f := newTestFiller(doc)

	res, err := f.Process(context.Background(), &models.FillRequest{
		Data:   map[string]any{"join_type": "new", "prev_carrier": "KT", "mnp1": "1"},
		Action: models.ActionPrint,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"2026"}, doc.texts())
	require.False(t, res.Download)
}

func TestProcess_UsesConfiguredTimeZone(t *testing.T) {
	doc := &fakeDocument{pages: 1}
	f := newTestFiller(doc)
	f.mapping = &formfill.Mapping{Fields: map[string]formfill.Descriptor{
		"apply_date_day": {Page: 1, Size: 10, Type: formfill.TypeText},
	}}
	f.now = func() time.Time { return time.Date(2026, time.October, 18, 20, 0, 0, 0, time.UTC) }
	f.location = time.FixedZone("KST", 9*60*60)

	_, err := f.Process(context.Background(), &models.FillRequest{})
	require.NoError(t, err)
	require.Equal(t, []string{"19"}, doc.texts())
}

func TestProcess_Failures(t *testing.T) {
	boom := errors.New("boom")

	_, err := newTestFiller(&fakeDocument{pages: 2, drawErr: boom}).Process(context.Background(), &models.FillRequest{})
	require.ErrorIs(t, err, boom)

	_, err = newTestFiller(&fakeDocument{pages: 2, bytesErr: boom}).Process(context.Background(), &models.FillRequest{})
	require.ErrorIs(t, err, boom)
}

func TestProcessObject_SkipsNonJSON(t *testing.T) {
	f := newTestFiller(&fakeDocument{pages: 1})

	res, err := f.ProcessObject(context.Background(), GCSEvent{Bucket: "inbox", Name: "upload/readme.txt"})
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestProcessObject_RequiresOutputBucket(t *testing.T) {
	f := newTestFiller(&fakeDocument{pages: 1})

	_, err := f.ProcessObject(context.Background(), GCSEvent{Bucket: "inbox", Name: "upload/a.json"})
	require.Error(t, err)
}

func TestOutputObjectName(t *testing.T) {
	require.Equal(t, "in/abc.pdf", outputObjectName("in/abc.json"))
	require.Equal(t, "abc.pdf", outputObjectName("abc.JSON"))
	require.Equal(t, "a.b/c.pdf", outputObjectName("a.b/c.json"))
}

func clearCloudEnv(t *testing.T) {
	for _, k := range []string{"ASSET_BUCKET", "ARCHIVE_BUCKET", "OUTPUT_BUCKET", "RENDER_COLLECTION", "FORM_TIMEZONE"} {
		t.Setenv(k, "")
	}
}

func TestLoadFormFillerConfig(t *testing.T) {
	clearCloudEnv(t)
	t.Setenv("ASSET_DIR", "/srv/assets")
	t.Setenv("PDF_FILENAME", "out.pdf")

	config, err := loadFormFillerConfig()
	require.NoError(t, err)
	require.Equal(t, "/srv/assets", config.AssetDir)
	require.Equal(t, "out.pdf", config.Filename)
	require.Equal(t, "template.pdf", config.Assets.Template)
	require.Equal(t, "mappings/mapping.json", config.Assets.Mapping)
	require.Equal(t, "mapping.json", config.Assets.MappingFallback)
}

func TestLoadFormFillerConfig_RenderCollectionNeedsProject(t *testing.T) {
	clearCloudEnv(t)
	t.Setenv("RENDER_COLLECTION", "renders")
	t.Setenv("PROJECT_ID", "")

	_, err := loadFormFillerConfig()
	require.Error(t, err)
}

func TestNewFormFiller_MissingTemplate(t *testing.T) {
	clearCloudEnv(t)
	t.Setenv("ASSET_DIR", t.TempDir())

	_, err := NewFormFiller(context.Background())
	require.ErrorIs(t, err, formfill.ErrTemplateNotFound)
}

func TestNewFormFiller_InvalidTimeZone(t *testing.T) {
	clearCloudEnv(t)
	t.Setenv("ASSET_DIR", t.TempDir())
	t.Setenv("FORM_TIMEZONE", "Mars/Olympus_Mons")

	_, err := NewFormFiller(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, formfill.ErrTemplateNotFound)
}

func TestNewFormArchiver_RequiresOutputBucket(t *testing.T) {
	clearCloudEnv(t)

	_, err := NewFormArchiver(context.Background())
	require.Error(t, err)
}

func TestNewFormFiller_EndToEnd(t *testing.T) {
	clearCloudEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template.pdf"), testsupport.BlankPDF(3), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mapping.json"), []byte(`{
		"fields": {
			"addr": {"page": 1, "x": 100, "y": 700},
			"mnp1": {"page": 2, "x": 20, "y": 600, "type": "checkbox"},
			"apply_date_year": {"page": 3, "x": 400, "y": 80, "size": 9},
			"far": {"page": 99, "x": 1, "y": 1}
		}
	}`), 0o644))
	t.Setenv("ASSET_DIR", dir)
	t.Setenv("FONT_NAME", "")

	f, err := NewFormFiller(context.Background())
	require.NoError(t, err)
	defer f.Close()

	res, err := f.Process(context.Background(), &models.FillRequest{
		Data: map[string]any{"join_type": "port", "addr_road": "Main St", "far": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Drawn)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, "%PDF", string(res.PDF[:4]))
}
