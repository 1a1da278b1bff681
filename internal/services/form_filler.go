package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/formstamp/internal/formfill"
	"github.com/Lllllllleong/formstamp/internal/gcp"
	"github.com/Lllllllleong/formstamp/internal/models"
	"github.com/Lllllllleong/formstamp/internal/pdf"
)

// FormFillerConfig holds all configuration for the form filler service.
type FormFillerConfig struct {
	AssetDir         string
	AssetBucket      string
	Assets           formfill.AssetNames
	Filename         string
	TimeZone         string
	ProjectID        string
	ArchiveBucket    string
	RenderCollection string
	OutputBucket     string
}

const maxUploadRetries = 4

// document is one in-progress output PDF.
type document interface {
	formfill.Canvas
	Bytes() ([]byte, error)
}

// FormFillerFunction holds the loaded assets and optional cloud clients.
type FormFillerFunction struct {
	mapping         *formfill.Mapping
	pageCount       int
	newDocument     func() document
	location        *time.Location
	now             func() time.Time
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	config          FormFillerConfig
}

// GCSEvent is the payload of a GCS object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// loadFormFillerConfig reads the service configuration from the environment.
func loadFormFillerConfig() (*FormFillerConfig, error) {
	config := &FormFillerConfig{
		AssetDir:    gcp.GetEnv("ASSET_DIR", "."),
		AssetBucket: gcp.GetEnv("ASSET_BUCKET", ""),
		Assets: formfill.AssetNames{
			Template:        gcp.GetEnv("TEMPLATE_NAME", "template.pdf"),
			Font:            gcp.GetEnv("FONT_NAME", "malgun.ttf"),
			Mapping:         gcp.GetEnv("MAPPING_NAME", "mappings/mapping.json"),
			MappingFallback: gcp.GetEnv("MAPPING_FALLBACK_NAME", "mapping.json"),
		},
		Filename:         gcp.GetEnv("PDF_FILENAME", "SK_foreigner_special_plan.pdf"),
		TimeZone:         gcp.GetEnv("FORM_TIMEZONE", ""),
		ProjectID:        gcp.GetEnv("PROJECT_ID", ""),
		ArchiveBucket:    gcp.GetEnv("ARCHIVE_BUCKET", ""),
		RenderCollection: gcp.GetEnv("RENDER_COLLECTION", ""),
		OutputBucket:     gcp.GetEnv("OUTPUT_BUCKET", ""),
	}
	if config.Assets.Template == "" {
		return nil, fmt.Errorf("TEMPLATE_NAME must not be empty")
	}
	if config.RenderCollection != "" && config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set when RENDER_COLLECTION is set")
	}
	return config, nil
}

// NewFormFiller creates a FormFillerFunction and loads its assets. A missing
// template is reported as formfill.ErrTemplateNotFound.
func NewFormFiller(ctx context.Context) (*FormFillerFunction, error) {
	config, err := loadFormFillerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	location := time.Local
	if config.TimeZone != "" {
		if location, err = time.LoadLocation(config.TimeZone); err != nil {
			return nil, fmt.Errorf("invalid FORM_TIMEZONE %q: %w", config.TimeZone, err)
		}
	}

	f := &FormFillerFunction{
		location: location,
		now:      time.Now,
		config:   *config,
	}

	if config.AssetBucket != "" || config.ArchiveBucket != "" || config.OutputBucket != "" {
		if f.storageClient, err = storage.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
	}
	if config.RenderCollection != "" {
		if f.firestoreClient, err = gcp.NewFirestoreClient(ctx, config.ProjectID); err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
	}

	var src formfill.Source = formfill.DirSource(config.AssetDir)
	if config.AssetBucket != "" {
		src = gcp.BucketSource{Bucket: f.storageClient.Bucket(config.AssetBucket)}
	}
	assets, err := formfill.LoadAssets(ctx, src, config.Assets)
	if err != nil {
		return nil, err
	}

	tpl, err := pdf.LoadTemplate(assets.Template)
	if err != nil {
		return nil, err
	}
	fontName := pdf.CoreFont
	if assets.Font != nil {
		if fontName, err = pdf.InstallFont(assets.Font); err != nil {
			return nil, err
		}
	}

	f.mapping = assets.Mapping
	f.pageCount = tpl.PageCount()
	f.newDocument = func() document { return tpl.NewStamper(fontName) }

	slog.Info("Form filler initialized.",
		"pageCount", f.pageCount,
		"fieldCount", len(f.mapping.Fields),
		"mapping", assets.MappingName,
		"font", fontName,
	)
	return f, nil
}

// NewFormArchiver creates a FormFillerFunction for the object-triggered path,
// which additionally requires OUTPUT_BUCKET.
func NewFormArchiver(ctx context.Context) (*FormFillerFunction, error) {
	if gcp.GetEnv("OUTPUT_BUCKET", "") == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}
	return NewFormFiller(ctx)
}

// Close releases the cloud clients.
func (f *FormFillerFunction) Close() error {
	var firstErr error
	if f.storageClient != nil {
		firstErr = f.storageClient.Close()
	}
	if f.firestoreClient != nil {
		if err := f.firestoreClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Process fills the template with the request data.
func (f *FormFillerFunction) Process(ctx context.Context, req *models.FillRequest) (*models.FillResult, error) {
	return f.process(ctx, req, "http")
}

func (f *FormFillerFunction) process(ctx context.Context, req *models.FillRequest, source string) (*models.FillResult, error) {
	logCtx := slog.With("action", req.Action, "source", source)

	rec := formfill.Derive(formfill.NewRecord(req.Data), f.now().In(f.location))
	doc := f.newDocument()

	stats, err := formfill.Render(rec, f.mapping, doc)
	if err != nil {
		logCtx.Error("Failed to render form", "error", err)
		return nil, fmt.Errorf("failed to render form: %w", err)
	}
	out, err := doc.Bytes()
	if err != nil {
		logCtx.Error("Failed to serialize form", "error", err)
		return nil, fmt.Errorf("failed to serialize form: %w", err)
	}

	sum := sha256.Sum256(out)
	fileHash := hex.EncodeToString(sum[:])
	logCtx = logCtx.With("fileHash", fileHash)
	logCtx.Info("Form rendered.", "drawn", stats.Drawn, "skipped", stats.Skipped, "bytes", len(out))

	archivedURI := f.archive(ctx, logCtx, fileHash, out)
	f.recordRender(ctx, logCtx, models.RenderRecord{
		FileHash:    fileHash,
		Action:      req.Action,
		Source:      source,
		PageCount:   f.pageCount,
		Drawn:       stats.Drawn,
		Skipped:     stats.Skipped,
		ArchivedURI: archivedURI,
		CreatedAt:   f.now(),
	})

	return &models.FillResult{
		PDF:      out,
		FileHash: fileHash,
		Filename: f.config.Filename,
		Download: req.IsDownload(),
		Drawn:    stats.Drawn,
		Skipped:  stats.Skipped,
	}, nil
}

// archive stores the PDF under its hash. Failures are logged, the PDF is still returned.
func (f *FormFillerFunction) archive(ctx context.Context, logCtx *slog.Logger, fileHash string, out []byte) string {
	if f.config.ArchiveBucket == "" || f.storageClient == nil {
		return ""
	}
	objectName := fileHash + ".pdf"
	bucket := f.storageClient.Bucket(f.config.ArchiveBucket)
	if err := gcp.SaveToGCSAtomically(ctx, bucket, objectName, "application/pdf", out); err != nil {
		logCtx.Warn("Failed to archive form.", "error", err, "bucket", f.config.ArchiveBucket)
		return ""
	}
	return fmt.Sprintf("gs://%s/%s", f.config.ArchiveBucket, objectName)
}

func (f *FormFillerFunction) recordRender(ctx context.Context, logCtx *slog.Logger, rec models.RenderRecord) {
	if f.firestoreClient == nil {
		return
	}
	if _, _, err := f.firestoreClient.Collection(f.config.RenderCollection).Add(ctx, rec); err != nil {
		logCtx.Warn("Failed to record render.", "error", err, "collection", f.config.RenderCollection)
	}
}

// ProcessObject fills the template from a JSON payload object and writes the
// PDF to the output bucket. Objects that are not JSON are ignored.
func (f *FormFillerFunction) ProcessObject(ctx context.Context, e GCSEvent) (*models.FillObjectResponse, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.HasSuffix(strings.ToLower(e.Name), ".json") {
		logCtx.Info("Object is not a JSON payload. Skipping.")
		return nil, nil
	}
	if f.storageClient == nil || f.config.OutputBucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET is not configured")
	}

	b, err := gcp.ReadObject(ctx, f.storageClient.Bucket(e.Bucket), e.Name)
	if err != nil {
		logCtx.Error("Failed to read payload", "error", err)
		return nil, err
	}
	req, err := decodeFillPayload(b)
	if err != nil {
		logCtx.Error("Failed to decode payload", "error", err)
		return nil, err
	}

	sourceURI := fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name)
	res, err := f.process(ctx, req, sourceURI)
	if err != nil {
		return nil, err
	}

	objectName := outputObjectName(e.Name)
	bucket := f.storageClient.Bucket(f.config.OutputBucket)
	if err := gcp.SaveToGCSWithRetry(ctx, bucket, objectName, "application/pdf", res.PDF, maxUploadRetries); err != nil {
		logCtx.Error("Failed to save form PDF", "error", err, "bucket", f.config.OutputBucket)
		return nil, err
	}

	outputURI := fmt.Sprintf("gs://%s/%s", f.config.OutputBucket, objectName)
	logCtx.Info("Form written.", "outputUri", outputURI)
	return &models.FillObjectResponse{Status: "success", OutputURI: outputURI}, nil
}

// outputObjectName maps "in/abc.json" to "in/abc.pdf".
func outputObjectName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ".pdf"
}
