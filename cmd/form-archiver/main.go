package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	_ "time/tzdata"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/formstamp/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	archiverInstance *services.FormFillerFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. It fires for every payload object
	// written to the inbox bucket.
	functions.CloudEvent("FillFromObject", fillFromObject)
}

// main is required by the Go Functions Framework.
func main() {}

// fillFromObject renders the form for a JSON payload object and stores the PDF.
func fillFromObject(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		archiverInstance, initErr = services.NewFormArchiver(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context within ProcessObject. Returning one
	// marks the invocation as failed so the event is retried.
	_, err := archiverInstance.ProcessObject(ctx, gcsEvent)
	return err
}
