package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	_ "time/tzdata"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/formstamp/internal/formfill"
	"github.com/Lllllllleong/formstamp/internal/services"
)

var (
	formFillerInstance *services.FormFillerFunction
	once               sync.Once
	initErr            error

	newFormFiller = services.NewFormFiller
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "GenerateForm" is the entry point name configured in GCP.
	functions.HTTP("GenerateForm", handleGenerateForm)
}

// main is required by the Go Functions Framework.
func main() {}

// handleGenerateForm fills the form template and returns the PDF.
func handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	req, err := services.DecodeFillRequest(r)
	if errors.Is(err, services.ErrMethodNotAllowed) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		slog.Warn("Could not decode request", "error", err, "method", r.Method)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Assets are loaded once per instance and shared by all requests.
	once.Do(func() {
		formFillerInstance, initErr = newFormFiller(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: FormFiller initialization failed", "error", initErr)
		if errors.Is(initErr, formfill.ErrTemplateNotFound) {
			http.Error(w, "template.pdf not found in asset root.", http.StatusInternalServerError)
			return
		}
		http.Error(w, "Internal Server Error: failed to initialize service: "+initErr.Error(), http.StatusInternalServerError)
		return
	}

	res, err := formFillerInstance.Process(r.Context(), req)
	if err != nil {
		// The specific error is already logged inside the Process method.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := services.WritePDF(w, res); err != nil {
		slog.Error("Failed to write response", "error", err, "fileHash", res.FileHash)
	}
}
