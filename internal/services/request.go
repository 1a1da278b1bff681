package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Lllllllleong/formstamp/internal/models"
)

// ErrMethodNotAllowed is returned for anything other than GET and POST.
var ErrMethodNotAllowed = errors.New("method not allowed")

// DecodeFillRequest reads a fill request from r.
//
// POST carries a JSON body {"data": {...}, "action": "download"|"print"}.
// GET carries the field map as base64url-encoded JSON in the "d" query
// parameter; "download=1" selects the download action.
func DecodeFillRequest(r *http.Request) (*models.FillRequest, error) {
	req := &models.FillRequest{}
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := decodeJSON(body, req); err != nil {
				return nil, fmt.Errorf("could not parse JSON body: %w", err)
			}
		}
	case http.MethodGet:
		q := r.URL.Query()
		if d := q.Get("d"); d != "" {
			raw, err := decodeBase64URL(d)
			if err != nil {
				return nil, fmt.Errorf("could not decode d parameter: %w", err)
			}
			if err := decodeJSON(raw, &req.Data); err != nil {
				return nil, fmt.Errorf("could not parse d parameter: %w", err)
			}
		}
		req.Action = models.ActionPrint
		if q.Get("download") == "1" {
			req.Action = models.ActionDownload
		}
	default:
		return nil, ErrMethodNotAllowed
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	return req, nil
}

// decodeFillPayload decodes a stored {"data", "action"} object the same way
// as a POST body.
func decodeFillPayload(b []byte) (*models.FillRequest, error) {
	req := &models.FillRequest{}
	if err := decodeJSON(b, req); err != nil {
		return nil, fmt.Errorf("could not parse payload: %w", err)
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	return req, nil
}

func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// decodeBase64URL accepts base64url with or without padding, and standard
// base64 characters.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

// WritePDF writes a rendered form. Headers are frozen after this call.
func WritePDF(w http.ResponseWriter, res *models.FillResult) error {
	disposition := "inline"
	if res.Download {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, res.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(res.PDF)
	return err
}
