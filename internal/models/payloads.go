package models

// These structs define the JSON payloads accepted by the form functions.

// Output actions. Anything other than ActionDownload is shown inline.
const (
	ActionDownload = "download"
	ActionPrint    = "print"
)

// FillRequest is the input for the form-filler function.
type FillRequest struct {
	Data   map[string]any `json:"data"`
	Action string         `json:"action,omitempty"`
}

// IsDownload reports whether the PDF should be sent as an attachment.
func (r *FillRequest) IsDownload() bool {
	return r.Action == ActionDownload
}

// FillResult is the output of the form-filler service.
type FillResult struct {
	PDF      []byte
	FileHash string
	Filename string
	Download bool
	Drawn    int
	Skipped  int
}

// FillObjectResponse describes a PDF written by the form-archiver function.
type FillObjectResponse struct {
	Status    string `json:"status"`
	OutputURI string `json:"outputUri"`
}
