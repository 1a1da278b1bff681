package models

import "time"

// RenderRecord is the audit entry written to Firestore for each generated form.
// It never carries field values.
type RenderRecord struct {
	FileHash    string    `firestore:"fileHash,omitempty"`
	Action      string    `firestore:"action,omitempty"`
	Source      string    `firestore:"source,omitempty"` // "http" or the gs:// URI of the payload
	PageCount   int       `firestore:"pageCount,omitempty"`
	Drawn       int       `firestore:"drawn"`
	Skipped     int       `firestore:"skipped"`
	ArchivedURI string    `firestore:"archivedUri,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt,omitempty"`
}
