package utils

import "time"

// IngestResult reports the outcome of pushing one metadata document
// through the ingest pipeline, whatever the source.
type IngestResult struct {
	Status       *int     `json:"status,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
	Identifier   *string  `json:"identifier,omitempty"`
	Versions     []string `json:"versions,omitempty"`
	UploadID     *string  `json:"upload_id,omitempty"`
}

// ModuleEvent is the payload pushed to configured webhooks after a
// module changes.
type ModuleEvent struct {
	Event      string    `json:"event"`
	Identifier string    `json:"identifier"`
	Source     string    `json:"source"`
	Publisher  string    `json:"publisher,omitempty"`
	Versions   []string  `json:"versions,omitempty"`
	Latest     string    `json:"latest,omitempty"`
	UploadID   string    `json:"upload_id,omitempty"`
	Time       time.Time `json:"time"`
}
