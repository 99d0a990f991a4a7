package utils

import "fmt"

type IngestSource string

const (
	IngestSourceAPI      IngestSource = "api"
	IngestSourceInbox    IngestSource = "inbox"
	IngestSourceUpstream IngestSource = "upstream"
)

func ParseIngestSource(s string) (IngestSource, error) {
	switch IngestSource(s) {
	case IngestSourceAPI, IngestSourceInbox, IngestSourceUpstream:
		return IngestSource(s), nil
	default:
		return "", fmt.Errorf("invalid source: %s", s)
	}
}
