package registry

import "fmt"

type ReleaseStatus string

const (
	ReleaseStatusStable      ReleaseStatus = "stable"
	ReleaseStatusTesting     ReleaseStatus = "testing"
	ReleaseStatusDevelopment ReleaseStatus = "development"
)

func ParseReleaseStatus(s string) (ReleaseStatus, error) {
	switch ReleaseStatus(s) {
	case ReleaseStatusStable, ReleaseStatusTesting, ReleaseStatusDevelopment:
		return ReleaseStatus(s), nil
	default:
		return "", fmt.Errorf("invalid release status: %s", s)
	}
}
