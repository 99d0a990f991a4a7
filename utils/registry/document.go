// Package registry defines the module metadata document stored and served by
// the registry, including the version-keyed release mapping that tolerates
// individually broken entries coming from third party publishers.
package registry

import (
	"net/url"
	"regexp"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-version"

	"github.com/geromet/CKAN/utils/license"
)

var (
	identifierPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
	sha256Pattern      = regexp.MustCompile(`^[A-Fa-f0-9]{64}$`)
	specVersionPattern = regexp.MustCompile(`^(1|v[0-9]+\.[0-9]+)$`)
)

// StringList accepts either a single JSON string or an array of strings.
// Publisher tooling emits the author field both ways.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// Resources collects the optional project links attached to a module.
type Resources struct {
	Homepage   string `json:"homepage,omitempty"`
	Repository string `json:"repository,omitempty"`
	Bugtracker string `json:"bugtracker,omitempty"`
}

func (r *Resources) Validate() error {
	if r == nil {
		return nil
	}
	if err := validateURLField("resources.homepage", r.Homepage); err != nil {
		return err
	}
	if err := validateURLField("resources.repository", r.Repository); err != nil {
		return err
	}
	return validateURLField("resources.bugtracker", r.Bugtracker)
}

// Dependency names another module a release needs, with an optional version range.
type Dependency struct {
	Name       string `json:"name"`
	MinVersion string `json:"min_version,omitempty"`
	MaxVersion string `json:"max_version,omitempty"`
}

func (d Dependency) Validate() error {
	if d.Name == "" {
		return NewInvalidModuleError("depends.name", "required")
	}
	if !identifierPattern.MatchString(d.Name) {
		return NewInvalidModuleError("depends.name", "must contain only letters, digits and hyphens")
	}
	var minVersion, maxVersion *version.Version
	var err error
	if d.MinVersion != "" {
		if minVersion, err = version.NewVersion(d.MinVersion); err != nil {
			return NewInvalidModuleError("depends.min_version", err.Error())
		}
	}
	if d.MaxVersion != "" {
		if maxVersion, err = version.NewVersion(d.MaxVersion); err != nil {
			return NewInvalidModuleError("depends.max_version", err.Error())
		}
	}
	if minVersion != nil && maxVersion != nil && minVersion.GreaterThan(maxVersion) {
		return NewInvalidModuleError("depends", "min_version is greater than max_version")
	}
	return nil
}

// Release describes one published build of a module. The release version is
// not part of the value, it is the key of the enclosing releases object.
type Release struct {
	License      license.License `json:"license"`
	Status       ReleaseStatus   `json:"release_status,omitempty"`
	GameVersion  string          `json:"game_version,omitempty"`
	Download     string          `json:"download"`
	DownloadSize int64           `json:"download_size,omitempty"`
	SHA256       string          `json:"download_hash_sha256,omitempty"`
	ReleaseDate  *time.Time      `json:"release_date,omitempty"`
	Depends      []Dependency    `json:"depends,omitempty"`
}

// UnmarshalJSON decodes a release and validates it, so that a release value
// only ever enters a release mapping in a usable state.
func (r *Release) UnmarshalJSON(data []byte) error {
	type plain Release
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Status == "" {
		decoded.Status = ReleaseStatusStable
	}
	*r = Release(decoded)
	return r.Validate()
}

func (r *Release) Validate() error {
	if r.License == "" {
		return NewInvalidModuleError("license", "required")
	}
	if _, err := license.Parse(string(r.License)); err != nil {
		return NewInvalidModuleError("license", err.Error())
	}
	if _, err := ParseReleaseStatus(string(r.Status)); err != nil {
		return NewInvalidModuleError("release_status", err.Error())
	}
	if r.Download == "" {
		return NewInvalidModuleError("download", "required")
	}
	if err := validateURLField("download", r.Download); err != nil {
		return err
	}
	if r.DownloadSize < 0 {
		return NewInvalidModuleError("download_size", "must not be negative")
	}
	if r.SHA256 != "" && !sha256Pattern.MatchString(r.SHA256) {
		return NewInvalidModuleError("download_hash_sha256", "must be 64 hex characters")
	}
	if r.GameVersion != "" {
		if _, err := version.NewVersion(r.GameVersion); err != nil {
			return NewInvalidModuleError("game_version", err.Error())
		}
	}
	for _, dependency := range r.Depends {
		if err := dependency.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Document is the full metadata record for one module as published to the
// registry and as served back to clients.
type Document struct {
	SpecVersion string      `json:"spec_version"`
	Identifier  string      `json:"identifier"`
	Name        string      `json:"name"`
	Abstract    string      `json:"abstract,omitempty"`
	Author      StringList  `json:"author,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Resources   *Resources  `json:"resources,omitempty"`
	Releases    *ReleaseMap `json:"releases"`
}

func (doc *Document) Validate() error {
	if doc.SpecVersion == "" {
		return NewInvalidModuleError("spec_version", "required")
	}
	if !specVersionPattern.MatchString(doc.SpecVersion) {
		return NewInvalidModuleError("spec_version", "must be 1 or vMAJOR.MINOR")
	}
	if doc.Identifier == "" {
		return NewInvalidModuleError("identifier", "required")
	}
	if !identifierPattern.MatchString(doc.Identifier) {
		return NewInvalidModuleError("identifier", "must contain only letters, digits and hyphens")
	}
	if doc.Name == "" {
		return NewInvalidModuleError("name", "required")
	}
	if err := doc.Resources.Validate(); err != nil {
		return err
	}
	if doc.Releases == nil {
		return ErrMissingReleases
	}
	return nil
}

// DecodeDocument parses module metadata and validates the document level
// fields. Broken release entries are dropped with a warning while decoding,
// only structural problems fail the whole document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validateURLField(field, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return NewInvalidModuleError(field, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewInvalidModuleError(field, "must be an http or https url")
	}
	return nil
}
