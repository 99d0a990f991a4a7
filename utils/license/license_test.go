package license

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestParse(t *testing.T) {
	valid := []string{"MIT", "GPL-2.0", "Apache-2.0", "CC-BY-NC-SA", "public-domain", "open-source", "restricted", "unknown", "WTFPL"}
	for _, s := range valid {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q) failed: %v", s, err)
		}
	}

	invalid := []string{"", "WTFPL v2", "mit", "GPL2", "do-whatever"}
	for _, s := range invalid {
		_, err := Parse(s)
		if err == nil {
			t.Errorf("Parse(%q) should fail", s)
			continue
		}
		if !IsUnknownLicense(err) {
			t.Errorf("Parse(%q): expected UnknownLicenseError, got %v", s, err)
		}
	}
}

func TestUnmarshalJSON(t *testing.T) {
	t.Run("known identifier", func(t *testing.T) {
		var l License
		if err := json.Unmarshal([]byte(`"MIT"`), &l); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if l != "MIT" {
			t.Errorf("expected MIT, got %q", l)
		}
	})

	t.Run("unknown identifier", func(t *testing.T) {
		var l License
		err := json.Unmarshal([]byte(`"not-a-license"`), &l)
		if err == nil {
			t.Fatal("expected error, got none")
		}
		if !IsUnknownLicense(err) {
			t.Errorf("expected UnknownLicenseError, got %v", err)
		}
	})

	t.Run("non-string value", func(t *testing.T) {
		var l License
		if err := json.Unmarshal([]byte(`42`), &l); err == nil {
			t.Error("expected error for non-string license")
		}
	})
}
