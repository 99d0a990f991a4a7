package license

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// License is a module license identifier. Metadata documents carry
// SPDX-style identifiers plus the registry's own catch-all values.
type License string

const (
	LicenseOpenSource   License = "open-source"
	LicenseRestricted   License = "restricted"
	LicenseUnknown      License = "unknown"
	LicensePublicDomain License = "public-domain"
)

var knownLicenses = map[License]struct{}{
	LicenseOpenSource:   {},
	LicenseRestricted:   {},
	LicenseUnknown:      {},
	LicensePublicDomain: {},
	"Apache":            {},
	"Apache-1.0":        {},
	"Apache-2.0":        {},
	"Artistic":          {},
	"Artistic-1.0":      {},
	"Artistic-2.0":      {},
	"BSD-2-clause":      {},
	"BSD-3-clause":      {},
	"BSD-4-clause":      {},
	"CC0":               {},
	"CC-BY":             {},
	"CC-BY-NC":          {},
	"CC-BY-NC-SA":       {},
	"CC-BY-NC-ND":       {},
	"CC-BY-SA":          {},
	"CC-BY-ND":          {},
	"CDDL":              {},
	"CPL":               {},
	"EFL-1.0":           {},
	"EFL-2.0":           {},
	"Expat":             {},
	"GFDL-1.0":          {},
	"GFDL-1.1":          {},
	"GFDL-1.2":          {},
	"GFDL-1.3":          {},
	"GPL-1.0":           {},
	"GPL-2.0":           {},
	"GPL-3.0":           {},
	"ISC":               {},
	"LGPL-2.0":          {},
	"LGPL-2.1":          {},
	"LGPL-3.0":          {},
	"MIT":               {},
	"MPL-1.0":           {},
	"MPL-1.1":           {},
	"MPL-2.0":           {},
	"Perl":              {},
	"Python-2.0":        {},
	"QPL-1.0":           {},
	"W3C":               {},
	"WTFPL":             {},
	"Zlib":              {},
	"Zope":              {},
}

type UnknownLicenseError struct {
	ID string
}

func (e *UnknownLicenseError) Error() string {
	return fmt.Sprintf("unknown license identifier %q", e.ID)
}

func IsUnknownLicense(err error) bool {
	var unknownErr *UnknownLicenseError
	return errors.As(err, &unknownErr)
}

// Parse validates a license identifier. Identifiers are case
// sensitive.
func Parse(s string) (License, error) {
	l := License(s)
	if _, ok := knownLicenses[l]; !ok {
		return "", &UnknownLicenseError{ID: s}
	}
	return l, nil
}

func (l License) String() string {
	return string(l)
}

// UnmarshalJSON rejects unknown identifiers, so a release carrying a
// bad license fails to materialize.
func (l *License) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
