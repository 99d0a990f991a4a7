package registry

import (
	"github.com/hashicorp/go-version"

	"github.com/geromet/CKAN/utils/leakymap"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

// releaseDecoder is resolved once at package load. Version parsing,
// ordering and spelling all come from hashicorp go-version, so "1.2"
// and "1.2.0" collide on the same key while the publisher's original
// spelling is kept for output.
var releaseDecoder = leakymap.MustNewDecoder[*version.Version, *Release](
	version.NewVersion,
	(*version.Version).Compare,
	(*version.Version).Original,
	ckanLogger.NewLogger("ReleaseMap", "WARN", nil),
)

// ReleaseMap holds a module's releases keyed by version, ascending and
// duplicate free. Decoding from JSON drops unusable entries instead of
// failing, see the leakymap package.
type ReleaseMap struct {
	m *leakymap.Map[*version.Version, *Release]
}

func NewReleaseMap() *ReleaseMap {
	return &ReleaseMap{m: releaseDecoder.NewMap()}
}

func (rm *ReleaseMap) UnmarshalJSON(data []byte) error {
	m, err := releaseDecoder.Decode(data)
	if err != nil {
		return err
	}
	rm.m = m
	return nil
}

func (rm *ReleaseMap) MarshalJSON() ([]byte, error) {
	if rm == nil || rm.m == nil {
		return []byte("{}"), nil
	}
	return rm.m.MarshalJSON()
}

func (rm *ReleaseMap) Len() int {
	if rm == nil || rm.m == nil {
		return 0
	}
	return rm.m.Len()
}

// Get looks up a release by any spelling of its version.
func (rm *ReleaseMap) Get(rawVersion string) (*Release, bool) {
	if rm == nil || rm.m == nil {
		return nil, false
	}
	v, err := version.NewVersion(rawVersion)
	if err != nil {
		return nil, false
	}
	return rm.m.Get(v)
}

// Insert adds a release under the given version token. Duplicate and
// unparsable versions are returned as errors here; lenient dropping
// only applies when decoding publisher JSON.
func (rm *ReleaseMap) Insert(rawVersion string, release *Release) error {
	if rm.m == nil {
		rm.m = releaseDecoder.NewMap()
	}
	v, err := version.NewVersion(rawVersion)
	if err != nil {
		return err
	}
	return rm.m.Insert(v, release)
}

// Versions returns the original version spellings in ascending order.
func (rm *ReleaseMap) Versions() []string {
	if rm == nil || rm.m == nil {
		return nil
	}
	versions := make([]string, 0, rm.m.Len())
	rm.m.Range(func(v *version.Version, _ *Release) bool {
		versions = append(versions, v.Original())
		return true
	})
	return versions
}

// Range visits releases in ascending version order until fn returns false.
func (rm *ReleaseMap) Range(fn func(v *version.Version, release *Release) bool) {
	if rm == nil || rm.m == nil {
		return
	}
	rm.m.Range(fn)
}

// Latest returns the highest stable release, or the highest release of
// any status when no stable one exists.
func (rm *ReleaseMap) Latest() (*version.Version, *Release, bool) {
	if rm == nil || rm.m == nil {
		return nil, nil, false
	}
	entries := rm.m.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Value.Status == ReleaseStatusStable {
			return entries[i].Key, entries[i].Value, true
		}
	}
	last, ok := rm.m.Last()
	return last.Key, last.Value, ok
}
