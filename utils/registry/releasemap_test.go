package registry

import (
	"bytes"
	"errors"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/geromet/CKAN/utils/leakymap"
)

func releaseBody(t *testing.T, overrides map[string]any) string {
	t.Helper()
	body := map[string]any{
		"license":  "MIT",
		"download": "https://example.com/pkg.zip",
	}
	for k, v := range overrides {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal release body: %v", err)
	}
	return string(data)
}

func TestReleaseMapDecodeOrdersAndDropsBadVersions(t *testing.T) {
	input := `{
		"2.0": ` + releaseBody(t, nil) + `,
		"bad-version": ` + releaseBody(t, nil) + `,
		"1.2": ` + releaseBody(t, nil) + `
	}`

	var rm ReleaseMap
	if err := json.Unmarshal([]byte(input), &rm); err != nil {
		t.Fatalf("unmarshal releases: %v", err)
	}
	if rm.Len() != 2 {
		t.Fatalf("expected 2 releases, got %d", rm.Len())
	}
	versions := rm.Versions()
	if versions[0] != "1.2" || versions[1] != "2.0" {
		t.Errorf("expected ascending versions [1.2 2.0], got %v", versions)
	}
	if _, ok := rm.Get("2.0"); !ok {
		t.Errorf("expected release 2.0 to survive")
	}
	if _, ok := rm.Get("bad-version"); ok {
		t.Errorf("expected bad-version to be dropped")
	}
}

func TestReleaseMapDropsInvalidReleases(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown license", releaseBody(t, map[string]any{"license": "Not-A-License"})},
		{"missing download", releaseBody(t, map[string]any{"download": ""})},
		{"bad download scheme", releaseBody(t, map[string]any{"download": "ftp://example.com/pkg.zip"})},
		{"bad status", releaseBody(t, map[string]any{"release_status": "beta"})},
		{"bad game version", releaseBody(t, map[string]any{"game_version": "not a version"})},
		{"bad sha256", releaseBody(t, map[string]any{"download_hash_sha256": "xyz"})},
		{"negative size", releaseBody(t, map[string]any{"download_size": -5})},
		{"value not an object", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := `{"1.0": ` + releaseBody(t, nil) + `, "1.1": ` + tc.body + `}`
			var rm ReleaseMap
			if err := json.Unmarshal([]byte(input), &rm); err != nil {
				t.Fatalf("unmarshal releases: %v", err)
			}
			if rm.Len() != 1 {
				t.Fatalf("expected only the valid release to survive, got %d", rm.Len())
			}
			if _, ok := rm.Get("1.1"); ok {
				t.Errorf("expected release 1.1 to be dropped")
			}
		})
	}
}

func TestReleaseMapDuplicateSpellingsKeepFirst(t *testing.T) {
	input := `{
		"1.2": ` + releaseBody(t, map[string]any{"download": "https://example.com/first.zip"}) + `,
		"1.2.0": ` + releaseBody(t, map[string]any{"download": "https://example.com/second.zip"}) + `
	}`

	var rm ReleaseMap
	if err := json.Unmarshal([]byte(input), &rm); err != nil {
		t.Fatalf("unmarshal releases: %v", err)
	}
	if rm.Len() != 1 {
		t.Fatalf("expected normalized duplicate to collapse to 1 release, got %d", rm.Len())
	}
	versions := rm.Versions()
	if versions[0] != "1.2" {
		t.Errorf("expected first spelling to win, got %q", versions[0])
	}
	release, ok := rm.Get("1.2.0")
	if !ok {
		t.Fatalf("expected lookup by either spelling to work")
	}
	if release.Download != "https://example.com/first.zip" {
		t.Errorf("expected first release to win, got %q", release.Download)
	}
}

func TestReleaseMapMarshalUsesSemanticOrder(t *testing.T) {
	input := `{"0.10.0": ` + releaseBody(t, nil) + `, "0.9.0": ` + releaseBody(t, nil) + `}`

	var rm ReleaseMap
	if err := json.Unmarshal([]byte(input), &rm); err != nil {
		t.Fatalf("unmarshal releases: %v", err)
	}
	out, err := json.Marshal(&rm)
	if err != nil {
		t.Fatalf("marshal releases: %v", err)
	}
	early := bytes.Index(out, []byte(`"0.9.0"`))
	late := bytes.Index(out, []byte(`"0.10.0"`))
	if early == -1 || late == -1 || early > late {
		t.Errorf("expected 0.9.0 before 0.10.0, got %s", out)
	}
}

func TestReleaseMapDecodeIsIdempotent(t *testing.T) {
	input := `{
		"2.0": ` + releaseBody(t, nil) + `,
		"junk": 17,
		"1.0": ` + releaseBody(t, nil) + `
	}`

	var first ReleaseMap
	if err := json.Unmarshal([]byte(input), &first); err != nil {
		t.Fatalf("unmarshal releases: %v", err)
	}
	out1, err := json.Marshal(&first)
	if err != nil {
		t.Fatalf("marshal releases: %v", err)
	}
	var second ReleaseMap
	if err := json.Unmarshal(out1, &second); err != nil {
		t.Fatalf("unmarshal own output: %v", err)
	}
	out2, err := json.Marshal(&second)
	if err != nil {
		t.Fatalf("marshal second pass: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Errorf("expected stable output, got %s then %s", out1, out2)
	}
}

func TestReleaseMapRejectsNonObject(t *testing.T) {
	var rm ReleaseMap
	err := json.Unmarshal([]byte(`["1.0"]`), &rm)
	if !errors.Is(err, leakymap.ErrNotObject) {
		t.Errorf("expected ErrNotObject, got %v", err)
	}
}

func TestReleaseMapEmptyObject(t *testing.T) {
	var rm ReleaseMap
	if err := json.Unmarshal([]byte(`{}`), &rm); err != nil {
		t.Fatalf("unmarshal empty object: %v", err)
	}
	if rm.Len() != 0 {
		t.Errorf("expected empty map, got %d entries", rm.Len())
	}
	out, err := json.Marshal(&rm)
	if err != nil {
		t.Fatalf("marshal empty map: %v", err)
	}
	if string(out) != "{}" {
		t.Errorf("expected {}, got %s", out)
	}
}

func TestReleaseMapInsert(t *testing.T) {
	rm := NewReleaseMap()
	release := &Release{License: "MIT", Status: ReleaseStatusStable, Download: "https://example.com/pkg.zip"}

	if err := rm.Insert("1.0", release); err != nil {
		t.Fatalf("insert 1.0: %v", err)
	}
	if err := rm.Insert("1.0.0", release); !errors.Is(err, leakymap.ErrDuplicateKey) {
		t.Errorf("expected duplicate error, got %v", err)
	}
	if err := rm.Insert("garbage", release); err == nil {
		t.Errorf("expected error for unparsable version")
	}
	if rm.Len() != 1 {
		t.Errorf("expected 1 release, got %d", rm.Len())
	}
}

func TestReleaseMapLatest(t *testing.T) {
	stable := &Release{License: "MIT", Status: ReleaseStatusStable, Download: "https://example.com/pkg.zip"}
	prerelease := &Release{License: "MIT", Status: ReleaseStatusTesting, Download: "https://example.com/pkg.zip"}

	t.Run("prefers highest stable", func(t *testing.T) {
		rm := NewReleaseMap()
		for raw, release := range map[string]*Release{"1.0": stable, "1.5": stable, "2.0": prerelease} {
			if err := rm.Insert(raw, release); err != nil {
				t.Fatalf("insert %s: %v", raw, err)
			}
		}
		v, release, ok := rm.Latest()
		if !ok || v.Original() != "1.5" || release.Status != ReleaseStatusStable {
			t.Errorf("expected latest stable 1.5, got %v ok=%v", v, ok)
		}
	})

	t.Run("falls back to highest overall", func(t *testing.T) {
		rm := NewReleaseMap()
		if err := rm.Insert("2.0", prerelease); err != nil {
			t.Fatalf("insert: %v", err)
		}
		v, _, ok := rm.Latest()
		if !ok || v.Original() != "2.0" {
			t.Errorf("expected 2.0, got %v ok=%v", v, ok)
		}
	})

	t.Run("empty map", func(t *testing.T) {
		rm := NewReleaseMap()
		if _, _, ok := rm.Latest(); ok {
			t.Errorf("expected no latest release on empty map")
		}
	})
}

func TestReleaseMapNilReceiver(t *testing.T) {
	var rm *ReleaseMap
	if rm.Len() != 0 {
		t.Errorf("expected nil map to be empty")
	}
	if versions := rm.Versions(); versions != nil {
		t.Errorf("expected nil versions, got %v", versions)
	}
	if _, ok := rm.Get("1.0"); ok {
		t.Errorf("expected lookup on nil map to miss")
	}
	out, err := rm.MarshalJSON()
	if err != nil || string(out) != "{}" {
		t.Errorf("expected {}, got %s (%v)", out, err)
	}
}
