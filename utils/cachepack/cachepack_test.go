package cachepack

import (
	"sync"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/shamaton/msgpack/v2"
)

var registerOnce sync.Once

func mustRegister(t *testing.T) {
	t.Helper()
	registerOnce.Do(func() {
		if err := RegisterOrderedDocExt(); err != nil {
			t.Fatalf("register ordered doc ext: %v", err)
		}
	})
}

func asOrderedMap(t *testing.T, v any) *orderedmap.OrderedMap {
	t.Helper()
	switch om := v.(type) {
	case *orderedmap.OrderedMap:
		return om
	case orderedmap.OrderedMap:
		return &om
	default:
		t.Fatalf("expected ordered map, got %T", v)
		return nil
	}
}

func assertKeys(t *testing.T, om *orderedmap.OrderedMap, expected []string) {
	t.Helper()
	keys := om.Keys()
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d: %v", len(expected), len(keys), keys)
	}
	for i, k := range keys {
		if k != expected[i] {
			t.Errorf("key %d: expected %s, got %s", i, expected[i], k)
		}
	}
}

func TestPackRoundTripPreservesOrder(t *testing.T) {
	mustRegister(t)

	t.Run("ascending versions", func(t *testing.T) {
		om := orderedmap.New()
		om.Set("0.9.0", "a")
		om.Set("0.10.0", "b")
		om.Set("1.0.0", "c")

		data, err := Marshal(om)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		assertKeys(t, loaded, []string{"0.9.0", "0.10.0", "1.0.0"})
	})

	t.Run("reversed insert order survives", func(t *testing.T) {
		om := orderedmap.New()
		om.Set("1.0.0", "c")
		om.Set("0.10.0", "b")
		om.Set("0.9.0", "a")

		data, err := Marshal(om)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		assertKeys(t, loaded, []string{"1.0.0", "0.10.0", "0.9.0"})
	})
}

func TestUnpackStandardMsgpack(t *testing.T) {
	t.Run("flat map", func(t *testing.T) {
		type orderedStruct struct {
			X int `msgpack:"x"`
			Y int `msgpack:"y"`
			Z int `msgpack:"z"`
		}
		data, err := msgpack.Marshal(orderedStruct{X: 10, Y: 20, Z: 30})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		assertKeys(t, loaded, []string{"x", "y", "z"})

		xVal, _ := loaded.Get("x")
		if xVal.(int64) != 10 {
			t.Errorf("expected x=10, got %v", xVal)
		}
	})

	t.Run("nested map", func(t *testing.T) {
		type release struct {
			License  string `msgpack:"license"`
			Download string `msgpack:"download"`
		}
		type module struct {
			Identifier string  `msgpack:"identifier"`
			Release    release `msgpack:"release"`
		}
		data, err := msgpack.Marshal(module{
			Identifier: "AwesomeMod",
			Release:    release{License: "MIT", Download: "https://example.com/pkg.zip"},
		})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		assertKeys(t, loaded, []string{"identifier", "release"})

		releaseVal, _ := loaded.Get("release")
		inner := asOrderedMap(t, releaseVal)
		assertKeys(t, inner, []string{"license", "download"})
		licenseVal, _ := inner.Get("license")
		if licenseVal.(string) != "MIT" {
			t.Errorf("expected license MIT, got %v", licenseVal)
		}
	})

	t.Run("map with array", func(t *testing.T) {
		type module struct {
			Tags []string `msgpack:"tags"`
			Name string   `msgpack:"name"`
		}
		data, err := msgpack.Marshal(module{Tags: []string{"planes", "parts"}, Name: "test"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		assertKeys(t, loaded, []string{"tags", "name"})

		tagsVal, _ := loaded.Get("tags")
		tags, ok := tagsVal.([]any)
		if !ok {
			t.Fatalf("expected tags to be []any, got %T", tagsVal)
		}
		if len(tags) != 2 || tags[0].(string) != "planes" {
			t.Errorf("unexpected tags: %v", tags)
		}
	})

	t.Run("mixed scalar types", func(t *testing.T) {
		type mixed struct {
			Name   string  `msgpack:"name"`
			Count  int     `msgpack:"count"`
			Score  float64 `msgpack:"score"`
			Active bool    `msgpack:"active"`
		}
		data, err := msgpack.Marshal(mixed{Name: "Alice", Count: 25, Score: 99.5, Active: true})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		loaded, err := Unpack(data)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		nameVal, _ := loaded.Get("name")
		if nameVal.(string) != "Alice" {
			t.Errorf("expected name=Alice, got %v", nameVal)
		}
		countVal, _ := loaded.Get("count")
		if countVal.(int64) != 25 {
			t.Errorf("expected count=25, got %v", countVal)
		}
		scoreVal, _ := loaded.Get("score")
		if scoreVal.(float64) != 99.5 {
			t.Errorf("expected score=99.5, got %v", scoreVal)
		}
		activeVal, _ := loaded.Get("active")
		if activeVal.(bool) != true {
			t.Errorf("expected active=true, got %v", activeVal)
		}
	})
}

func TestPackJSONKeepsDocumentOrder(t *testing.T) {
	mustRegister(t)

	rendered := []byte(`{
		"identifier": "AwesomeMod",
		"name": "Awesome Mod",
		"releases": {
			"0.9.0": {"license": "MIT", "download": "https://example.com/a.zip"},
			"0.10.0": {"license": "MIT", "download": "https://example.com/b.zip"}
		}
	}`)

	packed, err := PackJSON(rendered)
	if err != nil {
		t.Fatalf("pack json: %v", err)
	}
	loaded, err := Unpack(packed)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	assertKeys(t, loaded, []string{"identifier", "name", "releases"})

	releasesVal, _ := loaded.Get("releases")
	releases := asOrderedMap(t, releasesVal)
	assertKeys(t, releases, []string{"0.9.0", "0.10.0"})
}

func TestUnpackRejectsScalar(t *testing.T) {
	data, err := msgpack.Marshal(42)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Unpack(data); err == nil {
		t.Errorf("expected error for scalar cache entry")
	}
}
