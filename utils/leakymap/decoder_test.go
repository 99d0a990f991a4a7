package leakymap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) Warnf(format string, v ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, v...))
}

type testItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (i *testItem) UnmarshalJSON(data []byte) error {
	type plain testItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	*i = testItem(p)
	return nil
}

func intCompare(a, b int) int {
	return a - b
}

func newIntDecoder(t *testing.T, warn WarnLogger) *Decoder[int, testItem] {
	t.Helper()
	d, err := NewDecoder[int, testItem](strconv.Atoi, intCompare, strconv.Itoa, warn)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	return d
}

func TestDecoderConstruction(t *testing.T) {
	t.Run("nil key func", func(t *testing.T) {
		_, err := NewDecoder[int, testItem](nil, intCompare, strconv.Itoa, nil)
		if !errors.Is(err, ErrNilKeyFunc) {
			t.Errorf("expected ErrNilKeyFunc, got %v", err)
		}
	})

	t.Run("nil compare func", func(t *testing.T) {
		_, err := NewDecoder[int, testItem](strconv.Atoi, nil, strconv.Itoa, nil)
		if !errors.Is(err, ErrNilCompareFunc) {
			t.Errorf("expected ErrNilCompareFunc, got %v", err)
		}
	})

	t.Run("nil format func", func(t *testing.T) {
		_, err := NewDecoder[int, testItem](strconv.Atoi, intCompare, nil, nil)
		if !errors.Is(err, ErrNilFormatFunc) {
			t.Errorf("expected ErrNilFormatFunc, got %v", err)
		}
	})

	t.Run("nil warn logger is allowed", func(t *testing.T) {
		d, err := NewDecoder[int, testItem](strconv.Atoi, intCompare, strconv.Itoa, nil)
		if err != nil {
			t.Fatalf("NewDecoder failed: %v", err)
		}
		if d == nil {
			t.Fatal("expected decoder, got nil")
		}
	})

	t.Run("MustNewDecoder panics on config error", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic, got none")
			}
		}()
		MustNewDecoder[int, testItem](nil, intCompare, strconv.Itoa, nil)
	})
}

func TestDecodeKeepsValidEntriesSorted(t *testing.T) {
	warn := &recordingLogger{}
	d := newIntDecoder(t, warn)

	m, err := d.Decode([]byte(`{"3": {"name": "c"}, "1": {"name": "a"}, "2": {"name": "b"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	keys := m.Keys()
	expected := []int{1, 2, 3}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d keys, got %d: %v", len(expected), len(keys), keys)
	}
	for i, k := range keys {
		if k != expected[i] {
			t.Errorf("key %d: expected %d, got %d", i, expected[i], k)
		}
	}
	if v, ok := m.Get(2); !ok || v.Name != "b" {
		t.Errorf("Get(2): expected name b, got %+v (found %v)", v, ok)
	}
	if len(warn.warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warn.warnings)
	}
}

func TestDecodeDropsBadEntries(t *testing.T) {
	t.Run("unparsable key", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"1": {"name": "a"}, "not-a-number": {"name": "x"}, "2": {"name": "b"}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 2 {
			t.Errorf("expected 2 entries, got %d", m.Len())
		}
		if len(warn.warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d: %v", len(warn.warnings), warn.warnings)
		}
		if !strings.Contains(warn.warnings[0], `"not-a-number"`) {
			t.Errorf("warning should name the dropped member, got %q", warn.warnings[0])
		}
		if !strings.Contains(warn.warnings[0], `"name": "x"`) {
			t.Errorf("warning should carry the raw value, got %q", warn.warnings[0])
		}
	})

	t.Run("malformed value", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"1": {"name": "a"}, "2": "not an object"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", m.Len())
		}
		if len(warn.warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d: %v", len(warn.warnings), warn.warnings)
		}
	})

	t.Run("value failing validation", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"1": {"name": "a"}, "2": {"count": 5}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", m.Len())
		}
		if len(warn.warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d: %v", len(warn.warnings), warn.warnings)
		}
		if !strings.Contains(warn.warnings[0], "name is required") {
			t.Errorf("warning should carry the cause, got %q", warn.warnings[0])
		}
	})

	t.Run("duplicate key after normalization", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"1": {"name": "first"}, "01": {"name": "second"}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 1 {
			t.Fatalf("expected 1 entry, got %d", m.Len())
		}
		if v, _ := m.Get(1); v.Name != "first" {
			t.Errorf("first entry should win, got %q", v.Name)
		}
		if len(warn.warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d: %v", len(warn.warnings), warn.warnings)
		}
		if !strings.Contains(warn.warnings[0], "duplicate key") {
			t.Errorf("warning should mention the duplicate, got %q", warn.warnings[0])
		}
	})

	t.Run("null value skipped silently", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"1": {"name": "a"}, "2": null}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", m.Len())
		}
		if len(warn.warnings) != 0 {
			t.Errorf("null entries should not warn, got %v", warn.warnings)
		}
	})

	t.Run("every bad entry gets its own warning", func(t *testing.T) {
		warn := &recordingLogger{}
		d := newIntDecoder(t, warn)

		m, err := d.Decode([]byte(`{"x": 1, "y": 2, "1": {"name": "a"}, "1": {"name": "dup"}}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if m.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", m.Len())
		}
		if len(warn.warnings) != 3 {
			t.Errorf("expected 3 warnings, got %d: %v", len(warn.warnings), warn.warnings)
		}
	})
}

func TestDecodeEmptyObject(t *testing.T) {
	warn := &recordingLogger{}
	d := newIntDecoder(t, warn)

	m, err := d.Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected empty map, got %d entries", m.Len())
	}
	if len(warn.warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warn.warnings)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "{}" {
		t.Errorf("expected {}, got %s", out)
	}
}

func TestDecodeRejectsNonObjectInput(t *testing.T) {
	d := newIntDecoder(t, &recordingLogger{})

	for _, input := range []string{`[1, 2]`, `"text"`, `42`, `null`} {
		if _, err := d.Decode([]byte(input)); !errors.Is(err, ErrNotObject) {
			t.Errorf("input %s: expected ErrNotObject, got %v", input, err)
		}
	}

	if _, err := d.Decode([]byte(`{"1": {"name": "a"`)); err == nil {
		t.Error("truncated input should fail decoding")
	}
}

func TestDecodeIsIdempotentOverOwnOutput(t *testing.T) {
	d := newIntDecoder(t, &recordingLogger{})

	m1, err := d.Decode([]byte(`{"10": {"name": "j"}, "2": {"name": "b"}, "bad": 0}`))
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	out1, err := json.Marshal(m1)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	warn := &recordingLogger{}
	m2, err := newIntDecoder(t, warn).Decode(out1)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	out2, err := json.Marshal(m2)
	if err != nil {
		t.Fatalf("second Marshal failed: %v", err)
	}
	if string(out1) != string(out2) {
		t.Errorf("round trip changed output:\n first %s\nsecond %s", out1, out2)
	}
	if len(warn.warnings) != 0 {
		t.Errorf("decoding own output should drop nothing, got %v", warn.warnings)
	}
}

func TestEncodeIsNotSupported(t *testing.T) {
	d := newIntDecoder(t, &recordingLogger{})
	m, err := d.Decode([]byte(`{"1": {"name": "a"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, err := d.Encode(m); !errors.Is(err, ErrEncodeNotSupported) {
		t.Errorf("expected ErrEncodeNotSupported, got %v", err)
	}
}

func TestDecoderIsReusable(t *testing.T) {
	d := newIntDecoder(t, &recordingLogger{})

	first, err := d.Decode([]byte(`{"1": {"name": "a"}}`))
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	second, err := d.Decode([]byte(`{"2": {"name": "b"}, "3": {"name": "c"}}`))
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if first.Len() != 1 || second.Len() != 2 {
		t.Errorf("decodes should not share state: first %d entries, second %d", first.Len(), second.Len())
	}
}
