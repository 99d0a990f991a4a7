// Package leakymap decodes JSON objects into ordered, typed-key maps,
// tolerating bad entries. Members whose name does not parse as a key,
// whose value does not unmarshal as V, or whose key collides with an
// earlier member are dropped with a warning instead of failing the
// whole document.
package leakymap

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

// KeyFunc parses a raw object member name into a typed key.
type KeyFunc[K any] func(token string) (K, error)

// WarnLogger receives one message per dropped entry. *logger.Logger
// satisfies it.
type WarnLogger interface {
	Warnf(format string, v ...any)
}

var defaultWarnLogger WarnLogger = ckanLogger.NewLogger("LeakyMap", "WARN", nil)

// Decoder converts JSON objects into Map[K, V]. The key funcs are
// resolved once at construction; a constructed Decoder is immutable
// and safe for concurrent use.
type Decoder[K, V any] struct {
	parse  KeyFunc[K]
	cmp    CompareFunc[K]
	format FormatFunc[K]
	warn   WarnLogger
}

// NewDecoder fails when any of the key funcs is missing: without them
// no entry could ever be decoded, so the condition is fatal rather
// than leniently skipped. A nil warn falls back to the package logger
// so dropped entries are never silently lost.
func NewDecoder[K, V any](parse KeyFunc[K], cmp CompareFunc[K], format FormatFunc[K], warn WarnLogger) (*Decoder[K, V], error) {
	if parse == nil {
		return nil, ErrNilKeyFunc
	}
	if cmp == nil {
		return nil, ErrNilCompareFunc
	}
	if format == nil {
		return nil, ErrNilFormatFunc
	}
	if warn == nil {
		warn = defaultWarnLogger
	}
	return &Decoder[K, V]{parse: parse, cmp: cmp, format: format, warn: warn}, nil
}

// MustNewDecoder is NewDecoder for package-level construction, where a
// configuration error should stop the process at startup.
func MustNewDecoder[K, V any](parse KeyFunc[K], cmp CompareFunc[K], format FormatFunc[K], warn WarnLogger) *Decoder[K, V] {
	d, err := NewDecoder[K, V](parse, cmp, format, warn)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode reads a JSON object and returns the surviving entries in
// ascending key order. Input that is not a JSON object at all is an
// error; anything wrong with an individual member only drops that
// member. Members with a null value are skipped without a warning.
func (d *Decoder[K, V]) Decode(data []byte) (*Map[K, V], error) {
	return d.DecodeReader(bytes.NewReader(data))
}

func (d *Decoder[K, V]) DecodeReader(r io.Reader) (*Map[K, V], error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	m := d.NewMap()
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read member name: %w", err)
		}
		name, ok := nameTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v where member name expected", nameTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read value of member %q: %w", name, err)
		}
		d.decodeEntry(m, name, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	return m, nil
}

// NewMap returns an empty map ordered and formatted by the decoder's
// key funcs.
func (d *Decoder[K, V]) NewMap() *Map[K, V] {
	return &Map[K, V]{cmp: d.cmp, format: d.format}
}

func (d *Decoder[K, V]) decodeEntry(m *Map[K, V], name string, raw json.RawMessage) {
	if isJSONNull(raw) {
		return
	}
	key, err := d.parse(name)
	if err != nil {
		d.warn.Warnf("dropping entry %q: bad key: %v (value %s)", name, err, snippet(raw))
		return
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		d.warn.Warnf("dropping entry %q: bad value: %v (value %s)", name, err, snippet(raw))
		return
	}
	if err := m.Insert(key, value); err != nil {
		d.warn.Warnf("dropping entry %q: %v (value %s)", name, err, snippet(raw))
	}
}

// Encode is deliberately unsupported: the decoder's write path always
// fails loudly. Serialization goes through Map.MarshalJSON.
func (d *Decoder[K, V]) Encode(m *Map[K, V]) ([]byte, error) {
	return nil, ErrEncodeNotSupported
}

func isJSONNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

const snippetLimit = 200

func snippet(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > snippetLimit {
		return s[:snippetLimit] + "..."
	}
	return s
}
