package leakymap

import (
	"bytes"
	"sort"

	json "github.com/goccy/go-json"
)

// CompareFunc is a total order over K: negative when a sorts before b,
// zero when the two keys are the same entry.
type CompareFunc[K any] func(a, b K) int

// FormatFunc renders a key back into an object member name.
type FormatFunc[K any] func(key K) string

type Entry[K, V any] struct {
	Key   K
	Value V
}

// Map is an ordered mapping with unique keys. Entries are held in
// ascending key order, so lookups and inserts binary-search the slice.
// It is not safe for concurrent mutation.
type Map[K, V any] struct {
	cmp     CompareFunc[K]
	format  FormatFunc[K]
	entries []Entry[K, V]
}

func NewMap[K, V any](cmp CompareFunc[K], format FormatFunc[K]) (*Map[K, V], error) {
	if cmp == nil {
		return nil, ErrNilCompareFunc
	}
	if format == nil {
		return nil, ErrNilFormatFunc
	}
	return &Map[K, V]{cmp: cmp, format: format}, nil
}

func (m *Map[K, V]) Len() int {
	return len(m.entries)
}

func (m *Map[K, V]) search(key K) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.cmp(m.entries[i].Key, key) >= 0
	})
}

// Insert places the entry at its sorted position. A key equal to one
// already present is rejected with a DuplicateKeyError; the existing
// entry stays untouched.
func (m *Map[K, V]) Insert(key K, value V) error {
	i := m.search(key)
	if i < len(m.entries) && m.cmp(m.entries[i].Key, key) == 0 {
		return &DuplicateKeyError{
			Key:      m.format(key),
			Existing: m.format(m.entries[i].Key),
		}
	}
	m.entries = append(m.entries, Entry[K, V]{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = Entry[K, V]{Key: key, Value: value}
	return nil
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	i := m.search(key)
	if i < len(m.entries) && m.cmp(m.entries[i].Key, key) == 0 {
		return m.entries[i].Value, true
	}
	var zero V
	return zero, false
}

// Keys returns the keys in ascending order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in ascending key order.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	entries := make([]Entry[K, V], len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Range calls fn for each entry in ascending key order until fn
// returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, e := range m.entries {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

// Last returns the entry with the greatest key.
func (m *Map[K, V]) Last() (Entry[K, V], bool) {
	if len(m.entries) == 0 {
		return Entry[K, V]{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// MarshalJSON writes the mapping as a JSON object with members in
// ascending key order, member names rendered by the format func.
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(m.format(e.Key))
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
