package leakymap

import (
	"errors"
	"fmt"
)

var (
	ErrNilKeyFunc         = errors.New("key func cannot be nil")
	ErrNilCompareFunc     = errors.New("compare func cannot be nil")
	ErrNilFormatFunc      = errors.New("format func cannot be nil")
	ErrNotObject          = errors.New("input is not a JSON object")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrEncodeNotSupported = errors.New("encoding through the decoder is not supported, marshal the map instead")
)

// DuplicateKeyError reports an insert whose key is already present,
// keeping the rendered forms of both spellings for diagnostics.
type DuplicateKeyError struct {
	Key      string
	Existing string
}

func (e *DuplicateKeyError) Error() string {
	if e.Existing != "" && e.Existing != e.Key {
		return fmt.Sprintf("duplicate key %q (already present as %q)", e.Key, e.Existing)
	}
	return fmt.Sprintf("duplicate key %q", e.Key)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
