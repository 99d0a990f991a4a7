package cachepack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/iancoleman/orderedmap"
	"github.com/shamaton/msgpack/v2"
)

// Unpack decodes cache bytes back into an ordered map. It walks the
// msgpack encoding directly so that both the ordered document extension
// and plain msgpack maps come back with their member order intact.
func Unpack(data []byte) (*orderedmap.OrderedMap, error) {
	w := docWalker{r: bytes.NewReader(data)}
	v, err := w.walkValue()
	if err != nil {
		return nil, err
	}
	switch om := v.(type) {
	case *orderedmap.OrderedMap:
		return om, nil
	case orderedmap.OrderedMap:
		return &om, nil
	default:
		return nil, fmt.Errorf("cache entry decoded to %T, expected a document", v)
	}
}

func UnpackFromReader(r io.Reader) (*orderedmap.OrderedMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unpack(data)
}

type docWalker struct {
	r *bytes.Reader
}

func (w docWalker) walkValue() (any, error) {
	c, err := w.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read format byte: %w", err)
	}

	// The fix families carry their size in the format byte itself.
	switch {
	case c <= 0x7f: // positive fixint
		return int64(c), nil
	case c >= 0xe0: // negative fixint
		return int64(int8(c)), nil
	case c&0xf0 == 0x80: // fixmap
		return w.walkMap(int(c & 0x0f))
	case c&0xf0 == 0x90: // fixarray
		return w.walkArray(int(c & 0x0f))
	case c&0xe0 == 0xa0: // fixstr
		return w.walkString(int(c & 0x1f))
	}

	switch c {
	case 0xc0:
		return nil, nil
	case 0xc2:
		return false, nil
	case 0xc3:
		return true, nil
	case 0xc4, 0xc5, 0xc6: // bin 8/16/32
		n, err := w.prefixedLength(c - 0xc4)
		if err != nil {
			return nil, err
		}
		return w.take(n)
	case 0xc7, 0xc8, 0xc9: // ext 8/16/32
		n, err := w.prefixedLength(c - 0xc7)
		if err != nil {
			return nil, err
		}
		return w.walkExt(n)
	case 0xca: // float 32
		bits, err := w.uint32()
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(bits)), nil
	case 0xcb: // float 64
		bits, err := w.uint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case 0xcc, 0xcd, 0xce, 0xcf: // uint 8/16/32/64
		return w.walkUint(c)
	case 0xd0, 0xd1, 0xd2, 0xd3: // int 8/16/32/64
		return w.walkInt(c)
	case 0xd4, 0xd5, 0xd6, 0xd7, 0xd8: // fixext 1/2/4/8/16
		return w.walkExt(1 << (c - 0xd4))
	case 0xd9, 0xda, 0xdb: // str 8/16/32
		n, err := w.prefixedLength(c - 0xd9)
		if err != nil {
			return nil, err
		}
		return w.walkString(n)
	case 0xdc, 0xdd: // array 16/32
		n, err := w.prefixedLength(c - 0xdc + 1)
		if err != nil {
			return nil, err
		}
		return w.walkArray(n)
	case 0xde, 0xdf: // map 16/32
		n, err := w.prefixedLength(c - 0xde + 1)
		if err != nil {
			return nil, err
		}
		return w.walkMap(n)
	}

	return nil, fmt.Errorf("unsupported msgpack format byte: 0x%02x", c)
}

// prefixedLength reads the length prefix of a variable sized value.
// Width 0 is an 8 bit length, 1 is 16 bits, 2 is 32 bits, matching the
// order the format families enumerate their members in.
func (w docWalker) prefixedLength(width byte) (int, error) {
	switch width {
	case 0:
		b, err := w.r.ReadByte()
		return int(b), err
	case 1:
		v, err := w.uint16()
		return int(v), err
	default:
		v, err := w.uint32()
		return int(v), err
	}
}

func (w docWalker) walkMap(n int) (*orderedmap.OrderedMap, error) {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	for i := 0; i < n; i++ {
		rawKey, err := w.walkValue()
		if err != nil {
			return nil, fmt.Errorf("decode map key %d: %w", i, err)
		}
		key, ok := rawKey.(string)
		if !ok {
			key = fmt.Sprintf("%v", rawKey)
		}
		val, err := w.walkValue()
		if err != nil {
			return nil, fmt.Errorf("decode map value for key %q: %w", key, err)
		}
		om.Set(key, val)
	}
	return om, nil
}

func (w docWalker) walkArray(n int) ([]any, error) {
	arr := make([]any, n)
	for i := 0; i < n; i++ {
		val, err := w.walkValue()
		if err != nil {
			return nil, fmt.Errorf("decode array element %d: %w", i, err)
		}
		arr[i] = val
	}
	return arr, nil
}

func (w docWalker) walkString(n int) (string, error) {
	buf, err := w.take(n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (w docWalker) walkUint(c byte) (any, error) {
	switch c {
	case 0xcc:
		b, err := w.r.ReadByte()
		return int64(b), err
	case 0xcd:
		v, err := w.uint16()
		return int64(v), err
	case 0xce:
		v, err := w.uint32()
		return int64(v), err
	default:
		// uint 64 may exceed int64 range, keep it unsigned.
		v, err := w.uint64()
		return v, err
	}
}

func (w docWalker) walkInt(c byte) (any, error) {
	switch c {
	case 0xd0:
		b, err := w.r.ReadByte()
		return int64(int8(b)), err
	case 0xd1:
		v, err := w.uint16()
		return int64(int16(v)), err
	case 0xd2:
		v, err := w.uint32()
		return int64(int32(v)), err
	default:
		v, err := w.uint64()
		return int64(v), err
	}
}

// walkExt decodes an extension value. The ordered document extension is
// unpacked back into an ordered map, anything else comes back as its
// raw payload bytes.
func (w docWalker) walkExt(size int) (any, error) {
	typeByte, err := w.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read ext type: %w", err)
	}
	payload, err := w.take(size)
	if err != nil {
		return nil, fmt.Errorf("read ext data: %w", err)
	}
	if int8(typeByte) != orderedDocExtCode {
		return payload, nil
	}

	var iod internalOrderedDoc
	if err := msgpack.Unmarshal(payload, &iod); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ordered doc ext data: %w", err)
	}
	om := iod.ToOrderedMap()
	return &om, nil
}

func (w docWalker) uint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (w docWalker) uint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (w docWalker) uint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(w.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (w docWalker) take(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
