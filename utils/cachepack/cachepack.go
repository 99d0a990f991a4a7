// Package cachepack serializes rendered module documents for the cache.
// Plain msgpack maps do not keep member order, so documents are packed
// through a msgpack extension that stores keys and values as parallel
// arrays. Release order therefore survives the Redis round trip.
package cachepack

import (
	"fmt"
	"io"
	"reflect"

	"github.com/iancoleman/orderedmap"
	"github.com/shamaton/msgpack/v2"
	"github.com/shamaton/msgpack/v2/def"
	"github.com/shamaton/msgpack/v2/ext"
)

func (iod internalOrderedDoc) ToOrderedMap() orderedmap.OrderedMap {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	for i, key := range iod.Keys {
		om.Set(key, iod.Vals[i])
	}
	return *om
}

func newInternalDoc(om orderedmap.OrderedMap) internalOrderedDoc {
	keys := om.Keys()
	v := internalOrderedDoc{
		Keys: keys,
		Vals: make([]any, 0, len(keys)),
	}
	for _, key := range keys {
		val, _ := om.Get(key)
		v.Vals = append(v.Vals, val)
	}
	return v
}

func (d *OrderedDocDecoder) Code() int8 {
	return orderedDocExtCode
}

func (d *OrderedDocDecoder) IsType(offset int, data *[]byte) bool {
	code, offset := d.ReadSize1(offset, data)
	if code == def.Ext8 {
		_, offset = d.ReadSize1(offset, data)
		t, _ := d.ReadSize1(offset, data)
		return int8(t) == d.Code()
	}
	return false
}

func (d *OrderedDocDecoder) AsValue(offset int, k reflect.Kind, data *[]byte) (any, int, error) {
	code, offset := d.ReadSize1(offset, data)
	if code != def.Ext8 {
		return nil, 0, fmt.Errorf("ordered doc ext: unexpected format byte %x while decoding %v", code, k)
	}

	size, offset := d.ReadSize1(offset, data)
	_, offset = d.ReadSize1(offset, data)
	extData, offset := d.ReadSizeN(offset, int(size), data)

	var iod internalOrderedDoc
	if err := msgpack.Unmarshal(extData, &iod); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal ordered doc data: %w", err)
	}

	return iod.ToOrderedMap(), offset, nil
}

func (d *OrderedDocStreamDecoder) Code() int8 {
	return orderedDocExtCode
}

func (d *OrderedDocStreamDecoder) IsType(code byte, innerType int8, _ int) bool {
	return code == def.Ext8 && innerType == d.Code()
}

func (d *OrderedDocStreamDecoder) ToValue(code byte, data []byte, k reflect.Kind) (any, error) {
	if code != def.Ext8 {
		return nil, fmt.Errorf("ordered doc ext: unexpected format byte %x while decoding %v", code, k)
	}

	var iod internalOrderedDoc
	if err := msgpack.Unmarshal(data, &iod); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ordered doc data: %w", err)
	}

	return iod.ToOrderedMap(), nil
}

func (e *OrderedDocEncoder) Code() int8 {
	return orderedDocExtCode
}

func (e *OrderedDocEncoder) Type() reflect.Type {
	return reflect.TypeOf(orderedmap.OrderedMap{})
}

func (e *OrderedDocEncoder) CalcByteSize(value reflect.Value) (int, error) {
	om := value.Interface().(orderedmap.OrderedMap)
	v := newInternalDoc(om)

	data, err := msgpack.Marshal(v)
	if err != nil {
		return 0, err
	}

	return def.Byte1 + def.Byte1 + len(data), nil
}

func (e *OrderedDocEncoder) WriteToBytes(value reflect.Value, offset int, bytes *[]byte) int {
	om := value.Interface().(orderedmap.OrderedMap)
	v := newInternalDoc(om)
	data, _ := msgpack.Marshal(v)

	offset = e.SetByte1Int(def.Ext8, offset, bytes)
	offset = e.SetByte1Int(len(data), offset, bytes)
	offset = e.SetByte1Int(int(e.Code()), offset, bytes)
	offset = e.SetBytes(data, offset, bytes)
	return offset
}

func (e *OrderedDocStreamEncoder) Code() int8 {
	return orderedDocExtCode
}

func (e *OrderedDocStreamEncoder) Type() reflect.Type {
	return reflect.TypeOf(orderedmap.OrderedMap{})
}

func (e *OrderedDocStreamEncoder) Write(w ext.StreamWriter, value reflect.Value) error {
	om := value.Interface().(orderedmap.OrderedMap)
	v := newInternalDoc(om)

	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}

	if err := w.WriteByte1Int(def.Ext8); err != nil {
		return err
	}
	if err := w.WriteByte1Int(len(data)); err != nil {
		return err
	}
	if err := w.WriteByte1Int(int(e.Code())); err != nil {
		return err
	}
	if err := w.WriteBytes(data); err != nil {
		return err
	}

	return nil
}

// RegisterOrderedDocExt hooks the ordered document coders into the
// msgpack runtime. Call once at startup before any cache traffic.
func RegisterOrderedDocExt() error {
	if err := msgpack.AddExtCoder(&OrderedDocEncoder{}, &OrderedDocDecoder{}); err != nil {
		return fmt.Errorf("failed to register OrderedDoc ext coder: %w", err)
	}
	if err := msgpack.AddExtStreamCoder(&OrderedDocStreamEncoder{}, &OrderedDocStreamDecoder{}); err != nil {
		return fmt.Errorf("failed to register OrderedDoc stream ext coder: %w", err)
	}

	return nil
}

func Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func MarshalWrite(w io.Writer, v any) error {
	return msgpack.MarshalWrite(w, v)
}

func UnmarshalRead(r io.Reader, v any) error {
	return msgpack.UnmarshalRead(r, v)
}

// JSONToOrderedDoc parses rendered document JSON into an ordered map,
// keeping members in document order so the cache stores exactly what
// the registry rendered.
func JSONToOrderedDoc(data []byte) (*orderedmap.OrderedMap, error) {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	if err := om.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return om, nil
}

// PackJSON converts rendered document JSON straight into cache bytes.
func PackJSON(data []byte) ([]byte, error) {
	om, err := JSONToOrderedDoc(data)
	if err != nil {
		return nil, err
	}
	return Marshal(om)
}
