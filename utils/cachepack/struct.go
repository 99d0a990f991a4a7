package cachepack

import "github.com/shamaton/msgpack/v2/ext"

const orderedDocExtCode = 100

type internalOrderedDoc struct {
	Keys []string `msgpack:"k"`
	Vals []any    `msgpack:"v"`
}

type OrderedDocDecoder struct {
	ext.DecoderCommon
}

type OrderedDocStreamDecoder struct{}

type OrderedDocEncoder struct {
	ext.EncoderCommon
}

type OrderedDocStreamEncoder struct{}

var _ ext.Decoder = (*OrderedDocDecoder)(nil)
var _ ext.StreamDecoder = (*OrderedDocStreamDecoder)(nil)
var _ ext.Encoder = (*OrderedDocEncoder)(nil)
var _ ext.StreamEncoder = (*OrderedDocStreamEncoder)(nil)
