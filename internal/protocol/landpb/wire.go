// Package landpb implements the binary messages of the land protocol.
//
// The messages are encoded field by field with protowire so that fields this
// server does not model (the bulk of a town save) survive a decode/encode
// cycle byte for byte.
package landpb

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ContentType is the media type of every land protocol body
const ContentType = "application/x-protobuf"

var (
	errWireType = errors.New("unexpected wire type")
	errUTF8     = errors.New("string field is not valid UTF-8")
)

// forEachField walks the top-level fields of b. val is the encoded value
// without its tag, raw is the complete field including the tag.
func forEachField(b []byte, visit func(num protowire.Number, typ protowire.Type, val, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		if err := visit(num, typ, b[n:n+m], b[:n+m]); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n+m:]
	}
	return nil
}

func readVarint(typ protowire.Type, val []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(val)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func readBytes(typ protowire.Type, val []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, errWireType
	}
	v, n := protowire.ConsumeBytes(val)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return v, nil
}

func readString(typ protowire.Type, val []byte) (string, error) {
	b, err := readBytes(typ, val)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errUTF8
	}
	return string(b), nil
}

func readInt32(typ protowire.Type, val []byte) (int32, error) {
	v, err := readVarint(typ, val)
	return int32(v), err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
