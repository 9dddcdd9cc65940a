// Package jsonconv converts JSON text into Fleece buffers by driving the
// encoder from a json-iterator token stream. Numbers are classified
// int-first so integers stay integers through a round trip.
package jsonconv

import (
	"errors"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
)

// Convert feeds one JSON document from data into enc. The encoder's own
// configuration (interning, sorting, shared keys, delta base) applies
// unchanged; Convert only translates tokens into write events. The
// encoder is not finalized, so callers may keep writing or call
// ExtractOutput themselves.
func Convert(data []byte, enc *encoder.Encoder) error {
	it := jsoniter.ParseBytes(jsoniter.ConfigDefault, data)
	if err := writeNext(it, enc); err != nil {
		return err
	}
	// A clean parse leaves only EOF behind.
	if it.WhatIsNext() != jsoniter.InvalidValue {
		return fleece.NewError(fleece.JSONError, "trailing data after JSON value")
	}
	if err := iterError(it); err != nil {
		return err
	}
	return enc.Error()
}

// EncodeJSON converts one JSON document to a complete Fleece buffer.
func EncodeJSON(data []byte, opts encoder.Options, sk *sharedkeys.SharedKeys) ([]byte, error) {
	enc := encoder.New(opts)
	enc.SetSharedKeys(sk)
	if err := Convert(data, enc); err != nil {
		return nil, err
	}
	return enc.ExtractOutput()
}

// EncodeJSONString is EncodeJSON for string input.
func EncodeJSONString(s string, opts encoder.Options, sk *sharedkeys.SharedKeys) ([]byte, error) {
	return EncodeJSON([]byte(s), opts, sk)
}

func writeNext(it *jsoniter.Iterator, enc *encoder.Encoder) error {
	switch it.WhatIsNext() {
	case jsoniter.NilValue:
		it.ReadNil()
		enc.WriteNull()
	case jsoniter.BoolValue:
		enc.WriteBool(it.ReadBool())
	case jsoniter.NumberValue:
		num := it.ReadNumber()
		if err := iterError(it); err != nil {
			return err
		}
		writeNumber(string(num), enc)
	case jsoniter.StringValue:
		enc.WriteString(it.ReadString())
	case jsoniter.ArrayValue:
		var cbErr error
		enc.BeginArray(0)
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			cbErr = writeNext(it, enc)
			return cbErr == nil
		})
		enc.EndArray()
		if cbErr != nil {
			return cbErr
		}
	case jsoniter.ObjectValue:
		var cbErr error
		enc.BeginDict(0)
		it.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
			enc.WriteKey(key)
			cbErr = writeNext(it, enc)
			return cbErr == nil
		})
		enc.EndDict()
		if cbErr != nil {
			return cbErr
		}
	default:
		if err := iterError(it); err != nil {
			return err
		}
		return fleece.NewError(fleece.JSONError, "unexpected end of JSON input")
	}
	return iterError(it)
}

// writeNumber picks the narrowest write for a JSON number literal:
// signed integer, then unsigned (for values above MaxInt64), then float.
func writeNumber(lit string, enc *encoder.Encoder) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		enc.WriteInt(i)
		return
	}
	if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
		enc.WriteUInt(u)
		return
	}
	// The tokenizer already validated the literal.
	f, _ := strconv.ParseFloat(lit, 64)
	enc.WriteDouble(f)
}

func iterError(it *jsoniter.Iterator) error {
	if it.Error == nil || errors.Is(it.Error, io.EOF) {
		return nil
	}
	return fleece.WrapError(fleece.JSONError, "malformed JSON", it.Error)
}
