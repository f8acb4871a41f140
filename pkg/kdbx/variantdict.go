// Copyright 2026 The Kdbx Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kdbx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Variant dictionary value type tags.
const (
	variantUint32 byte = 0x04
	variantUint64 byte = 0x05
	variantBool   byte = 0x08
	variantInt32  byte = 0x0C
	variantInt64  byte = 0x0D
	variantString byte = 0x18
	variantBytes  byte = 0x42
)

// variantVersion is the wire version of the dictionary encoding.  Only
// the major (high) byte is compared.
const variantVersion uint16 = 0x0100

// A VariantValue is one typed value in a VariantDict.  Exactly one of
// the concrete types below is stored per entry.
type VariantValue interface {
	variantTag() byte
	variantData() []byte
}

// Variant value types.
type (
	// VarUint32 is an unsigned 32-bit integer value.
	VarUint32 uint32
	// VarUint64 is an unsigned 64-bit integer value.
	VarUint64 uint64
	// VarBool is a boolean value.
	VarBool bool
	// VarInt32 is a signed 32-bit integer value.
	VarInt32 int32
	// VarInt64 is a signed 64-bit integer value.
	VarInt64 int64
	// VarString is a UTF-8 string value.
	VarString string
	// VarBytes is an opaque byte-array value.
	VarBytes []byte
)

func (v VarUint32) variantTag() byte { return variantUint32 }
func (v VarUint64) variantTag() byte { return variantUint64 }
func (v VarBool) variantTag() byte   { return variantBool }
func (v VarInt32) variantTag() byte  { return variantInt32 }
func (v VarInt64) variantTag() byte  { return variantInt64 }
func (v VarString) variantTag() byte { return variantString }
func (v VarBytes) variantTag() byte  { return variantBytes }

func (v VarUint32) variantData() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func (v VarUint64) variantData() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func (v VarBool) variantData() []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (v VarInt32) variantData() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
	return b[:]
}

func (v VarInt64) variantData() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(v)))
	return b[:]
}

func (v VarString) variantData() []byte { return []byte(v) }
func (v VarBytes) variantData() []byte  { return []byte(v) }

// A VariantDict is the typed, ordered key-value map KDBX uses for KDF
// parameters and public custom data.  Insertion order is preserved
// across a parse/encode cycle.
type VariantDict struct {
	items []variantItem
}

type variantItem struct {
	name  string
	value VariantValue
}

// Set stores value under name, replacing an existing entry in place or
// appending a new one.
func (d *VariantDict) Set(name string, value VariantValue) {
	for i := range d.items {
		if d.items[i].name == name {
			d.items[i].value = value
			return
		}
	}
	d.items = append(d.items, variantItem{name, value})
}

// Get returns the value stored under name.
func (d *VariantDict) Get(name string) (VariantValue, bool) {
	for i := range d.items {
		if d.items[i].name == name {
			return d.items[i].value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (d *VariantDict) Len() int {
	return len(d.items)
}

// Names returns the entry names in insertion order.
func (d *VariantDict) Names() []string {
	names := make([]string, len(d.items))
	for i := range d.items {
		names[i] = d.items[i].name
	}
	return names
}

func (d *VariantDict) uint32Value(name string) (uint32, bool) {
	v, ok := d.Get(name)
	if !ok {
		return 0, false
	}
	u, ok := v.(VarUint32)
	return uint32(u), ok
}

func (d *VariantDict) uint64Value(name string) (uint64, bool) {
	v, ok := d.Get(name)
	if !ok {
		return 0, false
	}
	u, ok := v.(VarUint64)
	return uint64(u), ok
}

func (d *VariantDict) bytesValue(name string) ([]byte, bool) {
	v, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	b, ok := v.(VarBytes)
	return []byte(b), ok
}

// parseVariantDict decodes the wire form of a variant dictionary.
// Unknown value types are fatal.
func parseVariantDict(b []byte) (*VariantDict, error) {
	r := &reader{r: bytes.NewReader(b)}
	version := r.readUint16()
	if r.err != nil {
		return nil, fmt.Errorf("kdbx: variant dict: %w", r.err)
	}
	if version&0xFF00 > variantVersion&0xFF00 {
		return nil, fmt.Errorf("kdbx: variant dict version %#04x not supported", version)
	}
	d := new(VariantDict)
	for {
		tag := r.readByte()
		if r.err != nil {
			return nil, fmt.Errorf("kdbx: variant dict: %w", r.err)
		}
		if tag == 0 {
			return d, nil
		}
		nameLen := r.readUint32()
		if nameLen > maxHeaderFieldLen {
			return nil, fmt.Errorf("kdbx: variant dict name length out of range")
		}
		name := r.readBytes(int(nameLen))
		valueLen := r.readUint32()
		if valueLen > maxHeaderFieldLen {
			return nil, fmt.Errorf("kdbx: variant dict value length out of range")
		}
		value := r.readBytes(int(valueLen))
		if r.err != nil {
			return nil, fmt.Errorf("kdbx: variant dict: %w", r.err)
		}
		v, err := variantFromBytes(tag, value)
		if err != nil {
			return nil, err
		}
		d.items = append(d.items, variantItem{string(name), v})
	}
}

func variantFromBytes(tag byte, b []byte) (VariantValue, error) {
	wrongSize := func(want int) error {
		return fmt.Errorf("kdbx: variant dict value type %#02x has %d bytes, want %d", tag, len(b), want)
	}
	switch tag {
	case variantUint32:
		if len(b) != 4 {
			return nil, wrongSize(4)
		}
		return VarUint32(binary.LittleEndian.Uint32(b)), nil
	case variantUint64:
		if len(b) != 8 {
			return nil, wrongSize(8)
		}
		return VarUint64(binary.LittleEndian.Uint64(b)), nil
	case variantBool:
		if len(b) != 1 {
			return nil, wrongSize(1)
		}
		return VarBool(b[0] != 0), nil
	case variantInt32:
		if len(b) != 4 {
			return nil, wrongSize(4)
		}
		return VarInt32(int32(binary.LittleEndian.Uint32(b))), nil
	case variantInt64:
		if len(b) != 8 {
			return nil, wrongSize(8)
		}
		return VarInt64(int64(binary.LittleEndian.Uint64(b))), nil
	case variantString:
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("kdbx: variant dict string value is not UTF-8")
		}
		return VarString(b), nil
	case variantBytes:
		return VarBytes(append([]byte(nil), b...)), nil
	default:
		return nil, fmt.Errorf("kdbx: variant dict value type %#02x unknown", tag)
	}
}

// encode serializes the dictionary in insertion order.
func (d *VariantDict) encode() []byte {
	var buf bytes.Buffer
	w := &writer{w: &buf}
	w.writeUint16(variantVersion)
	for _, item := range d.items {
		data := item.value.variantData()
		w.writeByte(item.value.variantTag())
		w.writeUint32(uint32(len(item.name)))
		w.write([]byte(item.name))
		w.writeUint32(uint32(len(data)))
		w.write(data)
	}
	w.writeByte(0)
	return buf.Bytes()
}
