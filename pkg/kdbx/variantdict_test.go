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
	"reflect"
	"testing"
)

// buildVariantRecord assembles one wire record by hand.
func buildVariantRecord(tag byte, name string, value []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	binary.Write(&buf, binary.LittleEndian, uint32(len(name)))
	buf.WriteString(name)
	binary.Write(&buf, binary.LittleEndian, uint32(len(value)))
	buf.Write(value)
	return buf.Bytes()
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func TestParseVariantDict(t *testing.T) {
	var raw bytes.Buffer
	raw.Write([]byte{0x00, 0x01}) // version 1.0
	raw.Write(buildVariantRecord(0x0C, "i4", le32(uint32(12345))))
	raw.Write(buildVariantRecord(0x0D, "i8", le64(uint64(1234567890))))
	raw.Write(buildVariantRecord(0x04, "u4", le32(54321)))
	raw.Write(buildVariantRecord(0x05, "u8", le64(9876543210)))
	raw.Write(buildVariantRecord(0x08, "b", []byte{1}))
	raw.Write(buildVariantRecord(0x18, "s", []byte("hello")))
	raw.Write(buildVariantRecord(0x42, "a", []byte{0xde, 0xad}))
	raw.WriteByte(0x00)

	d, err := parseVariantDict(raw.Bytes())
	if err != nil {
		t.Fatal("parseVariantDict:", err)
	}
	if d.Len() != 7 {
		t.Errorf("d.Len() = %d; want 7", d.Len())
	}
	wants := []struct {
		name  string
		value VariantValue
	}{
		{"i4", VarInt32(12345)},
		{"i8", VarInt64(1234567890)},
		{"u4", VarUint32(54321)},
		{"u8", VarUint64(9876543210)},
		{"b", VarBool(true)},
		{"s", VarString("hello")},
		{"a", VarBytes{0xde, 0xad}},
	}
	for _, want := range wants {
		got, ok := d.Get(want.name)
		if !ok {
			t.Errorf("d.Get(%q) missing", want.name)
			continue
		}
		if !reflect.DeepEqual(got, want.value) {
			t.Errorf("d.Get(%q) = %#v; want %#v", want.name, got, want.value)
		}
	}
}

func TestVariantDictOrderPreserved(t *testing.T) {
	d := new(VariantDict)
	d.Set("$UUID", VarBytes{1, 2, 3})
	d.Set("M", VarUint64(65536))
	d.Set("V", VarUint32(19))
	d.Set("S", VarBytes{4, 5, 6})
	d.Set("I", VarUint64(2))
	d.Set("P", VarUint32(1))

	reparsed, err := parseVariantDict(d.encode())
	if err != nil {
		t.Fatal("parseVariantDict:", err)
	}
	want := []string{"$UUID", "M", "V", "S", "I", "P"}
	if got := reparsed.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("reparsed.Names() = %q; want %q", got, want)
	}
}

func TestVariantDictSetReplacesInPlace(t *testing.T) {
	d := new(VariantDict)
	d.Set("a", VarUint32(1))
	d.Set("b", VarUint32(2))
	d.Set("a", VarUint32(3))
	if got := d.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("d.Names() = %q; want [a b]", got)
	}
	v, _ := d.Get("a")
	if v != VarUint32(3) {
		t.Errorf("d.Get(a) = %v; want 3", v)
	}
}

func TestParseVariantDictErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "missing terminator", raw: []byte{0x00, 0x01}},
		{name: "future version", raw: []byte{0x00, 0x02, 0x00}},
		{
			name: "unknown type",
			raw: append(append([]byte{0x00, 0x01},
				buildVariantRecord(0x77, "x", []byte{1})...), 0x00),
		},
		{
			name: "short uint32",
			raw: append(append([]byte{0x00, 0x01},
				buildVariantRecord(0x04, "x", []byte{1, 2})...), 0x00),
		},
		{
			name: "truncated value",
			raw:  []byte{0x00, 0x01, 0x04, 0x01, 0x00, 0x00, 0x00, 'x', 0x04, 0x00, 0x00, 0x00, 0x01},
		},
	}
	for _, test := range tests {
		if _, err := parseVariantDict(test.raw); err == nil {
			t.Errorf("%s: parseVariantDict did not return an error", test.name)
		}
	}
}
