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
	"errors"
	"reflect"
	"testing"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

func TestKdfDictRoundTrip(t *testing.T) {
	tests := []kdbxcrypt.KdfParams{
		&kdbxcrypt.AESParams{Rounds: 60000, Salt: bytes.Repeat([]byte{7}, 32)},
		&kdbxcrypt.AESParams{Rounds: 6000, Salt: bytes.Repeat([]byte{9}, 32), Legacy: true},
		&kdbxcrypt.Argon2Params{
			Version:    kdbxcrypt.Argon2Version,
			Memory:     64 * 1024 * 1024,
			Iterations: 10,
			Lanes:      2,
			Salt:       bytes.Repeat([]byte{3}, 32),
		},
		&kdbxcrypt.Argon2Params{
			ID:         true,
			Version:    kdbxcrypt.Argon2Version,
			Memory:     32 * 1024 * 1024,
			Iterations: 4,
			Lanes:      1,
			Salt:       bytes.Repeat([]byte{5}, 32),
		},
	}
	for _, params := range tests {
		got, err := kdfFromDict(kdfToDict(params))
		if err != nil {
			t.Errorf("%v: kdfFromDict: %v", params.UUID(), err)
			continue
		}
		if !reflect.DeepEqual(got, params) {
			t.Errorf("kdfFromDict(kdfToDict(%+v)) = %+v", params, got)
		}
	}
}

func TestKdfFromDictErrors(t *testing.T) {
	argon2UUID := kdbxcrypt.KdfArgon2d

	tests := []struct {
		name  string
		build func() *VariantDict
	}{
		{
			name:  "missing UUID",
			build: func() *VariantDict { return new(VariantDict) },
		},
		{
			name: "UUID wrong length",
			build: func() *VariantDict {
				d := new(VariantDict)
				d.Set("$UUID", VarBytes{1, 2, 3})
				return d
			},
		},
		{
			name: "argon2 missing salt",
			build: func() *VariantDict {
				d := new(VariantDict)
				d.Set("$UUID", VarBytes(argon2UUID[:]))
				d.Set("V", VarUint32(kdbxcrypt.Argon2Version))
				d.Set("M", VarUint64(1024*1024))
				d.Set("I", VarUint64(1))
				d.Set("P", VarUint32(1))
				return d
			},
		},
		{
			name: "argon2 mistyped memory",
			build: func() *VariantDict {
				d := new(VariantDict)
				d.Set("$UUID", VarBytes(argon2UUID[:]))
				d.Set("V", VarUint32(kdbxcrypt.Argon2Version))
				d.Set("M", VarUint32(1024)) // must be u64
				d.Set("I", VarUint64(1))
				d.Set("P", VarUint32(1))
				d.Set("S", VarBytes{1})
				return d
			},
		},
		{
			name: "aes missing rounds",
			build: func() *VariantDict {
				d := new(VariantDict)
				u := kdbxcrypt.KdfAESKdbx4
				d.Set("$UUID", VarBytes(u[:]))
				d.Set("S", VarBytes{1, 2})
				return d
			},
		},
	}
	for _, test := range tests {
		_, err := kdfFromDict(test.build())
		var malformed *MalformedHeaderError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: kdfFromDict error = %v; want MalformedHeaderError", test.name, err)
		}
	}
}

func TestKdfFromDictUnknownUUID(t *testing.T) {
	d := new(VariantDict)
	u := kdbxcrypt.CipherAES256UUID // a valid UUID that is not a KDF
	d.Set("$UUID", VarBytes(u[:]))
	_, err := kdfFromDict(d)
	if !errors.Is(err, kdbxcrypt.ErrUnknownKdf) {
		t.Errorf("kdfFromDict error = %v; want ErrUnknownKdf", err)
	}
}

func parseHeaderBytes(t *testing.T, build func(field func(tag byte, data []byte))) (*Header, error) {
	t.Helper()
	var buf bytes.Buffer
	w := &writer{w: &buf}
	field := func(tag byte, data []byte) {
		w.writeByte(tag)
		w.writeUint32(uint32(len(data)))
		w.write(data)
	}
	build(field)
	field(headerEnd, nil)
	if w.err != nil {
		t.Fatal(w.err)
	}
	return parseHeader(&reader{r: bytes.NewReader(buf.Bytes())}, 4)
}

func TestParseHeaderMissingFields(t *testing.T) {
	cipherID := kdbxcrypt.AES256.UUID()
	kdfDict := kdfToDict(&kdbxcrypt.AESParams{Rounds: 1, Salt: make([]byte, 32)}).encode()
	full := map[byte][]byte{
		headerCipherID:         cipherID[:],
		headerCompressionFlags: le32(CompressionNone),
		headerMasterSeed:       make([]byte, 32),
		headerEncryptionIV:     make([]byte, 16),
		headerKdfParameters:    kdfDict,
	}

	// Complete header parses.
	h, err := parseHeaderBytes(t, func(field func(tag byte, data []byte)) {
		for tag, data := range full {
			field(tag, data)
		}
	})
	if err != nil {
		t.Fatal("complete header:", err)
	}
	if h.Cipher != kdbxcrypt.AES256 {
		t.Errorf("h.Cipher = %v; want AES256", h.Cipher)
	}

	// Dropping any required field fails with MissingFieldError.
	for drop := range full {
		_, err := parseHeaderBytes(t, func(field func(tag byte, data []byte)) {
			for tag, data := range full {
				if tag != drop {
					field(tag, data)
				}
			}
		})
		var missing *MissingFieldError
		if !errors.As(err, &missing) {
			t.Errorf("dropped tag %#02x: error = %v; want MissingFieldError", drop, err)
		}
	}
}

func TestParseHeaderRejects(t *testing.T) {
	tests := []struct {
		name  string
		build func(field func(tag byte, data []byte))
	}{
		{
			name: "reserved compression flag",
			build: func(field func(tag byte, data []byte)) {
				field(headerCompressionFlags, le32(2))
			},
		},
		{
			name: "unknown tag",
			build: func(field func(tag byte, data []byte)) {
				field(0x42, []byte{1, 2, 3})
			},
		},
		{
			name: "short master seed",
			build: func(field func(tag byte, data []byte)) {
				field(headerMasterSeed, make([]byte, 16))
			},
		},
		{
			name: "oversized IV",
			build: func(field func(tag byte, data []byte)) {
				field(headerEncryptionIV, make([]byte, 32))
			},
		},
		{
			name: "cipher ID not a UUID",
			build: func(field func(tag byte, data []byte)) {
				field(headerCipherID, []byte{1, 2, 3})
			},
		},
	}
	for _, test := range tests {
		_, err := parseHeaderBytes(t, test.build)
		var malformed *MalformedHeaderError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: parseHeader error = %v; want MalformedHeaderError", test.name, err)
		}
	}
	// An unknown cipher UUID is its own error kind.
	unknown := kdbxcrypt.KdfArgon2d
	_, err := parseHeaderBytes(t, func(field func(tag byte, data []byte)) {
		field(headerCipherID, unknown[:])
	})
	if !errors.Is(err, kdbxcrypt.ErrUnknownCipher) {
		t.Errorf("unknown cipher: error = %v; want ErrUnknownCipher", err)
	}
}
