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
	"fmt"
	"io"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
	"zombiezen.com/go/kdbx/pkg/uuids"
)

// Outer header field tags.
const (
	headerEnd              byte = 0x00
	headerComment          byte = 0x01
	headerCipherID         byte = 0x02
	headerCompressionFlags byte = 0x03
	headerMasterSeed       byte = 0x04
	headerTransformSeed    byte = 0x05 // KDBX 3
	headerTransformRounds  byte = 0x06 // KDBX 3
	headerEncryptionIV     byte = 0x07
	headerInnerStreamKey   byte = 0x08 // KDBX 3
	headerStreamStartBytes byte = 0x09 // KDBX 3
	headerInnerStreamID    byte = 0x0A // KDBX 3
	headerKdfParameters    byte = 0x0B // KDBX 4
	headerPublicCustomData byte = 0x0C // KDBX 4
)

// Compression algorithms.
const (
	CompressionNone uint32 = 0
	CompressionGzip uint32 = 1
)

// masterSeedSize is the required length of the master seed.
const masterSeedSize = 32

// A Header holds the outer, unencrypted configuration of an archive.
// It exists between open and unlock; saving regenerates every seed.
type Header struct {
	// Cipher encrypts the database body.
	Cipher kdbxcrypt.Cipher

	// Compression is applied to the body before encryption.
	Compression uint32

	// MasterSeed blinds the derived keys to this database.  Always 32
	// bytes.
	MasterSeed []byte

	// EncryptionIV initializes the body cipher.  8 to 16 bytes.
	EncryptionIV []byte

	// Kdf converts credentials into the master key.
	Kdf kdbxcrypt.KdfParams

	// PublicCustomData carries the raw KDBX 4 plugin dictionary, kept
	// opaquely and re-emitted on save.  Nil when absent.
	PublicCustomData []byte

	// KDBX 3 fields.  The inner stream configuration lives in the outer
	// header in version 3; version 4 moved it to the inner header.
	StreamStartBytes []byte
	InnerStreamID    kdbxcrypt.StreamID
	InnerStreamKey   []byte
}

// headerField is one decoded TLV record.
type headerField struct {
	tag  byte
	data []byte
}

// maxHeaderFieldLen bounds a single outer header field.  Real headers
// are a few hundred bytes; the cap keeps a corrupt length from forcing
// a huge allocation before the checksum can reject the file.
const maxHeaderFieldLen = 1 << 24

// readHeaderFields decodes TLV records until the terminator.  Field
// lengths are 32-bit in version 4 and 16-bit in version 3.
func readHeaderFields(r *reader, majorVersion uint16) ([]headerField, error) {
	var fields []headerField
	for {
		tag := r.readByte()
		var length uint32
		if majorVersion >= 4 {
			length = r.readUint32()
		} else {
			length = uint32(r.readUint16())
		}
		if length > maxHeaderFieldLen {
			return nil, &MalformedHeaderError{Tag: tag, Reason: "field length out of range"}
		}
		data := r.readBytes(int(length))
		if r.err != nil {
			return nil, r.err
		}
		if tag == headerEnd {
			return fields, nil
		}
		fields = append(fields, headerField{tag, data})
	}
}

// parseHeader decodes the outer header fields of one archive.
func parseHeader(r *reader, majorVersion uint16) (*Header, error) {
	fields, err := readHeaderFields(r, majorVersion)
	if err != nil {
		return nil, err
	}
	h := new(Header)
	var (
		haveCipher      bool
		haveCompression bool
		transformSeed   []byte
		transformRounds uint64
		haveRounds      bool
	)
	for _, f := range fields {
		switch f.tag {
		case headerComment:
			// Legacy field, ignored.
		case headerCipherID:
			u, err := uuids.FromSlice(f.data)
			if err != nil {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: "cipher ID is not a UUID"}
			}
			h.Cipher, err = kdbxcrypt.CipherByUUID(u)
			if err != nil {
				return nil, err
			}
			haveCipher = true
		case headerCompressionFlags:
			if len(f.data) != 4 {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: "wrong size for compression flags"}
			}
			h.Compression = leUint32(f.data)
			if h.Compression > CompressionGzip {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: fmt.Sprintf("reserved compression flag %d", h.Compression)}
			}
			haveCompression = true
		case headerMasterSeed:
			if len(f.data) != masterSeedSize {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: fmt.Sprintf("master seed is %d bytes, want %d", len(f.data), masterSeedSize)}
			}
			h.MasterSeed = f.data
		case headerEncryptionIV:
			if len(f.data) < 8 || len(f.data) > 16 {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: "IV must be 8 to 16 bytes"}
			}
			h.EncryptionIV = f.data
		case headerTransformSeed:
			transformSeed = f.data
		case headerTransformRounds:
			if len(f.data) != 8 {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: "wrong size for transform rounds"}
			}
			transformRounds = leUint64(f.data)
			haveRounds = true
		case headerInnerStreamKey:
			h.InnerStreamKey = f.data
		case headerStreamStartBytes:
			h.StreamStartBytes = f.data
		case headerInnerStreamID:
			if len(f.data) != 4 {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: "wrong size for inner stream ID"}
			}
			h.InnerStreamID = kdbxcrypt.StreamID(leUint32(f.data))
		case headerKdfParameters:
			dict, err := parseVariantDict(f.data)
			if err != nil {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: err.Error()}
			}
			h.Kdf, err = kdfFromDict(dict)
			if err != nil {
				return nil, err
			}
		case headerPublicCustomData:
			if _, err := parseVariantDict(f.data); err != nil {
				return nil, &MalformedHeaderError{Tag: f.tag, Reason: err.Error()}
			}
			h.PublicCustomData = f.data
		default:
			return nil, &MalformedHeaderError{Tag: f.tag, Reason: "unknown field tag"}
		}
	}
	if h.Kdf == nil && transformSeed != nil && haveRounds {
		h.Kdf = &kdbxcrypt.AESParams{Rounds: transformRounds, Salt: transformSeed, Legacy: true}
	}
	switch {
	case !haveCipher:
		return nil, &MissingFieldError{Field: "CipherId"}
	case !haveCompression:
		return nil, &MissingFieldError{Field: "CompressionFlags"}
	case h.MasterSeed == nil:
		return nil, &MissingFieldError{Field: "MasterSeed"}
	case h.EncryptionIV == nil:
		return nil, &MissingFieldError{Field: "EncryptionIv"}
	case h.Kdf == nil:
		return nil, &MissingFieldError{Field: "KdfParameters"}
	}
	return h, nil
}

// write emits the version 4 form of the header.
func (h *Header) write(w *writer) {
	writeField := func(tag byte, data []byte) {
		w.writeByte(tag)
		w.writeUint32(uint32(len(data)))
		w.write(data)
	}
	cipherID := h.Cipher.UUID()
	writeField(headerCipherID, cipherID[:])
	var compression [4]byte
	putLeUint32(compression[:], h.Compression)
	writeField(headerCompressionFlags, compression[:])
	writeField(headerMasterSeed, h.MasterSeed)
	writeField(headerEncryptionIV, h.EncryptionIV)
	writeField(headerKdfParameters, kdfToDict(h.Kdf).encode())
	if h.PublicCustomData != nil {
		writeField(headerPublicCustomData, h.PublicCustomData)
	}
	writeField(headerEnd, nil)
}

// Variant dictionary keys for KDF parameters.
const (
	kdfKeyUUID       = "$UUID"
	kdfKeyRounds     = "R"
	kdfKeySalt       = "S"
	kdfKeyMemory     = "M"
	kdfKeyVersion    = "V"
	kdfKeyIterations = "I"
	kdfKeyLanes      = "P"
)

// kdfFromDict converts a KdfParameters dictionary into typed KDF
// parameters, dispatching on the $UUID entry.
func kdfFromDict(d *VariantDict) (kdbxcrypt.KdfParams, error) {
	malformed := func(reason string) error {
		return &MalformedHeaderError{Tag: headerKdfParameters, Reason: reason}
	}
	rawUUID, ok := d.bytesValue(kdfKeyUUID)
	if !ok {
		return nil, malformed("no $UUID for KDF parameters")
	}
	u, err := uuids.FromSlice(rawUUID)
	if err != nil {
		return nil, malformed("KDF $UUID is not a UUID")
	}
	switch u {
	case kdbxcrypt.KdfAESKdbx31, kdbxcrypt.KdfAESKdbx4:
		rounds, ok := d.uint64Value(kdfKeyRounds)
		if !ok {
			return nil, malformed("AES KDF is missing rounds (R)")
		}
		salt, ok := d.bytesValue(kdfKeySalt)
		if !ok {
			return nil, malformed("AES KDF is missing salt (S)")
		}
		return &kdbxcrypt.AESParams{Rounds: rounds, Salt: salt, Legacy: u == kdbxcrypt.KdfAESKdbx31}, nil
	case kdbxcrypt.KdfArgon2d, kdbxcrypt.KdfArgon2id:
		p := &kdbxcrypt.Argon2Params{ID: u == kdbxcrypt.KdfArgon2id}
		var ok bool
		if p.Version, ok = d.uint32Value(kdfKeyVersion); !ok {
			return nil, malformed("Argon2 KDF is missing version (V)")
		}
		if p.Memory, ok = d.uint64Value(kdfKeyMemory); !ok {
			return nil, malformed("Argon2 KDF is missing memory (M)")
		}
		if p.Iterations, ok = d.uint64Value(kdfKeyIterations); !ok {
			return nil, malformed("Argon2 KDF is missing iterations (I)")
		}
		if p.Lanes, ok = d.uint32Value(kdfKeyLanes); !ok {
			return nil, malformed("Argon2 KDF is missing lanes (P)")
		}
		if p.Salt, ok = d.bytesValue(kdfKeySalt); !ok {
			return nil, malformed("Argon2 KDF is missing salt (S)")
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %v", kdbxcrypt.ErrUnknownKdf, u)
	}
}

// kdfToDict converts typed KDF parameters back into their dictionary
// form for the header.
func kdfToDict(params kdbxcrypt.KdfParams) *VariantDict {
	d := new(VariantDict)
	u := params.UUID()
	d.Set(kdfKeyUUID, VarBytes(u[:]))
	switch p := params.(type) {
	case *kdbxcrypt.AESParams:
		d.Set(kdfKeyRounds, VarUint64(p.Rounds))
		d.Set(kdfKeySalt, VarBytes(p.Salt))
	case *kdbxcrypt.Argon2Params:
		d.Set(kdfKeyMemory, VarUint64(p.Memory))
		d.Set(kdfKeyVersion, VarUint32(p.Version))
		d.Set(kdfKeySalt, VarBytes(p.Salt))
		d.Set(kdfKeyIterations, VarUint64(p.Iterations))
		d.Set(kdfKeyLanes, VarUint32(p.Lanes))
	default:
		panic(fmt.Sprintf("kdbx: unknown KDF parameter type %T", params))
	}
	return d
}

// teeReader accumulates every byte read through it, so the header codec
// can capture the exact bytes covered by the checksum and HMAC.
type teeReader struct {
	r   io.Reader
	buf bytes.Buffer
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf.Write(p[:n])
	return n, err
}
