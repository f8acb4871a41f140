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

// Package uuids provides the 128-bit identifiers used throughout the
// KDBX format: as entry and group identifiers, and as the selectors for
// ciphers and key derivation functions.
package uuids // import "zombiezen.com/go/kdbx/pkg/uuids"

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
)

// A UUID is a universally unique identifier: a 128-bit value.
// KDBX stores UUIDs as their raw 16 bytes; the dashed hex form is used
// only for display and for the well-known cipher and KDF constants.
type UUID [16]byte

// Parse parses a hex-encoded UUID string (that may contain dashes) into a UUID.
func Parse(s string) (UUID, error) {
	b := []byte(s)
	n := 0
	for i := 0; i < len(b); i++ {
		if b[i] != '-' {
			b[n] = b[i]
			n++
		}
	}
	b = b[:n]
	var u UUID
	if len(b) != hex.EncodedLen(len(u)) {
		return UUID{}, parseError{s, errSize}
	}
	_, err := hex.Decode(u[:], b)
	if err != nil {
		return UUID{}, parseError{s, err}
	}
	return u, nil
}

// MustParse is like Parse but panics on malformed input.  It is intended
// for the package-level cipher and KDF constants.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// FromSlice converts a 16-byte slice into a UUID.
func FromSlice(b []byte) (UUID, error) {
	var u UUID
	if len(b) != len(u) {
		return UUID{}, errSize
	}
	copy(u[:], b)
	return u, nil
}

var errSize = errors.New("wrong size")

type parseError struct {
	s   string
	err error
}

func (e parseError) Error() string {
	return "uuid: failed to parse " + strconv.Quote(e.s) + ": " + e.err.Error()
}

// New generates a new random UUID using a provided source of random
// bytes.  If r is nil, crypto/rand.Reader is used.  KDBX identifiers are
// plain random bytes; no RFC 4122 version bits are set.
func New(r io.Reader) (UUID, error) {
	if r == nil {
		r = rand.Reader
	}
	var u UUID
	if _, err := io.ReadFull(r, u[:]); err != nil {
		return UUID{}, err
	}
	return u, nil
}

// ParseBase64 decodes the base64 form used for UUIDs inside the KDBX
// XML document.
func ParseBase64(s string) (UUID, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return UUID{}, parseError{s, err}
	}
	return FromSlice(b)
}

// Base64 returns the base64 form used inside the KDBX XML document.
func (u UUID) Base64() string {
	return base64.StdEncoding.EncodeToString(u[:])
}

// AppendHex appends the dash-separated hex representation of u to b
// and returns the extended buffer.
func (u UUID) AppendHex(b []byte) []byte {
	b = appendHex(b, u[:4])
	b = append(b, '-')
	b = appendHex(b, u[4:6])
	b = append(b, '-')
	b = appendHex(b, u[6:8])
	b = append(b, '-')
	b = appendHex(b, u[8:10])
	b = append(b, '-')
	b = appendHex(b, u[10:])
	return b
}

func appendHex(b, src []byte) []byte {
	i := len(b)
	n := hex.EncodedLen(len(src))
	for j := 0; j < n; j++ {
		b = append(b, 0)
	}
	hex.Encode(b[i:], src)
	return b
}

// IsZero reports whether this is the zero UUID.
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// String returns the dash-separated hex representation of u as a string.
func (u UUID) String() string {
	b := make([]byte, 0, 36)
	b = u.AppendHex(b)
	return string(b)
}
