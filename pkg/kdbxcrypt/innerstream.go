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

package kdbxcrypt

import (
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"
)

// StreamID identifies the inner stream cipher protecting values inside
// the decrypted XML document.
type StreamID uint32

// Inner stream cipher identifiers.
const (
	StreamNone     StreamID = 0
	StreamArcFour  StreamID = 1
	StreamSalsa20  StreamID = 2
	StreamChaCha20 StreamID = 3
)

// String returns the stream cipher's conventional name.
func (id StreamID) String() string {
	switch id {
	case StreamNone:
		return "None"
	case StreamArcFour:
		return "ArcFourVariant"
	case StreamSalsa20:
		return "Salsa20"
	case StreamChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("StreamID(%d)", uint32(id))
	}
}

// salsaNonce is the fixed nonce the format prescribes for the Salsa20
// inner stream.
var salsaNonce = [8]byte{0xe8, 0x30, 0x09, 0x4b, 0x97, 0x20, 0x5d, 0x2a}

// arcFourDrop is the number of leading keystream bytes the
// ArcFourVariant cipher discards.
const arcFourDrop = 512

// A Stream is a stateful keystream applied to protected values in
// document order.  Apply XORs the keystream into b in place; successive
// calls continue the stream.
type Stream interface {
	Apply(b []byte)
}

// NewStream seeds an inner stream cipher from the inner stream key.
// The same id and key always produce the same keystream, which is what
// makes document-order processing reversible.
func NewStream(id StreamID, key []byte) (Stream, error) {
	switch id {
	case StreamNone:
		// Some exports carry no inner encryption at all.
		return nullStream{}, nil
	case StreamChaCha20:
		h := sha512.Sum512(key)
		c, err := chacha20.NewUnauthenticatedCipher(h[:32], h[32:44])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipherParams, err)
		}
		return chachaStream{c}, nil
	case StreamSalsa20:
		s := &salsaStream{}
		s.key = sha256.Sum256(key)
		return s, nil
	case StreamArcFour:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCipherParams, err)
		}
		var drop [arcFourDrop]byte
		c.XORKeyStream(drop[:], drop[:])
		return arcFourStream{c}, nil
	default:
		return nil, fmt.Errorf("%w: inner stream id %d", ErrUnknownCipher, uint32(id))
	}
}

type nullStream struct{}

func (nullStream) Apply(b []byte) {}

type chachaStream struct {
	c *chacha20.Cipher
}

func (s chachaStream) Apply(b []byte) {
	s.c.XORKeyStream(b, b)
}

// salsaStream keeps an explicit block counter so the keystream survives
// arbitrary Apply boundaries.  The salsa core works on whole 64-byte
// blocks, so leftover keystream carries over between calls.
type salsaStream struct {
	key     [32]byte
	counter uint64
	stream  []byte
}

func (s *salsaStream) Apply(b []byte) {
	for len(b) > 0 {
		if len(s.stream) == 0 {
			s.refill()
		}
		n := len(b)
		if n > len(s.stream) {
			n = len(s.stream)
		}
		for i := 0; i < n; i++ {
			b[i] ^= s.stream[i]
		}
		s.stream = s.stream[n:]
		b = b[n:]
	}
}

func (s *salsaStream) refill() {
	var counter [16]byte
	copy(counter[:8], salsaNonce[:])
	binary.LittleEndian.PutUint64(counter[8:], s.counter)
	var zero, block [64]byte
	salsa.XORKeyStream(block[:], zero[:], &counter, &s.key)
	buf := make([]byte, 64)
	copy(buf, block[:])
	s.stream = buf
	s.counter++
}

type arcFourStream struct {
	c *rc4.Cipher
}

func (s arcFourStream) Apply(b []byte) {
	s.c.XORKeyStream(b, b)
}
