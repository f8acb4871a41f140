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

// Package kdbxcrypt implements the KDBX key hierarchy: credentials are
// hashed into a composite key, a key derivation function stretches the
// composite into the master key, and the master key combines with the
// file's master seed into the body cipher key and the HMAC base key.
package kdbxcrypt // import "zombiezen.com/go/kdbx/pkg/kdbxcrypt"

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aead/argon2d"
	"golang.org/x/crypto/argon2"

	"zombiezen.com/go/kdbx/pkg/uuids"
)

// KDF identifiers.
var (
	KdfAESKdbx31 = uuids.MustParse("c9d9f39a-628a-4460-bf74-0d08c18a4fea")
	KdfAESKdbx4  = uuids.MustParse("7c02bb82-79a7-4ac0-927d-114a00648238")
	KdfArgon2d   = uuids.MustParse("ef636ddf-8c29-444b-91f7-a9a403e30a0c")
	KdfArgon2id  = uuids.MustParse("9e298b19-56db-4773-b23d-fc3ec6f0a1e6")
)

// Errors
var (
	ErrUnknownKdf   = errors.New("kdbxcrypt: unknown key derivation function")
	ErrKdfParams    = errors.New("kdbxcrypt: invalid key derivation parameters")
	ErrNoCredential = errors.New("kdbxcrypt: no credentials given")
)

// Argon2Version is the only Argon2 version the format permits.
const Argon2Version = 0x13

// A Key is the ordered set of credentials combined into the composite key.
// Each component contributes the SHA-256 of its raw bytes, in the fixed
// order password, key file, Windows account.
type Key struct {
	// Password is the raw textual password, or nil if none.
	Password []byte

	// KeyFile is the raw contents of a key file, or nil if none.
	KeyFile []byte

	// WindowsAccount is the raw Windows user account secret, or nil.
	// It is rarely used but remains part of the composite ordering.
	WindowsAccount []byte
}

// A ComputedKey is the 32-byte composite key, the input to the KDF.
type ComputedKey [sha256.Size]byte

// Compute hashes the key's components into the composite key.
func (k *Key) Compute() (ComputedKey, error) {
	h := sha256.New()
	n := 0
	for _, part := range [][]byte{k.Password, k.KeyFile, k.WindowsAccount} {
		if part == nil {
			continue
		}
		p := sha256.Sum256(part)
		h.Write(p[:])
		n++
	}
	if n == 0 {
		return ComputedKey{}, ErrNoCredential
	}
	var ck ComputedKey
	h.Sum(ck[:0])
	return ck, nil
}

// KdfParams describes a key derivation function and its parameters.
// Implementations are AESParams and Argon2Params; the container codec
// dispatches on the UUID at parse time and treats the value uniformly
// afterward.
type KdfParams interface {
	// UUID identifies the KDF on the wire.
	UUID() uuids.UUID

	// DeriveKey stretches the composite key into the 32-byte master key.
	DeriveKey(composite ComputedKey) ([]byte, error)

	// RegenerateSalt replaces the KDF salt with fresh bytes from r.
	// Called once per save so no two archives share a salt.
	RegenerateSalt(r io.Reader) error
}

// AESParams holds the parameters of the AES key derivation function.
type AESParams struct {
	// Rounds of AES encryption applied to the composite key.
	Rounds uint64

	// Salt is the 32-byte AES key used for the transformation, called
	// the transform seed in KDBX 3.
	Salt []byte

	// Legacy marks the KDBX 3.1 variant of the UUID.  The derivation
	// itself is identical.
	Legacy bool
}

// UUID identifies the KDF on the wire.
func (p *AESParams) UUID() uuids.UUID {
	if p.Legacy {
		return KdfAESKdbx31
	}
	return KdfAESKdbx4
}

// DeriveKey stretches the composite key into the 32-byte master key.
func (p *AESParams) DeriveKey(composite ComputedKey) ([]byte, error) {
	if len(p.Salt) != 32 {
		return nil, fmt.Errorf("%w: AES salt is %d bytes, want 32", ErrKdfParams, len(p.Salt))
	}
	var state [sha256.Size]byte
	copy(state[:], composite[:])
	var wg sync.WaitGroup
	wg.Add(2)
	go transformKeyBlock(&wg, state[:aes.BlockSize], p.Salt, p.Rounds)
	go transformKeyBlock(&wg, state[aes.BlockSize:], p.Salt, p.Rounds)
	wg.Wait()
	sum := sha256.Sum256(state[:])
	return sum[:], nil
}

// RegenerateSalt replaces the transform seed with 32 fresh bytes.
func (p *AESParams) RegenerateSalt(r io.Reader) error {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(r, salt); err != nil {
		return err
	}
	p.Salt = salt
	return nil
}

// transformKeyBlock applies rounds of AES encryption keyed by seed to
// the single block buf, in place.
func transformKeyBlock(wg *sync.WaitGroup, buf, seed []byte, rounds uint64) {
	c, err := aes.NewCipher(seed)
	if err != nil {
		// Salt length is validated by the caller.
		panic(err)
	}
	for i := uint64(0); i < rounds; i++ {
		c.Encrypt(buf, buf)
	}
	wg.Done()
}

// Argon2Params holds the parameters of the Argon2d/Argon2id KDF.
type Argon2Params struct {
	// ID selects Argon2id; otherwise Argon2d is used.
	ID bool

	// Version of the Argon2 algorithm; only Argon2Version (0x13) is
	// accepted.
	Version uint32

	// Memory cost in bytes.  The format stores bytes; the Argon2
	// primitives take KiB.
	Memory uint64

	// Iterations (time cost).
	Iterations uint64

	// Lanes (parallelism).
	Lanes uint32

	// Salt for this database.
	Salt []byte
}

// UUID identifies the KDF on the wire.
func (p *Argon2Params) UUID() uuids.UUID {
	if p.ID {
		return KdfArgon2id
	}
	return KdfArgon2d
}

// DeriveKey stretches the composite key into the 32-byte master key.
func (p *Argon2Params) DeriveKey(composite ComputedKey) ([]byte, error) {
	if p.Version != Argon2Version {
		return nil, fmt.Errorf("%w: Argon2 version %#x not supported", ErrKdfParams, p.Version)
	}
	if p.Lanes == 0 || p.Iterations == 0 || p.Memory == 0 {
		return nil, fmt.Errorf("%w: Argon2 costs must be non-zero", ErrKdfParams)
	}
	memKiB := uint32(p.Memory / 1024)
	if p.ID {
		return argon2.IDKey(composite[:], p.Salt, uint32(p.Iterations), memKiB, uint8(p.Lanes), 32), nil
	}
	return argon2d.Key(composite[:], p.Salt, uint32(p.Iterations), memKiB, uint8(p.Lanes), 32), nil
}

// RegenerateSalt replaces the Argon2 salt with 32 fresh bytes.
func (p *Argon2Params) RegenerateSalt(r io.Reader) error {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(r, salt); err != nil {
		return err
	}
	p.Salt = salt
	return nil
}

// CipherKey derives the body cipher key from the file's master seed and
// the KDF output.  Ciphers with shorter keys truncate the result.
func CipherKey(masterSeed, masterKey []byte) [32]byte {
	h := sha256.New()
	h.Write(masterSeed)
	h.Write(masterKey)
	var key [32]byte
	h.Sum(key[:0])
	return key
}

// HMACKey is the 64-byte base key for all HMAC integrity checks in a
// KDBX 4 archive.
type HMACKey [sha512.Size]byte

// NewHMACKey derives the HMAC base key from the master seed and the
// master key.  The trailing 0x01 byte is part of the format.
func NewHMACKey(masterSeed, masterKey []byte) HMACKey {
	h := sha512.New()
	h.Write(masterSeed)
	h.Write(masterKey)
	h.Write([]byte{0x01})
	var key HMACKey
	h.Sum(key[:0])
	return key
}

// headerBlockIndex is the reserved block index for the header HMAC.
const headerBlockIndex = ^uint64(0)

// BlockKey derives the per-block HMAC key for the given block index.
func (k *HMACKey) BlockKey(index uint64) []byte {
	h := sha512.New()
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	h.Write(idx[:])
	h.Write(k[:])
	return h.Sum(nil)
}

// BlockHMAC computes the authentication code for a body block.  The MAC
// covers the block index, the data length, and the data itself.
func (k *HMACKey) BlockHMAC(index uint64, data []byte) [sha256.Size]byte {
	mac := hmac.New(sha256.New, k.BlockKey(index))
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], index)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(data)))
	mac.Write(buf[:])
	mac.Write(data)
	var sum [sha256.Size]byte
	mac.Sum(sum[:0])
	return sum
}

// VerifyBlockHMAC reports whether sum authenticates the body block at
// the given index.  The comparison is constant time.
func (k *HMACKey) VerifyBlockHMAC(index uint64, data, sum []byte) bool {
	want := k.BlockHMAC(index, data)
	return hmac.Equal(want[:], sum)
}

// HeaderHMAC computes the authentication code for the raw header bytes,
// using the reserved header block index.
func (k *HMACKey) HeaderHMAC(header []byte) [sha256.Size]byte {
	mac := hmac.New(sha256.New, k.BlockKey(headerBlockIndex))
	mac.Write(header)
	var sum [sha256.Size]byte
	mac.Sum(sum[:0])
	return sum
}

// VerifyHeaderHMAC reports whether sum authenticates the raw header
// bytes.  A mismatch on an otherwise well-formed archive means the
// credentials are wrong.
func (k *HMACKey) VerifyHeaderHMAC(header, sum []byte) bool {
	want := k.HeaderHMAC(header)
	return hmac.Equal(want[:], sum)
}
