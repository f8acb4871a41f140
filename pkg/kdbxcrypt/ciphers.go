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
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/twofish"

	"zombiezen.com/go/kdbx/pkg/uuids"
)

// Body cipher identifiers.
var (
	CipherAES128UUID   = uuids.MustParse("61ab05a1-9464-41c3-8d74-3a563df8dd35")
	CipherAES256UUID   = uuids.MustParse("31c1f2e6-bf71-4350-be58-05216afc5aff")
	CipherTwoFishUUID  = uuids.MustParse("ad68f29f-576f-4bb9-a36a-d47af965346c")
	CipherChaCha20UUID = uuids.MustParse("d6038a2b-8b6f-4cb5-a524-339a31dbb59a")
)

// Errors
var (
	ErrUnknownCipher = errors.New("kdbxcrypt: unknown cipher")
	ErrCipherParams  = errors.New("kdbxcrypt: bad cipher key or IV")
	ErrPadding       = errors.New("kdbxcrypt: bad padding")
	ErrBlockSize     = errors.New("kdbxcrypt: data size not a multiple of cipher block size")
)

// Cipher is a body cipher algorithm.
type Cipher int

// Available body ciphers.
const (
	AES256 Cipher = iota
	AES128
	TwoFish
	ChaCha20
)

// CipherByUUID maps a cipher identifier from the outer header to a
// Cipher.  Unknown identifiers return ErrUnknownCipher.
func CipherByUUID(u uuids.UUID) (Cipher, error) {
	switch u {
	case CipherAES256UUID:
		return AES256, nil
	case CipherAES128UUID:
		return AES128, nil
	case CipherTwoFishUUID:
		return TwoFish, nil
	case CipherChaCha20UUID:
		return ChaCha20, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownCipher, u)
	}
}

// UUID returns the cipher's wire identifier.
func (c Cipher) UUID() uuids.UUID {
	switch c {
	case AES256:
		return CipherAES256UUID
	case AES128:
		return CipherAES128UUID
	case TwoFish:
		return CipherTwoFishUUID
	case ChaCha20:
		return CipherChaCha20UUID
	default:
		panic("kdbxcrypt: invalid cipher")
	}
}

// String returns the cipher's conventional name.
func (c Cipher) String() string {
	switch c {
	case AES256:
		return "AES-256-CBC"
	case AES128:
		return "AES-128-CBC"
	case TwoFish:
		return "TwoFish-CBC"
	case ChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("Cipher(%d)", int(c))
	}
}

// KeySize returns the cipher's key length in bytes.  The derived cipher
// key is truncated to this length.
func (c Cipher) KeySize() int {
	if c == AES128 {
		return 16
	}
	return 32
}

// IVSize returns the cipher's IV or nonce length in bytes.
func (c Cipher) IVSize() int {
	if c == ChaCha20 {
		return chacha20.NonceSize
	}
	return aes.BlockSize
}

// Encrypt encrypts the whole body plaintext.  CBC ciphers apply PKCS#7
// padding; ChaCha20 is length preserving.
func (c Cipher) Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	switch c {
	case ChaCha20:
		return chachaApply(key, iv, plaintext)
	default:
		block, err := c.newBlockCipher(key)
		if err != nil {
			return nil, err
		}
		if len(iv) != block.BlockSize() {
			return nil, fmt.Errorf("%w: IV is %d bytes, want %d", ErrCipherParams, len(iv), block.BlockSize())
		}
		buf := pkcs7Pad(plaintext, block.BlockSize())
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
		return buf, nil
	}
}

// Decrypt decrypts the whole body ciphertext and, for CBC ciphers,
// strips the PKCS#7 padding.  ErrPadding after an authenticated read
// means corruption; on KDBX 3 it usually means the key is wrong.
func (c Cipher) Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	switch c {
	case ChaCha20:
		return chachaApply(key, iv, ciphertext)
	default:
		block, err := c.newBlockCipher(key)
		if err != nil {
			return nil, err
		}
		if len(iv) != block.BlockSize() {
			return nil, fmt.Errorf("%w: IV is %d bytes, want %d", ErrCipherParams, len(iv), block.BlockSize())
		}
		if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
			return nil, ErrBlockSize
		}
		buf := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, ciphertext)
		return pkcs7Strip(buf, block.BlockSize())
	}
}

func (c Cipher) newBlockCipher(key []byte) (cipher.Block, error) {
	if len(key) != c.KeySize() {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", ErrCipherParams, len(key), c.KeySize())
	}
	switch c {
	case AES256, AES128:
		return aes.NewCipher(key)
	case TwoFish:
		return twofish.NewCipher(key)
	default:
		return nil, ErrUnknownCipher
	}
}

func chachaApply(key, nonce, data []byte) ([]byte, error) {
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipherParams, err)
	}
	buf := make([]byte, len(data))
	stream.XORKeyStream(buf, data)
	return buf, nil
}

// pkcs7Pad appends PKCS#7 padding to align b to blockSize.
func pkcs7Pad(b []byte, blockSize int) []byte {
	pad := blockSize - len(b)%blockSize
	buf := make([]byte, len(b)+pad)
	copy(buf, b)
	for i := len(b); i < len(buf); i++ {
		buf[i] = byte(pad)
	}
	return buf
}

// pkcs7Strip removes PKCS#7 padding.  The result is a subslice of b.
func pkcs7Strip(b []byte, blockSize int) ([]byte, error) {
	n := len(b)
	if n == 0 || n%blockSize != 0 {
		return nil, ErrPadding
	}
	pad := int(b[n-1])
	if pad == 0 || pad > blockSize {
		return nil, ErrPadding
	}
	for _, x := range b[n-pad : n-1] {
		if x != byte(pad) {
			return nil, ErrPadding
		}
	}
	return b[:n-pad], nil
}
