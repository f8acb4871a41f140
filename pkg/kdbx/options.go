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
	"crypto/rand"
	"io"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

// Options is the set of parameters for creating or unlocking a
// database.  Nil is treated the same as the zero value.
type Options struct {
	// Password is an optional textual password.  The empty string means
	// no password component.
	Password string

	// KeyFile is an optional key file whose raw contents become a
	// composite key component.
	KeyFile io.Reader

	// WindowsAccount is an optional Windows user account secret, the
	// third and rarely used composite key component.
	WindowsAccount io.Reader

	// Rand is the random number source for seeds, IVs, salts, and
	// UUIDs.  Defaults to crypto/rand.Reader.  Seeds must come from a
	// cryptographic source; only tests may inject a deterministic one.
	Rand io.Reader

	// Cipher encrypts the database body.  Defaults to AES-256.
	// Only used for creation.
	Cipher kdbxcrypt.Cipher

	// Kdf converts credentials into the master key.  Defaults to
	// Argon2d with 64 MiB memory, 10 iterations, and 2 lanes.
	// Only used for creation.
	Kdf kdbxcrypt.KdfParams

	// Compression is applied to the body before encryption.
	// Defaults to none.  Only used for creation.
	Compression uint32

	// InnerStream protects values inside the XML document.  Defaults to
	// ChaCha20.  Only used for creation.
	InnerStream kdbxcrypt.StreamID
}

func (opts *Options) getRand() io.Reader {
	if opts == nil || opts.Rand == nil {
		return rand.Reader
	}
	return opts.Rand
}

func (opts *Options) getCipher() kdbxcrypt.Cipher {
	if opts == nil {
		return kdbxcrypt.AES256
	}
	return opts.Cipher
}

func (opts *Options) getCompression() uint32 {
	if opts == nil {
		return CompressionNone
	}
	return opts.Compression
}

func (opts *Options) getInnerStream() kdbxcrypt.StreamID {
	if opts == nil || opts.InnerStream == 0 {
		return kdbxcrypt.StreamChaCha20
	}
	return opts.InnerStream
}

func (opts *Options) getKdf() kdbxcrypt.KdfParams {
	if opts == nil || opts.Kdf == nil {
		return defaultKdf()
	}
	return opts.Kdf
}

// defaultKdf is Argon2d with a 64 MiB memory cost.  The salt is drawn
// at save time.
func defaultKdf() kdbxcrypt.KdfParams {
	return &kdbxcrypt.Argon2Params{
		Version:    kdbxcrypt.Argon2Version,
		Memory:     64 * 1024 * 1024,
		Iterations: 10,
		Lanes:      2,
	}
}

// key assembles the composite key components.  The key file and Windows
// account readers are consumed whole.
func (opts *Options) key() (*kdbxcrypt.Key, error) {
	k := new(kdbxcrypt.Key)
	if opts == nil {
		return k, nil
	}
	if opts.Password != "" {
		k.Password = []byte(opts.Password)
	}
	if opts.KeyFile != nil {
		data, err := io.ReadAll(opts.KeyFile)
		if err != nil {
			return nil, err
		}
		k.KeyFile = data
	}
	if opts.WindowsAccount != nil {
		data, err := io.ReadAll(opts.WindowsAccount)
		if err != nil {
			return nil, err
		}
		k.WindowsAccount = data
	}
	return k, nil
}
