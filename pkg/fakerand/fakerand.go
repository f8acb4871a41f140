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

// Package fakerand provides a deterministic PRNG, suitable for testing.
// It must never be used for real seeds, IVs, or salts.
package fakerand

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"
)

// New returns a reader that produces the same byte sequence every time.
// The reader can be used from multiple goroutines.
func New() io.Reader {
	return NewSeeded(0)
}

// NewSeeded returns a deterministic reader whose output depends on seed.
// Distinct seeds produce independent sequences.
func NewSeeded(seed uint64) io.Reader {
	return &reader{seed: seed}
}

// reader generates its stream by hashing a seed and a block counter.
// The output repeats only after 2^64 blocks, far beyond any test's needs.
type reader struct {
	mu   sync.Mutex
	seed uint64
	ctr  uint64
	buf  []byte
}

func (r *reader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for n < len(p) {
		if len(r.buf) == 0 {
			var block [16]byte
			binary.LittleEndian.PutUint64(block[:8], r.seed)
			binary.LittleEndian.PutUint64(block[8:], r.ctr)
			sum := sha256.Sum256(block[:])
			r.buf = sum[:]
			r.ctr++
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}
