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

// Package pwgen generates random passwords from a character set.
package pwgen

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

// Character sets.
const (
	UpperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	LowerLetters = "abcdefghijklmnopqrstuvwxyz"
	Digits       = "0123456789"
	Symbols      = "!@#$%^&*-_=+"
)

// DefaultSet is letters and digits.
const DefaultSet = UpperLetters + LowerLetters + Digits

var errEmptySet = errors.New("pwgen: empty character set")

// Generate returns a password of n characters drawn uniformly from
// set.  If r is nil, crypto/rand.Reader is used.
func Generate(n int, set string, r io.Reader) (string, error) {
	if len(set) == 0 {
		return "", errEmptySet
	}
	if r == nil {
		r = rand.Reader
	}
	pw := make([]byte, n)
	for i := range pw {
		j, err := randInt(r, len(set))
		if err != nil {
			return "", err
		}
		pw[i] = set[j]
	}
	return string(pw), nil
}

// randInt returns a uniform random integer in [0, n) without modulo
// bias.
func randInt(r io.Reader, n int) (int, error) {
	bign, err := rand.Int(r, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(bign.Int64()), nil
}
