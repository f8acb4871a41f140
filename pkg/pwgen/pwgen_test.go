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

package pwgen

import (
	"strings"
	"testing"

	"zombiezen.com/go/kdbx/pkg/fakerand"
)

func TestGenerate(t *testing.T) {
	pw, err := Generate(32, DefaultSet, fakerand.New())
	if err != nil {
		t.Fatal("Generate:", err)
	}
	if len(pw) != 32 {
		t.Errorf("len(pw) = %d; want 32", len(pw))
	}
	for _, c := range pw {
		if !strings.ContainsRune(DefaultSet, c) {
			t.Errorf("password contains %q, outside the character set", c)
		}
	}
}

func TestGenerateDeterministicWithFixedRand(t *testing.T) {
	pw1, err := Generate(16, DefaultSet, fakerand.NewSeeded(1))
	if err != nil {
		t.Fatal("Generate #1:", err)
	}
	pw2, err := Generate(16, DefaultSet, fakerand.NewSeeded(1))
	if err != nil {
		t.Fatal("Generate #2:", err)
	}
	if pw1 != pw2 {
		t.Errorf("same seed produced %q and %q", pw1, pw2)
	}
}

func TestGenerateEmptySet(t *testing.T) {
	if _, err := Generate(8, "", nil); err == nil {
		t.Error("Generate with empty set did not return an error")
	}
}
