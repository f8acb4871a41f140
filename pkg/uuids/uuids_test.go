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

package uuids

import (
	"testing"

	"zombiezen.com/go/kdbx/pkg/fakerand"
)

func TestParse(t *testing.T) {
	tests := []struct {
		s    string
		want UUID
		err  bool
	}{
		{
			s:    "31c1f2e6-bf71-4350-be58-05216afc5aff",
			want: UUID{0x31, 0xc1, 0xf2, 0xe6, 0xbf, 0x71, 0x43, 0x50, 0xbe, 0x58, 0x05, 0x21, 0x6a, 0xfc, 0x5a, 0xff},
		},
		{
			s:    "31c1f2e6bf714350be5805216afc5aff",
			want: UUID{0x31, 0xc1, 0xf2, 0xe6, 0xbf, 0x71, 0x43, 0x50, 0xbe, 0x58, 0x05, 0x21, 0x6a, 0xfc, 0x5a, 0xff},
		},
		{s: "", err: true},
		{s: "31c1f2e6-bf71-4350-be58", err: true},
		{s: "zzc1f2e6-bf71-4350-be58-05216afc5aff", err: true},
	}
	for _, test := range tests {
		u, err := Parse(test.s)
		if test.err {
			if err == nil {
				t.Errorf("Parse(%q) = %v; want error", test.s, u)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", test.s, err)
			continue
		}
		if u != test.want {
			t.Errorf("Parse(%q) = %v; want %v", test.s, u, test.want)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	const s = "d6038a2b-8b6f-4cb5-a524-339a31dbb59a"
	u, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if got := u.String(); got != s {
		t.Errorf("u.String() = %q; want %q", got, s)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	u, err := New(fakerand.New())
	if err != nil {
		t.Fatal("New:", err)
	}
	got, err := ParseBase64(u.Base64())
	if err != nil {
		t.Fatalf("ParseBase64(%q): %v", u.Base64(), err)
	}
	if got != u {
		t.Errorf("ParseBase64(u.Base64()) = %v; want %v", got, u)
	}
}

func TestNewDifferentIDs(t *testing.T) {
	r := fakerand.New()
	u1, err := New(r)
	if err != nil {
		t.Fatal("New #1:", err)
	}
	u2, err := New(r)
	if err != nil {
		t.Fatal("New #2:", err)
	}
	if u1 == u2 {
		t.Errorf("New(r) == New(r) (%v); want different", u1)
	}
}
