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
	"encoding/base64"
	"testing"
	"time"
)

func TestTimeRoundTrip(t *testing.T) {
	tests := []time.Time{
		time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1, time.December, 31, 23, 59, 59, 0, time.UTC),
		time.Date(1969, time.December, 31, 23, 59, 59, 0, time.UTC),
		time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, time.April, 1, 1, 2, 3, 0, time.UTC),
		time.Date(2999, time.December, 28, 23, 59, 59, 0, time.UTC),
		time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, want := range tests {
		got, err := decodeTime(encodeTime(want))
		if err != nil {
			t.Errorf("decodeTime(encodeTime(%v)): %v", want, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("decodeTime(encodeTime(%v)) = %v", want, got)
		}
	}
}

func TestEncodeTimeEpoch(t *testing.T) {
	// Year 1 is second zero of the format's epoch.
	got := encodeTime(time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC))
	want := base64.StdEncoding.EncodeToString(make([]byte, 8))
	if got != want {
		t.Errorf("encodeTime(epoch) = %q; want %q", got, want)
	}
}

func TestEncodeTimeKnownValue(t *testing.T) {
	// One minute into year 1: trivially auditable second count.
	got := encodeTime(time.Date(1, time.January, 1, 0, 1, 0, 0, time.UTC))
	want := base64.StdEncoding.EncodeToString([]byte{60, 0, 0, 0, 0, 0, 0, 0})
	if got != want {
		t.Errorf("encodeTime(epoch+60s) = %q; want %q", got, want)
	}
}

func TestDecodeTimeISO8601(t *testing.T) {
	got, err := decodeTime("2020-04-01T01:02:03Z")
	if err != nil {
		t.Fatal("decodeTime:", err)
	}
	want := time.Date(2020, time.April, 1, 1, 2, 3, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("decodeTime = %v; want %v", got, want)
	}
}

func TestDecodeTimeErrors(t *testing.T) {
	tests := []string{
		"2020-13-01T01:02:03Z",
		"not base64 at all!!!",
		"AAAAAAAAAAAAAAAA", // 12 bytes decoded, longer than the 8 allowed
	}
	for _, s := range tests {
		if _, err := decodeTime(s); err == nil {
			t.Errorf("decodeTime(%q) did not return an error", s)
		}
	}
}
