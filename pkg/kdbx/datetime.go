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
	"encoding/binary"
	"strings"
	"time"
)

// epochOffset is the Unix timestamp of 0001-01-01T00:00:00Z, the epoch
// KDBX 4 datetimes count seconds from.  The arithmetic runs on Unix
// seconds because a time.Duration cannot span two millennia.
var epochOffset = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

// encodeTime renders t in the KDBX 4 form: base64 of the little-endian
// signed second count since year 1.
func encodeTime(t time.Time) string {
	seconds := t.UTC().Unix() - epochOffset
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seconds))
	return base64.StdEncoding.EncodeToString(b[:])
}

// decodeTime parses either encoding found in the wild: ISO-8601 text
// (KDBX 3) or the base64 second count (KDBX 4).  A dash distinguishes
// the two, since base64 has none.
func decodeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if containsDash(s) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, &SchemaError{Element: "Times", Reason: "invalid ISO-8601 datetime " + s}
		}
		return t.UTC(), nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) > 8 {
		return time.Time{}, &SchemaError{Element: "Times", Reason: "invalid base64 datetime " + s}
	}
	var b [8]byte
	copy(b[:], raw)
	seconds := int64(binary.LittleEndian.Uint64(b[:]))
	return time.Unix(seconds+epochOffset, 0).UTC(), nil
}

func containsDash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			return true
		}
	}
	return false
}
