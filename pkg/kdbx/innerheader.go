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
	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

// Inner header field tags (KDBX 4 only).
const (
	innerHeaderEnd      byte = 0x00
	innerHeaderStreamID byte = 0x01
	innerHeaderKey      byte = 0x02
	innerHeaderBinary   byte = 0x03
)

// binaryProtectedFlag marks an attachment whose content official
// clients keep encrypted in memory.
const binaryProtectedFlag byte = 0x01

// A Binary is an attachment carried in the KDBX 4 inner header.
type Binary struct {
	// Protected mirrors the attachment's memory-protection flag bit.
	Protected bool

	// Data is the raw attachment content.
	Data []byte
}

// innerHeader is the encrypted header at the start of the decrypted
// body: inner stream configuration plus attachments.
type innerHeader struct {
	streamID  kdbxcrypt.StreamID
	streamKey []byte
	binaries  []Binary
}

// parseInnerHeader decodes the inner header from the decrypted body.
func parseInnerHeader(r *reader) (*innerHeader, error) {
	h := new(innerHeader)
	haveID := false
	for {
		tag := r.readByte()
		length := r.readUint32()
		data := r.readBytes(int(length))
		if r.err != nil {
			return nil, r.err
		}
		switch tag {
		case innerHeaderEnd:
			switch {
			case !haveID:
				return nil, &MissingFieldError{Field: "InnerStreamCipherId", Inner: true}
			case h.streamKey == nil:
				return nil, &MissingFieldError{Field: "InnerStreamKey", Inner: true}
			}
			return h, nil
		case innerHeaderStreamID:
			if len(data) != 4 {
				return nil, &MalformedHeaderError{Tag: tag, Inner: true, Reason: "wrong size for stream cipher ID"}
			}
			h.streamID = kdbxcrypt.StreamID(leUint32(data))
			haveID = true
		case innerHeaderKey:
			h.streamKey = data
		case innerHeaderBinary:
			if len(data) < 1 {
				return nil, &MalformedHeaderError{Tag: tag, Inner: true, Reason: "attachment is missing its flags byte"}
			}
			h.binaries = append(h.binaries, Binary{
				Protected: data[0]&binaryProtectedFlag != 0,
				Data:      data[1:],
			})
		default:
			return nil, &MalformedHeaderError{Tag: tag, Inner: true, Reason: "unknown field tag"}
		}
	}
}

// write emits the inner header at the start of the plaintext body.
func (h *innerHeader) write(w *writer) {
	writeField := func(tag byte, data []byte) {
		w.writeByte(tag)
		w.writeUint32(uint32(len(data)))
		w.write(data)
	}
	var id [4]byte
	putLeUint32(id[:], uint32(h.streamID))
	writeField(innerHeaderStreamID, id[:])
	writeField(innerHeaderKey, h.streamKey)
	for _, bin := range h.binaries {
		data := make([]byte, len(bin.Data)+1)
		if bin.Protected {
			data[0] = binaryProtectedFlag
		}
		copy(data[1:], bin.Data)
		writeField(innerHeaderBinary, data)
	}
	writeField(innerHeaderEnd, nil)
}
