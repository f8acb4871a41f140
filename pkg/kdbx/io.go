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
	"encoding/binary"
	"io"
)

// reader wraps an io.Reader with little-endian helpers that latch the
// first error.  Callers check r.err once after a run of reads.
type reader struct {
	r   io.Reader
	err error
}

func (r *reader) readFull(p []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, p)
}

func (r *reader) readBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, r.err = io.ReadFull(r.r, buf); r.err != nil {
		return nil
	}
	return buf
}

func (r *reader) readByte() byte {
	var buf [1]byte
	r.readFull(buf[:])
	return buf[0]
}

func (r *reader) readUint16() uint16 {
	var buf [2]byte
	r.readFull(buf[:])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(buf[:])
}

func (r *reader) readUint32() uint32 {
	var buf [4]byte
	r.readFull(buf[:])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func (r *reader) readUint64() uint64 {
	var buf [8]byte
	r.readFull(buf[:])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func leUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func putLeUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *writer) writeByte(b byte) {
	w.write([]byte{b})
}

func (w *writer) writeUint16(i uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], i)
	w.write(buf[:])
}

func (w *writer) writeUint32(i uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], i)
	w.write(buf[:])
}

func (w *writer) writeUint64(i uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], i)
	w.write(buf[:])
}
