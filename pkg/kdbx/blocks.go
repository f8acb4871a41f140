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
	"bytes"
	"crypto/sha256"
	"io"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

// blockSplitSize is how much ciphertext one body block carries on
// write.  Readers accept any block size.
const blockSplitSize = 1024 * 1024

// readHMACBlocks reassembles the KDBX 4 body from its HMAC-framed
// blocks.  Every block is authenticated, including the empty
// terminator.  Block boundaries carry no cipher significance; the
// result is the full ciphertext.
func readHMACBlocks(r io.Reader, key *kdbxcrypt.HMACKey) ([]byte, error) {
	rr := &reader{r: r}
	var body []byte
	for index := uint64(0); ; index++ {
		mac := rr.readBytes(sha256.Size)
		length := rr.readUint32()
		data := rr.readBytes(int(length))
		if rr.err != nil {
			return nil, rr.err
		}
		if !key.VerifyBlockHMAC(index, data, mac) {
			return nil, &IntegrityError{What: "block HMAC mismatch", Block: int64(index)}
		}
		if length == 0 {
			return body, nil
		}
		body = append(body, data...)
	}
}

// writeHMACBlocks frames ciphertext into authenticated blocks followed
// by the empty terminator block.
func writeHMACBlocks(w *writer, ciphertext []byte, key *kdbxcrypt.HMACKey) {
	index := uint64(0)
	for len(ciphertext) > 0 {
		n := len(ciphertext)
		if n > blockSplitSize {
			n = blockSplitSize
		}
		writeHMACBlock(w, index, ciphertext[:n], key)
		ciphertext = ciphertext[n:]
		index++
	}
	writeHMACBlock(w, index, nil, key)
}

func writeHMACBlock(w *writer, index uint64, data []byte, key *kdbxcrypt.HMACKey) {
	mac := key.BlockHMAC(index, data)
	w.write(mac[:])
	w.writeUint32(uint32(len(data)))
	w.write(data)
}

// readHashedBlocks reassembles a KDBX 3 plaintext from its SHA-256
// framed blocks.  Each block carries a 32-bit id, the hash of its
// payload, and the payload length; a zero-length block terminates the
// stream.
func readHashedBlocks(b []byte) ([]byte, error) {
	rr := &reader{r: bytes.NewReader(b)}
	var body []byte
	for {
		id := rr.readUint32()
		hash := rr.readBytes(sha256.Size)
		length := rr.readUint32()
		data := rr.readBytes(int(length))
		if rr.err != nil {
			return nil, rr.err
		}
		if length == 0 {
			return body, nil
		}
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], hash) {
			return nil, &IntegrityError{What: "block hash mismatch", Block: int64(id)}
		}
		body = append(body, data...)
	}
}
