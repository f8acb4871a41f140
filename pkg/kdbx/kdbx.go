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
	"compress/gzip"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
	"zombiezen.com/go/kdbx/pkg/uuids"
)

// File magic numbers.
const (
	magicKeePass uint32 = 0x9AA2D903
	magicKdbx    uint32 = 0xB54BFB67
)

// generator is the name written to Meta/Generator for new databases.
const generator = "kdbx"

// A File is a locked archive: parsed header, raw encrypted body, and
// the integrity fields needed to verify both.
type File struct {
	header     Header
	headerData []byte
	major      uint16
	minor      uint16
	headerHMAC []byte
	body       []byte
}

// Open reads a locked archive from the named file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader reads a locked archive from r.  The header is parsed and,
// for version 4, its keyless checksum verified; the body stays encrypted
// until Unlock.
func FromReader(r io.Reader) (*File, error) {
	tee := &teeReader{r: r}
	rr := &reader{r: tee}

	sig1 := rr.readUint32()
	sig2 := rr.readUint32()
	minor := rr.readUint16()
	major := rr.readUint16()
	if rr.err != nil {
		return nil, rr.err
	}
	if sig1 != magicKeePass || sig2 != magicKdbx {
		return nil, ErrMagic
	}
	if major < 3 || major > 4 {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}

	header, err := parseHeader(rr, major)
	if err != nil {
		return nil, err
	}
	f := &File{
		header:     *header,
		headerData: append([]byte(nil), tee.buf.Bytes()...),
		major:      major,
		minor:      minor,
	}

	rest := &reader{r: r}
	if major >= 4 {
		headerSHA := rest.readBytes(sha256.Size)
		f.headerHMAC = rest.readBytes(sha256.Size)
		if rest.err != nil {
			return nil, rest.err
		}
		sum := sha256.Sum256(f.headerData)
		if !bytes.Equal(sum[:], headerSHA) {
			return nil, &IntegrityError{What: "header checksum mismatch", Block: headerBlock}
		}
	}
	f.body, err = io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Header returns the archive's outer header.
func (f *File) Header() *Header {
	return &f.header
}

// Version returns the archive's major and minor format version.
func (f *File) Version() (major, minor uint16) {
	return f.major, f.minor
}

// Unlock decrypts the archive with the credentials in opts and parses
// the password tree.  Wrong credentials surface as ErrWrongKey; any
// other failure means the archive is malformed or corrupt.
func (f *File) Unlock(opts *Options) (*Database, error) {
	key, err := opts.key()
	if err != nil {
		return nil, err
	}
	composite, err := key.Compute()
	if err != nil {
		return nil, err
	}
	masterKey, err := f.header.Kdf.DeriveKey(composite)
	if err != nil {
		return nil, err
	}

	var (
		plain *plainBody
		ih    *innerHeader
	)
	if f.major >= 4 {
		plain, ih, err = f.decryptV4(masterKey)
	} else {
		plain, ih, err = f.decryptV3(masterKey)
	}
	if err != nil {
		return nil, err
	}

	stream, err := kdbxcrypt.NewStream(ih.streamID, ih.streamKey)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(plain.xml, stream)
	if err != nil {
		return nil, err
	}
	if f.major < 4 {
		if err := f.checkHeaderHash(doc.headerHash); err != nil {
			return nil, err
		}
	}

	db := &Database{
		Meta:             doc.meta,
		Root:             doc.root,
		Binaries:         ih.binaries,
		rawXML:           plain.xml,
		cipher:           f.header.Cipher,
		compression:      f.header.Compression,
		kdf:              f.header.Kdf,
		innerStream:      ih.streamID,
		publicCustomData: f.header.PublicCustomData,
		key:              key,
		rand:             opts.getRand(),
	}
	if db.Root == nil {
		db.Root = &Group{}
	}
	return db, nil
}

// plainBody is the decrypted, decompressed body minus the inner header.
type plainBody struct {
	xml []byte
}

func (f *File) decryptV4(masterKey []byte) (*plainBody, *innerHeader, error) {
	hmacKey := kdbxcrypt.NewHMACKey(f.header.MasterSeed, masterKey)
	if !hmacKey.VerifyHeaderHMAC(f.headerData, f.headerHMAC) {
		return nil, nil, ErrWrongKey
	}
	ciphertext, err := readHMACBlocks(bytes.NewReader(f.body), &hmacKey)
	if err != nil {
		return nil, nil, err
	}
	cipherKey := kdbxcrypt.CipherKey(f.header.MasterSeed, masterKey)
	plaintext, err := f.header.Cipher.Decrypt(cipherKey[:f.header.Cipher.KeySize()], f.header.EncryptionIV, ciphertext)
	if err != nil {
		// The HMAC already authenticated this data, so a cipher or
		// padding failure is corruption rather than a wrong key.
		return nil, nil, &IntegrityError{What: err.Error(), Block: headerBlock}
	}
	plaintext, err = decompress(plaintext, f.header.Compression)
	if err != nil {
		return nil, nil, err
	}
	buf := bytes.NewReader(plaintext)
	ih, err := parseInnerHeader(&reader{r: buf})
	if err != nil {
		return nil, nil, err
	}
	xmlData, err := io.ReadAll(buf)
	if err != nil {
		return nil, nil, err
	}
	return &plainBody{xml: xmlData}, ih, nil
}

func (f *File) decryptV3(masterKey []byte) (*plainBody, *innerHeader, error) {
	if f.header.StreamStartBytes == nil {
		return nil, nil, &MissingFieldError{Field: "StreamStartBytes"}
	}
	if f.header.InnerStreamKey == nil {
		return nil, nil, &MissingFieldError{Field: "ProtectedStreamKey"}
	}
	cipherKey := kdbxcrypt.CipherKey(f.header.MasterSeed, masterKey)
	plaintext, err := f.header.Cipher.Decrypt(cipherKey[:f.header.Cipher.KeySize()], f.header.EncryptionIV, f.body)
	if err != nil {
		// Version 3 has no HMAC; a padding failure is the usual
		// wrong-password signal.
		return nil, nil, ErrWrongKey
	}
	start := f.header.StreamStartBytes
	if len(plaintext) < len(start) || !bytes.Equal(plaintext[:len(start)], start) {
		return nil, nil, ErrWrongKey
	}
	body, err := readHashedBlocks(plaintext[len(start):])
	if err != nil {
		return nil, nil, err
	}
	body, err = decompress(body, f.header.Compression)
	if err != nil {
		return nil, nil, err
	}
	ih := &innerHeader{
		streamID:  f.header.InnerStreamID,
		streamKey: f.header.InnerStreamKey,
	}
	return &plainBody{xml: body}, ih, nil
}

// checkHeaderHash verifies the Meta/HeaderHash element a version 3
// archive stores inside the encrypted document as tamper evidence.
func (f *File) checkHeaderHash(headerHash []byte) error {
	if headerHash == nil {
		return nil
	}
	sum := sha256.Sum256(f.headerData)
	if !bytes.Equal(sum[:], headerHash) {
		return &IntegrityError{What: "header hash mismatch", Block: headerBlock}
	}
	return nil
}

func decompress(body []byte, compression uint32) ([]byte, error) {
	if compression == CompressionNone {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return out, nil
}

// New creates a new empty database encrypted with the credentials and
// parameters in opts.
func New(opts *Options) (*Database, error) {
	key, err := opts.key()
	if err != nil {
		return nil, err
	}
	if _, err := key.Compute(); err != nil {
		return nil, err
	}
	rootUUID, err := uuids.New(opts.getRand())
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	db := &Database{
		Meta: Meta{
			Generator:        generator,
			MemoryProtection: MemoryProtection{Password: true},
		},
		Root: &Group{
			UUID: rootUUID,
			Name: "Root",
			Times: Times{
				CreationTime:         now,
				LastModificationTime: now,
				LastAccessTime:       now,
				ExpiryTime:           now,
				LocationChanged:      now,
			},
		},
		cipher:      opts.getCipher(),
		compression: opts.getCompression(),
		kdf:         opts.getKdf(),
		innerStream: opts.getInnerStream(),
		key:         key,
		rand:        opts.getRand(),
	}
	return db, nil
}

// NewEntry creates an entry with a fresh UUID from the database's
// random source.
func (db *Database) NewEntry() (*Entry, error) {
	id, err := uuids.New(db.rand)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	return &Entry{
		UUID: id,
		Times: Times{
			CreationTime:         now,
			LastModificationTime: now,
			LastAccessTime:       now,
			ExpiryTime:           now,
			LocationChanged:      now,
		},
	}, nil
}

// NewGroup creates a group with a fresh UUID from the database's
// random source.
func (db *Database) NewGroup(name string) (*Group, error) {
	id, err := uuids.New(db.rand)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	return &Group{
		UUID: id,
		Name: name,
		Times: Times{
			CreationTime:         now,
			LastModificationTime: now,
			LastAccessTime:       now,
			ExpiryTime:           now,
			LocationChanged:      now,
		},
	}, nil
}

// Write encrypts the database as a KDBX 4 archive.  Every save draws a
// fresh master seed, IV, KDF salt, and inner stream key from the
// database's random source.  On failure the output may hold a partial
// archive; callers should write to a temporary path and rename.
func (db *Database) Write(w io.Writer) error {
	if db.key == nil {
		return kdbxcrypt.ErrNoCredential
	}
	if db.rand == nil {
		db.rand = rand.Reader
	}
	if db.kdf == nil {
		db.kdf = defaultKdf()
	}
	if db.innerStream == 0 {
		db.innerStream = kdbxcrypt.StreamChaCha20
	}
	rr := &reader{r: db.rand}
	masterSeed := rr.readBytes(masterSeedSize)
	iv := rr.readBytes(db.cipher.IVSize())
	innerKeySize := 32
	if db.innerStream == kdbxcrypt.StreamChaCha20 {
		innerKeySize = 44
	}
	innerKey := rr.readBytes(innerKeySize)
	if rr.err != nil {
		return rr.err
	}
	if err := db.kdf.RegenerateSalt(db.rand); err != nil {
		return err
	}

	composite, err := db.key.Compute()
	if err != nil {
		return err
	}
	masterKey, err := db.kdf.DeriveKey(composite)
	if err != nil {
		return err
	}

	header := Header{
		Cipher:           db.cipher,
		Compression:      db.compression,
		MasterSeed:       masterSeed,
		EncryptionIV:     iv,
		Kdf:              db.kdf,
		PublicCustomData: db.publicCustomData,
	}
	var headerBuf bytes.Buffer
	hw := &writer{w: &headerBuf}
	hw.writeUint32(magicKeePass)
	hw.writeUint32(magicKdbx)
	hw.writeUint16(0) // minor version
	hw.writeUint16(4) // major version
	header.write(hw)
	if hw.err != nil {
		return hw.err
	}
	headerData := headerBuf.Bytes()

	ih := &innerHeader{
		streamID:  db.innerStream,
		streamKey: innerKey,
		binaries:  db.Binaries,
	}
	stream, err := kdbxcrypt.NewStream(ih.streamID, ih.streamKey)
	if err != nil {
		return err
	}
	var plainBuf bytes.Buffer
	pw := &writer{w: &plainBuf}
	ih.write(pw)
	if pw.err != nil {
		return pw.err
	}
	if err := writeDocument(&plainBuf, db, stream); err != nil {
		return err
	}
	plaintext := plainBuf.Bytes()
	if db.compression == CompressionGzip {
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		if _, err := zw.Write(plaintext); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		plaintext = zbuf.Bytes()
	}

	cipherKey := kdbxcrypt.CipherKey(masterSeed, masterKey)
	ciphertext, err := db.cipher.Encrypt(cipherKey[:db.cipher.KeySize()], iv, plaintext)
	if err != nil {
		return err
	}

	hmacKey := kdbxcrypt.NewHMACKey(masterSeed, masterKey)
	headerSHA := sha256.Sum256(headerData)
	headerHMAC := hmacKey.HeaderHMAC(headerData)

	ww := &writer{w: w}
	ww.write(headerData)
	ww.write(headerSHA[:])
	ww.write(headerHMAC[:])
	writeHMACBlocks(ww, ciphertext, &hmacKey)
	return ww.err
}
