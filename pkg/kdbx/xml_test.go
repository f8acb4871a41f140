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
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"zombiezen.com/go/kdbx/pkg/fakerand"
	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
	"zombiezen.com/go/kdbx/pkg/uuids"
)

func testStreamKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 44)
	if _, err := io.ReadFull(fakerand.New(), key); err != nil {
		t.Fatal(err)
	}
	return key
}

func newTestStream(t *testing.T, key []byte) kdbxcrypt.Stream {
	t.Helper()
	stream, err := kdbxcrypt.NewStream(kdbxcrypt.StreamChaCha20, key)
	if err != nil {
		t.Fatal("NewStream:", err)
	}
	return stream
}

func sampleDocumentDB(t *testing.T) *Database {
	t.Helper()
	rootUUID, err := uuids.New(fakerand.New())
	if err != nil {
		t.Fatal(err)
	}
	entryUUID, err := uuids.New(fakerand.NewSeeded(1))
	if err != nil {
		t.Fatal(err)
	}
	entry := &Entry{UUID: entryUUID, IconID: 4}
	entry.SetTitle("Bar")
	entry.SetURL("https://example.com")
	entry.SetUserName("User123")
	entry.SetPassword("password1")
	entry.Set("Custom", ProtectedValue("hunter2"))
	return &Database{
		Meta: Meta{
			Generator:           "kdbx",
			DatabaseName:        "BarName",
			DatabaseDescription: "BazDesc",
			MemoryProtection:    MemoryProtection{Password: true},
			CustomData:          []Field{{Key: "plugin", Value: StandardValue("data")}},
		},
		Root: &Group{
			UUID:    rootUUID,
			Name:    "Root",
			Entries: []*Entry{entry},
		},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	db := sampleDocumentDB(t)
	key := testStreamKey(t)

	var buf bytes.Buffer
	if err := writeDocument(&buf, db, newTestStream(t, key)); err != nil {
		t.Fatal("writeDocument:", err)
	}
	doc, err := parseDocument(buf.Bytes(), newTestStream(t, key))
	if err != nil {
		t.Fatal("parseDocument:", err)
	}

	if doc.meta.DatabaseName != "BarName" {
		t.Errorf("DatabaseName = %q; want BarName", doc.meta.DatabaseName)
	}
	if doc.meta.DatabaseDescription != "BazDesc" {
		t.Errorf("DatabaseDescription = %q; want BazDesc", doc.meta.DatabaseDescription)
	}
	if !doc.meta.MemoryProtection.Password || doc.meta.MemoryProtection.Title {
		t.Errorf("MemoryProtection = %+v; want only Password", doc.meta.MemoryProtection)
	}
	if len(doc.meta.CustomData) != 1 || doc.meta.CustomData[0].Key != "plugin" {
		t.Errorf("CustomData = %+v; want one plugin item", doc.meta.CustomData)
	}
	if doc.root == nil {
		t.Fatal("doc.root is nil")
	}
	if doc.root.UUID != db.Root.UUID {
		t.Errorf("root UUID = %v; want %v", doc.root.UUID, db.Root.UUID)
	}
	if len(doc.root.Entries) != 1 {
		t.Fatalf("len(doc.root.Entries) = %d; want 1", len(doc.root.Entries))
	}
	e := doc.root.Entries[0]
	if e.Password() != "password1" {
		t.Errorf("entry password = %q; want password1", e.Password())
	}
	if e.Get("Custom") != "hunter2" {
		t.Errorf(`entry Custom = %q; want hunter2`, e.Get("Custom"))
	}
	if f := e.Field(FieldPassword); f == nil || f.Value.Kind != Protected {
		t.Error("password field did not stay protected")
	}
	if f := e.Field(FieldURL); f == nil || f.Value.Kind != Standard {
		t.Error("URL field is not a standard value")
	}
}

func TestDocumentProtectedOnWire(t *testing.T) {
	db := sampleDocumentDB(t)
	key := testStreamKey(t)
	var buf bytes.Buffer
	if err := writeDocument(&buf, db, newTestStream(t, key)); err != nil {
		t.Fatal("writeDocument:", err)
	}
	xmlText := buf.String()
	if strings.Contains(xmlText, "password1") {
		t.Error("protected plaintext appears in the emitted XML")
	}
	if strings.Contains(xmlText, "hunter2") {
		t.Error("protected plaintext appears in the emitted XML")
	}
	if !strings.Contains(xmlText, "User123") {
		t.Error("standard value missing from the emitted XML")
	}
}

// Two protected values swapped in the document before encryption must
// decrypt to the swapped plaintexts: the reader consumes the keystream
// in the same document order the writer produced it.
func TestDocumentProtectedOrdering(t *testing.T) {
	key := testStreamKey(t)
	enc := newTestStream(t, key)
	first := []byte("AAAAAAAA")
	second := []byte("BBBBBBBB")
	enc.Apply(second)
	enc.Apply(first)
	b64First := base64.StdEncoding.EncodeToString(first)
	b64Second := base64.StdEncoding.EncodeToString(second)

	docXML := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<KeePassFile><Meta><Generator>kdbx</Generator></Meta><Root><Group>` +
		`<UUID>AAAAAAAAAAAAAAAAAAAAAA==</UUID><Name>Root</Name>` +
		`<Entry><UUID>AQEBAQEBAQEBAQEBAQEBAQ==</UUID>` +
		`<String><Key>One</Key><Value Protected="True">` + b64Second + `</Value></String>` +
		`<String><Key>Two</Key><Value Protected="True">` + b64First + `</Value></String>` +
		`</Entry></Group></Root></KeePassFile>`

	doc, err := parseDocument([]byte(docXML), newTestStream(t, key))
	if err != nil {
		t.Fatal("parseDocument:", err)
	}
	e := doc.root.Entries[0]
	if got := e.Get("One"); got != "BBBBBBBB" {
		t.Errorf("field One = %q; want BBBBBBBB", got)
	}
	if got := e.Get("Two"); got != "AAAAAAAA" {
		t.Errorf("field Two = %q; want AAAAAAAA", got)
	}
}

func TestDocumentHeaderHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0xAB}, 32)
	docXML := `<KeePassFile><Meta><HeaderHash>` +
		base64.StdEncoding.EncodeToString(hash) +
		`</HeaderHash></Meta><Root><Group><Name>Root</Name>` +
		`<UUID>AAAAAAAAAAAAAAAAAAAAAA==</UUID></Group></Root></KeePassFile>`
	doc, err := parseDocument([]byte(docXML), nullTestStream{})
	if err != nil {
		t.Fatal("parseDocument:", err)
	}
	if !bytes.Equal(doc.headerHash, hash) {
		t.Errorf("doc.headerHash = %x; want %x", doc.headerHash, hash)
	}
}

type nullTestStream struct{}

func (nullTestStream) Apply(b []byte) {}

func TestDocumentUnknownElementsDropped(t *testing.T) {
	docXML := `<KeePassFile><Meta><Generator>x</Generator>` +
		`<SomethingNew><Nested>1</Nested></SomethingNew></Meta>` +
		`<Root><Group><UUID>AAAAAAAAAAAAAAAAAAAAAA==</UUID><Name>Root</Name>` +
		`<FutureThing/></Group><DeletedObjects/></Root></KeePassFile>`
	doc, err := parseDocument([]byte(docXML), nullTestStream{})
	if err != nil {
		t.Fatal("parseDocument:", err)
	}
	if doc.root == nil || doc.root.Name != "Root" {
		t.Errorf("doc.root = %+v; want group named Root", doc.root)
	}
}

func TestDocumentHistoryRoundTrip(t *testing.T) {
	key := testStreamKey(t)
	id, err := uuids.New(fakerand.New())
	if err != nil {
		t.Fatal(err)
	}
	entry := &Entry{UUID: id}
	entry.SetTitle("old title")
	entry.SetPassword("old pass")
	entry.PushHistory()
	entry.SetTitle("new title")
	entry.SetPassword("new pass")
	entry.PushHistory()
	entry.SetTitle("newest title")

	db := &Database{
		Meta: Meta{Generator: "kdbx"},
		Root: &Group{UUID: id, Name: "Root", Entries: []*Entry{entry}},
	}
	var buf bytes.Buffer
	if err := writeDocument(&buf, db, newTestStream(t, key)); err != nil {
		t.Fatal("writeDocument:", err)
	}
	doc, err := parseDocument(buf.Bytes(), newTestStream(t, key))
	if err != nil {
		t.Fatal("parseDocument:", err)
	}
	got := doc.root.Entries[0]
	if len(got.History) != 2 {
		t.Fatalf("len(History) = %d; want 2", len(got.History))
	}
	if got.History[0].Title() != "old title" || got.History[1].Title() != "new title" {
		t.Errorf("history order = [%q %q]; want oldest first",
			got.History[0].Title(), got.History[1].Title())
	}
	for i, old := range got.History {
		if old.UUID != got.UUID {
			t.Errorf("history[%d] UUID = %v; want %v", i, old.UUID, got.UUID)
		}
		if len(old.History) != 0 {
			t.Errorf("history[%d] has nested history", i)
		}
	}
	if got.History[0].Password() != "old pass" {
		t.Errorf("history[0] password = %q; want %q", got.History[0].Password(), "old pass")
	}
}

func TestDocumentBadUUID(t *testing.T) {
	docXML := `<KeePassFile><Meta/><Root><Group><UUID>!!</UUID><Name>Root</Name></Group></Root></KeePassFile>`
	_, err := parseDocument([]byte(docXML), nullTestStream{})
	if _, ok := err.(*SchemaError); !ok {
		t.Errorf("parseDocument error = %v; want SchemaError", err)
	}
}
