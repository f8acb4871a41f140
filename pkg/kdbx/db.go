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

// Package kdbx reads and writes KeePass 2 (KDBX) password databases.
// Version 4 archives can be read and written; version 3.1 archives are
// read-only and are upgraded to version 4 on save.
package kdbx // import "zombiezen.com/go/kdbx/pkg/kdbx"

import (
	"io"
	"time"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
	"zombiezen.com/go/kdbx/pkg/uuids"
)

// Canonical entry field names.
const (
	FieldTitle    = "Title"
	FieldUserName = "UserName"
	FieldPassword = "Password"
	FieldURL      = "URL"
	FieldNotes    = "Notes"
)

// A Database is a decrypted password tree plus the configuration needed
// to encrypt it again.  A Database is exclusively owned by its caller;
// none of its methods are safe for concurrent use.
type Database struct {
	// Meta describes the database itself.
	Meta Meta

	// Root is the top-level group.  Never nil on a Database produced by
	// New or Unlock.
	Root *Group

	// Binaries are the attachments carried in the inner header.
	Binaries []Binary

	rawXML           []byte
	cipher           kdbxcrypt.Cipher
	compression      uint32
	kdf              kdbxcrypt.KdfParams
	innerStream      kdbxcrypt.StreamID
	publicCustomData []byte
	key              *kdbxcrypt.Key
	rand             io.Reader
}

// Meta holds information about the database itself.
type Meta struct {
	Generator           string
	DatabaseName        string
	DatabaseDescription string
	DefaultUserName     string

	// MaintenanceHistoryDays, Color, and MasterKeyChanged are carried
	// through as the strings the official clients wrote.
	MaintenanceHistoryDays string
	Color                  string
	MasterKeyChanged       string

	MemoryProtection MemoryProtection
	CustomData       []Field
}

// MemoryProtection records which canonical fields official clients keep
// encrypted while in memory.  This library does not perform in-memory
// encryption; the flags round-trip for other clients.
type MemoryProtection struct {
	Title    bool
	UserName bool
	Password bool
	URL      bool
	Notes    bool
}

// A Group is a folder of entries and child groups.
type Group struct {
	UUID       uuids.UUID
	Name       string
	Notes      string
	IconID     int
	Times      Times
	Groups     []*Group
	Entries    []*Entry
	CustomData []Field
}

// An Entry is a single credential record.
type Entry struct {
	UUID   uuids.UUID
	IconID int
	Times  Times

	// Fields holds the entry's named values in document order.
	Fields []Field

	// History holds prior revisions, oldest first.  Historical entries
	// share this entry's UUID and carry no nested history.
	History []*Entry

	CustomData []Field
}

// A Field is one named value of an entry.
type Field struct {
	Key   string
	Value Value
}

// ValueKind discriminates the three value states.
type ValueKind int

// Value kinds.
const (
	// Empty is a value with no content.
	Empty ValueKind = iota
	// Standard is plain text.
	Standard
	// Protected text is plaintext in memory but serializes under the
	// inner stream cipher.
	Protected
)

// A Value is the content of a field.
type Value struct {
	Kind    ValueKind
	Content string
}

// StandardValue returns a plain text value.
func StandardValue(s string) Value {
	return Value{Kind: Standard, Content: s}
}

// ProtectedValue returns a value that serializes under the inner stream
// cipher.
func ProtectedValue(s string) Value {
	return Value{Kind: Protected, Content: s}
}

// Times holds the audit timestamps of a group or entry.
type Times struct {
	CreationTime         time.Time
	LastModificationTime time.Time
	LastAccessTime       time.Time
	ExpiryTime           time.Time
	LocationChanged      time.Time
	Expires              bool
	UsageCount           uint32
}

// RawXML returns the decrypted XML document exactly as stored in the
// archive, with protected values still enciphered.  Only present on
// databases produced by Unlock.
func (db *Database) RawXML() []byte {
	return db.rawXML
}

// Name returns the database name.
func (db *Database) Name() string {
	return db.Meta.DatabaseName
}

// SetName sets the database name.
func (db *Database) SetName(name string) {
	db.Meta.DatabaseName = name
}

// Description returns the database description.
func (db *Database) Description() string {
	return db.Meta.DatabaseDescription
}

// SetDescription sets the database description.
func (db *Database) SetDescription(desc string) {
	db.Meta.DatabaseDescription = desc
}

// Find returns the entry with the given UUID, searching the whole tree,
// or nil if absent.  History entries are not searched.
func (db *Database) Find(id uuids.UUID) *Entry {
	return db.Root.find(id)
}

func (g *Group) find(id uuids.UUID) *Entry {
	for _, e := range g.Entries {
		if e.UUID == id {
			return e
		}
	}
	for _, sub := range g.Groups {
		if e := sub.find(id); e != nil {
			return e
		}
	}
	return nil
}

// AddGroup appends a child group.
func (g *Group) AddGroup(sub *Group) {
	g.Groups = append(g.Groups, sub)
}

// AddEntry appends an entry.
func (g *Group) AddEntry(e *Entry) {
	g.Entries = append(g.Entries, e)
}

// Field returns the field with the given key, or nil if absent.
func (e *Entry) Field(key string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Key == key {
			return &e.Fields[i]
		}
	}
	return nil
}

// Get returns the content of the named field, or "" if the field is
// absent or empty.
func (e *Entry) Get(key string) string {
	if f := e.Field(key); f != nil && f.Value.Kind != Empty {
		return f.Value.Content
	}
	return ""
}

// Set stores value under key, replacing an existing field in place or
// appending a new one at the end of the document order.
func (e *Entry) Set(key string, value Value) {
	if f := e.Field(key); f != nil {
		f.Value = value
		return
	}
	e.Fields = append(e.Fields, Field{Key: key, Value: value})
}

// Title returns the entry title.
func (e *Entry) Title() string { return e.Get(FieldTitle) }

// SetTitle sets the entry title.
func (e *Entry) SetTitle(s string) { e.Set(FieldTitle, StandardValue(s)) }

// UserName returns the entry username.
func (e *Entry) UserName() string { return e.Get(FieldUserName) }

// SetUserName sets the entry username.
func (e *Entry) SetUserName(s string) { e.Set(FieldUserName, StandardValue(s)) }

// Password returns the entry password.
func (e *Entry) Password() string { return e.Get(FieldPassword) }

// SetPassword stores the password as a protected value.
func (e *Entry) SetPassword(s string) { e.Set(FieldPassword, ProtectedValue(s)) }

// URL returns the entry URL.
func (e *Entry) URL() string { return e.Get(FieldURL) }

// SetURL sets the entry URL.
func (e *Entry) SetURL(s string) { e.Set(FieldURL, StandardValue(s)) }

// Notes returns the entry notes.
func (e *Entry) Notes() string { return e.Get(FieldNotes) }

// SetNotes sets the entry notes.
func (e *Entry) SetNotes(s string) { e.Set(FieldNotes, StandardValue(s)) }

// PushHistory appends a snapshot of the entry's current state to its
// history.  The snapshot shares the entry's UUID and carries no history
// of its own.
func (e *Entry) PushHistory() {
	snap := &Entry{
		UUID:   e.UUID,
		IconID: e.IconID,
		Times:  e.Times,
	}
	snap.Fields = append([]Field(nil), e.Fields...)
	snap.CustomData = append([]Field(nil), e.CustomData...)
	e.History = append(e.History, snap)
}
