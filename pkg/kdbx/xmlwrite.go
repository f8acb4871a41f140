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
	"encoding/xml"
	"io"
	"strconv"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

// xmlWriter wraps an xml.Encoder with the element helpers the document
// needs, latching the first error like the binary writer does.
type xmlWriter struct {
	enc    *xml.Encoder
	stream kdbxcrypt.Stream
	err    error
}

// writeDocument emits the inner XML document.  Protected values are
// enciphered with stream strictly in document order; the element order
// here is the canonical one the parser mirrors.
func writeDocument(w io.Writer, db *Database, stream kdbxcrypt.Stream) error {
	xw := &xmlWriter{enc: xml.NewEncoder(w), stream: stream}
	xw.token(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8" standalone="yes"`)})
	xw.start("KeePassFile")
	xw.meta(&db.Meta)
	xw.start("Root")
	xw.group(db.Root)
	xw.end("Root")
	xw.end("KeePassFile")
	if xw.err != nil {
		return xw.err
	}
	return xw.enc.Flush()
}

func (xw *xmlWriter) token(tok xml.Token) {
	if xw.err != nil {
		return
	}
	xw.err = xw.enc.EncodeToken(tok)
}

func (xw *xmlWriter) start(name string, attrs ...xml.Attr) {
	xw.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (xw *xmlWriter) end(name string) {
	xw.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (xw *xmlWriter) text(name, value string) {
	xw.start(name)
	xw.token(xml.CharData(value))
	xw.end(name)
}

func (xw *xmlWriter) boolean(name string, value bool) {
	if value {
		xw.text(name, "True")
	} else {
		xw.text(name, "False")
	}
}

func (xw *xmlWriter) meta(m *Meta) {
	xw.start("Meta")
	gen := m.Generator
	if gen == "" {
		gen = generator
	}
	xw.text("Generator", gen)
	xw.text("DatabaseName", m.DatabaseName)
	xw.text("DatabaseDescription", m.DatabaseDescription)
	xw.text("DefaultUserName", m.DefaultUserName)
	if m.MaintenanceHistoryDays != "" {
		xw.text("MaintenanceHistoryDays", m.MaintenanceHistoryDays)
	}
	if m.Color != "" {
		xw.text("Color", m.Color)
	}
	if m.MasterKeyChanged != "" {
		xw.text("MasterKeyChanged", m.MasterKeyChanged)
	}
	xw.start("MemoryProtection")
	xw.boolean("ProtectTitle", m.MemoryProtection.Title)
	xw.boolean("ProtectUserName", m.MemoryProtection.UserName)
	xw.boolean("ProtectPassword", m.MemoryProtection.Password)
	xw.boolean("ProtectURL", m.MemoryProtection.URL)
	xw.boolean("ProtectNotes", m.MemoryProtection.Notes)
	xw.end("MemoryProtection")
	xw.customData(m.CustomData)
	xw.end("Meta")
}

func (xw *xmlWriter) customData(fields []Field) {
	if fields == nil {
		return
	}
	xw.start("CustomData")
	for i := range fields {
		xw.field("Item", &fields[i])
	}
	xw.end("CustomData")
}

func (xw *xmlWriter) group(g *Group) {
	xw.start("Group")
	xw.text("UUID", g.UUID.Base64())
	xw.text("Name", g.Name)
	xw.text("Notes", g.Notes)
	xw.text("IconID", strconv.Itoa(g.IconID))
	xw.times(&g.Times)
	xw.customData(g.CustomData)
	for _, e := range g.Entries {
		xw.entry(e, true)
	}
	for _, sub := range g.Groups {
		xw.group(sub)
	}
	xw.end("Group")
}

func (xw *xmlWriter) entry(e *Entry, withHistory bool) {
	xw.start("Entry")
	xw.text("UUID", e.UUID.Base64())
	xw.text("IconID", strconv.Itoa(e.IconID))
	xw.times(&e.Times)
	for i := range e.Fields {
		xw.field("String", &e.Fields[i])
	}
	xw.customData(e.CustomData)
	if withHistory && len(e.History) > 0 {
		xw.start("History")
		for _, old := range e.History {
			xw.entry(old, false)
		}
		xw.end("History")
	}
	xw.end("Entry")
}

func (xw *xmlWriter) field(wrapper string, f *Field) {
	xw.start(wrapper)
	xw.text("Key", f.Key)
	switch f.Value.Kind {
	case Protected:
		buf := []byte(f.Value.Content)
		xw.stream.Apply(buf)
		xw.start("Value", xml.Attr{Name: xml.Name{Local: "Protected"}, Value: "True"})
		xw.token(xml.CharData(base64.StdEncoding.EncodeToString(buf)))
		xw.end("Value")
	case Standard:
		xw.text("Value", f.Value.Content)
	default:
		xw.start("Value")
		xw.end("Value")
	}
	xw.end(wrapper)
}

func (xw *xmlWriter) times(t *Times) {
	xw.start("Times")
	xw.text("CreationTime", encodeTime(t.CreationTime))
	xw.text("LastModificationTime", encodeTime(t.LastModificationTime))
	xw.text("LastAccessTime", encodeTime(t.LastAccessTime))
	xw.text("ExpiryTime", encodeTime(t.ExpiryTime))
	xw.boolean("Expires", t.Expires)
	xw.text("UsageCount", strconv.FormatUint(uint64(t.UsageCount), 10))
	xw.text("LocationChanged", encodeTime(t.LocationChanged))
	xw.end("Times")
}
