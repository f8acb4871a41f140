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
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
	"zombiezen.com/go/kdbx/pkg/uuids"
)

// document is the parsed inner XML document.
type document struct {
	meta Meta
	root *Group

	// headerHash is the Meta/HeaderHash value a version 3 archive
	// stores as tamper evidence, or nil.
	headerHash []byte
}

// parseDocument decodes the decrypted XML document.  Protected values
// are deciphered with stream strictly in document order, which is what
// makes the keystream line up with the writer's.  Elements outside the
// modeled schema are dropped.
func parseDocument(data []byte, stream kdbxcrypt.Stream) (*document, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	doc := new(document)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, xmlError(err)
		}
		if t, ok := tok.(xml.StartElement); ok {
			if t.Name.Local != "KeePassFile" {
				return nil, &SchemaError{Element: t.Name.Local, Reason: "root element must be KeePassFile"}
			}
			if err := doc.parseKeePassFile(d, stream); err != nil {
				return nil, err
			}
			return doc, nil
		}
	}
}

func xmlError(err error) error {
	return fmt.Errorf("kdbx: parse xml: %w", err)
}

func (doc *document) parseKeePassFile(d *xml.Decoder, stream kdbxcrypt.Stream) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Meta":
				if err := doc.parseMeta(d, stream); err != nil {
					return err
				}
			case "Root":
				if err := doc.parseRoot(d, stream); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return xmlError(err)
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (doc *document) parseMeta(d *xml.Decoder, stream kdbxcrypt.Stream) error {
	m := &doc.meta
	for {
		tok, err := d.Token()
		if err != nil {
			return xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Generator":
				m.Generator, err = textContent(d)
			case "DatabaseName":
				m.DatabaseName, err = textContent(d)
			case "DatabaseDescription":
				m.DatabaseDescription, err = textContent(d)
			case "DefaultUserName":
				m.DefaultUserName, err = textContent(d)
			case "MaintenanceHistoryDays":
				m.MaintenanceHistoryDays, err = textContent(d)
			case "Color":
				m.Color, err = textContent(d)
			case "MasterKeyChanged":
				m.MasterKeyChanged, err = textContent(d)
			case "HeaderHash":
				var s string
				if s, err = textContent(d); err == nil {
					doc.headerHash, err = base64.StdEncoding.DecodeString(strings.TrimSpace(s))
					if err != nil {
						return &SchemaError{Element: "HeaderHash", Reason: "invalid base64"}
					}
				}
			case "MemoryProtection":
				err = parseMemoryProtection(d, &m.MemoryProtection)
			case "CustomData":
				m.CustomData, err = parseCustomData(d, stream)
			default:
				err = skip(d)
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseMemoryProtection(d *xml.Decoder, mp *MemoryProtection) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var s string
			if s, err = textContent(d); err != nil {
				return err
			}
			v := parseBool(s)
			switch t.Name.Local {
			case "ProtectTitle":
				mp.Title = v
			case "ProtectUserName":
				mp.UserName = v
			case "ProtectPassword":
				mp.Password = v
			case "ProtectURL":
				mp.URL = v
			case "ProtectNotes":
				mp.Notes = v
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseCustomData(d *xml.Decoder, stream kdbxcrypt.Stream) ([]Field, error) {
	var fields []Field
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Item" {
				if err := skip(d); err != nil {
					return nil, err
				}
				continue
			}
			f, err := parseField(d, stream)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		case xml.EndElement:
			return fields, nil
		}
	}
}

func (doc *document) parseRoot(d *xml.Decoder, stream kdbxcrypt.Stream) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Group" {
				if err := skip(d); err != nil {
					return err
				}
				continue
			}
			g, err := parseGroup(d, stream)
			if err != nil {
				return err
			}
			if doc.root == nil {
				doc.root = g
			} else {
				// The schema allows a single top-level group; tolerate
				// extras by reparenting them under the first.
				doc.root.Groups = append(doc.root.Groups, g)
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseGroup(d *xml.Decoder, stream kdbxcrypt.Stream) (*Group, error) {
	g := new(Group)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "UUID":
				g.UUID, err = parseUUID(d)
			case "Name":
				g.Name, err = textContent(d)
			case "Notes":
				g.Notes, err = textContent(d)
			case "IconID":
				g.IconID, err = parseInt(d, "IconID")
			case "Times":
				g.Times, err = parseTimes(d)
			case "CustomData":
				g.CustomData, err = parseCustomData(d, stream)
			case "Entry":
				var e *Entry
				if e, err = parseEntry(d, stream, true); err == nil {
					g.Entries = append(g.Entries, e)
				}
			case "Group":
				var sub *Group
				if sub, err = parseGroup(d, stream); err == nil {
					g.Groups = append(g.Groups, sub)
				}
			default:
				err = skip(d)
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			return g, nil
		}
	}
}

func parseEntry(d *xml.Decoder, stream kdbxcrypt.Stream, allowHistory bool) (*Entry, error) {
	e := new(Entry)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "UUID":
				e.UUID, err = parseUUID(d)
			case "IconID":
				e.IconID, err = parseInt(d, "IconID")
			case "Times":
				e.Times, err = parseTimes(d)
			case "String":
				var f Field
				if f, err = parseField(d, stream); err == nil {
					e.Fields = append(e.Fields, f)
				}
			case "CustomData":
				e.CustomData, err = parseCustomData(d, stream)
			case "History":
				if !allowHistory {
					// History never nests.
					err = skip(d)
					break
				}
				e.History, err = parseHistory(d, stream)
			default:
				err = skip(d)
			}
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			return e, nil
		}
	}
}

func parseHistory(d *xml.Decoder, stream kdbxcrypt.Stream) ([]*Entry, error) {
	var history []*Entry
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Entry" {
				if err := skip(d); err != nil {
					return nil, err
				}
				continue
			}
			e, err := parseEntry(d, stream, false)
			if err != nil {
				return nil, err
			}
			history = append(history, e)
		case xml.EndElement:
			return history, nil
		}
	}
}

func parseField(d *xml.Decoder, stream kdbxcrypt.Stream) (Field, error) {
	var f Field
	for {
		tok, err := d.Token()
		if err != nil {
			return f, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Key":
				if f.Key, err = textContent(d); err != nil {
					return f, err
				}
			case "Value":
				protected := attrTrue(t, "Protected")
				s, err := textContent(d)
				if err != nil {
					return f, err
				}
				if f.Value, err = decodeValue(s, protected, stream); err != nil {
					return f, err
				}
			default:
				if err := skip(d); err != nil {
					return f, err
				}
			}
		case xml.EndElement:
			return f, nil
		}
	}
}

// decodeValue turns the wire text of a Value element into a Value,
// advancing the inner stream for protected content.
func decodeValue(s string, protected bool, stream kdbxcrypt.Stream) (Value, error) {
	if protected {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return Value{}, &SchemaError{Element: "Value", Reason: "protected value is not base64"}
		}
		stream.Apply(raw)
		if !utf8.Valid(raw) {
			return Value{}, &SchemaError{Element: "Value", Reason: "protected value did not decrypt to UTF-8"}
		}
		return Value{Kind: Protected, Content: string(raw)}, nil
	}
	if s == "" {
		return Value{}, nil
	}
	return Value{Kind: Standard, Content: s}, nil
}

func parseTimes(d *xml.Decoder) (Times, error) {
	var times Times
	for {
		tok, err := d.Token()
		if err != nil {
			return times, xmlError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			s, err := textContent(d)
			if err != nil {
				return times, err
			}
			switch name {
			case "CreationTime":
				times.CreationTime, err = decodeTime(s)
			case "LastModificationTime":
				times.LastModificationTime, err = decodeTime(s)
			case "LastAccessTime":
				times.LastAccessTime, err = decodeTime(s)
			case "ExpiryTime":
				times.ExpiryTime, err = decodeTime(s)
			case "LocationChanged":
				times.LocationChanged, err = decodeTime(s)
			case "Expires":
				times.Expires = parseBool(s)
			case "UsageCount":
				var count uint64
				if count, err = strconv.ParseUint(s, 10, 32); err != nil {
					return times, &SchemaError{Element: "UsageCount", Reason: "not an unsigned integer"}
				}
				times.UsageCount = uint32(count)
			}
			if err != nil {
				return times, err
			}
		case xml.EndElement:
			return times, nil
		}
	}
}

func parseUUID(d *xml.Decoder) (uuid uuids.UUID, err error) {
	s, err := textContent(d)
	if err != nil {
		return uuid, err
	}
	uuid, err = uuids.ParseBase64(strings.TrimSpace(s))
	if err != nil {
		return uuid, &SchemaError{Element: "UUID", Reason: "not a base64 UUID"}
	}
	return uuid, nil
}

func parseInt(d *xml.Decoder, element string) (int, error) {
	s, err := textContent(d)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &SchemaError{Element: element, Reason: "not an integer"}
	}
	return n, nil
}

// attrTrue reports whether the element carries the named attribute
// with a true value, matching case-insensitively.
func attrTrue(t xml.StartElement, name string) bool {
	for _, attr := range t.Attr {
		if attr.Name.Local == name && strings.EqualFold(attr.Value, "true") {
			return true
		}
	}
	return false
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// textContent collects the character data of the current element and
// consumes through its end tag.  Unexpected child elements are skipped.
func textContent(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return "", xmlError(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := skip(d); err != nil {
				return "", err
			}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func skip(d *xml.Decoder) error {
	if err := d.Skip(); err != nil {
		return xmlError(err)
	}
	return nil
}
