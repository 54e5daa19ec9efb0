// Package rs3 parses and validates rhetorical structure trees in the rs3 XML format.
package rs3

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Relation is a relation declared in the rs3 header.
type Relation struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// Segment is an elementary discourse unit.
type Segment struct {
	ID      string `xml:"id,attr"`
	Parent  string `xml:"parent,attr"`
	RelName string `xml:"relname,attr"`
	Text    string `xml:",chardata"`
}

// Group is a non-terminal node (span or multinuc).
type Group struct {
	ID      string `xml:"id,attr"`
	Type    string `xml:"type,attr"`
	Parent  string `xml:"parent,attr"`
	RelName string `xml:"relname,attr"`
}

// Document is a parsed rs3 file.
type Document struct {
	XMLName   xml.Name   `xml:"rst"`
	Relations []Relation `xml:"header>relations>rel"`
	Segments  []Segment  `xml:"body>segment"`
	Groups    []Group    `xml:"body>group"`
}

// spanRelation is implicit and never declared in the header.
const spanRelation = "span"

// Parse decodes data and checks the structural rules every stored document must satisfy:
//   - the root element is <rst> and the body contains at least one segment
//   - node ids are non-empty and unique across segments and groups
//   - every parent attribute references an existing node
//   - every relname other than "span" is declared in the header
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("rs3: empty document")
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rs3: decode: %w", err)
	}
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("rs3: document has no segments")
	}

	declared := make(map[string]struct{}, len(doc.Relations))
	for _, r := range doc.Relations {
		declared[strings.TrimSpace(r.Name)] = struct{}{}
	}

	ids := make(map[string]struct{}, len(doc.Segments)+len(doc.Groups))
	addID := func(kind, id string) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("rs3: %s without id", kind)
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("rs3: duplicate node id %q", id)
		}
		ids[id] = struct{}{}
		return nil
	}
	for _, s := range doc.Segments {
		if err := addID("segment", s.ID); err != nil {
			return nil, err
		}
	}
	for _, g := range doc.Groups {
		if err := addID("group", g.ID); err != nil {
			return nil, err
		}
	}

	check := func(id, parent, relname string) error {
		parent, relname = strings.TrimSpace(parent), strings.TrimSpace(relname)
		if parent != "" {
			if _, ok := ids[parent]; !ok {
				return fmt.Errorf("rs3: node %q references unknown parent %q", id, parent)
			}
		}
		if relname != "" && relname != spanRelation {
			if _, ok := declared[relname]; !ok {
				return fmt.Errorf("rs3: node %q uses undeclared relation %q", id, relname)
			}
		}
		return nil
	}
	for _, s := range doc.Segments {
		if err := check(s.ID, s.Parent, s.RelName); err != nil {
			return nil, err
		}
	}
	for _, g := range doc.Groups {
		if err := check(g.ID, g.Parent, g.RelName); err != nil {
			return nil, err
		}
	}

	return &doc, nil
}
