package swid

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/ralt/swidgen/internal/utils"
)

const (
	// Role identifies this tool as the creator of the tag
	Role = "tagCreator"

	// VersionScheme is the versionScheme of every tag
	VersionScheme = "alphanumeric"

	// XMLNS is the SWID schema namespace
	XMLNS = "http://standards.iso.org/iso/19770/-2/2015/schema.xsd"

	// N8060 is the NIST IR 8060 extension namespace
	N8060 = "http://csrc.nist.gov/schema/swid/2015-extensions/swid-2015-extensions-1.0.xsd"

	// XMLDeclaration precedes every serialized tag
	XMLDeclaration = `<?xml version="1.0" encoding="utf-8"?>`
)

// SoftwareIdentity is the root element of a SWID tag
type SoftwareIdentity struct {
	XMLName       xml.Name   `xml:"SoftwareIdentity"`
	XMLNS         string     `xml:"xmlns,attr"`
	Namespaces    []xml.Attr `xml:",any,attr"`
	Name          string     `xml:"name,attr"`
	UniqueID      string     `xml:"uniqueId,attr"`
	Version       string     `xml:"version,attr"`
	VersionScheme string     `xml:"versionScheme,attr"`
	Entity        Entity     `xml:"Entity"`
	Payload       *Payload   `xml:"Payload,omitempty"`
}

// Entity names the organisation that created the tag
type Entity struct {
	Name  string `xml:"name,attr"`
	RegID string `xml:"regid,attr"`
	Role  string `xml:"role,attr"`
}

// Payload enumerates the files of a package grouped by directory
type Payload struct {
	Attrs       []xml.Attr  `xml:",any,attr"`
	Directories []Directory `xml:"Directory"`
}

// Directory is identified by its parent path and its own name
type Directory struct {
	Root  string `xml:"root,attr"`
	Name  string `xml:"name,attr"`
	Files []File `xml:"File"`
}

// File is a single payload file
type File struct {
	Name    string     `xml:"name,attr"`
	Mutable bool       `xml:"mutable,attr,omitempty"`
	Size    int64      `xml:"size,attr"`
	Hashes  []xml.Attr `xml:",any,attr"`
}

// Marshal serializes the tag with its XML declaration and no line breaks
func (s *SoftwareIdentity) Marshal() ([]byte, error) {
	body, err := xml.Marshal(s)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(XMLDeclaration)+len(body))
	out = append(out, XMLDeclaration...)
	out = append(out, bytes.ReplaceAll(body, []byte("\n"), nil)...)
	return out, nil
}

// attr builds an attribute whose name may carry a namespace prefix
func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// ParseIdentity decodes the identifying attributes of a serialized tag
func ParseIdentity(doc []byte) (*SoftwareIdentity, error) {
	var s SoftwareIdentity
	if err := xml.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to parse tag: %w", err)
	}
	return &s, nil
}

// SoftwareID returns the global identifier of the tag
func (s *SoftwareIdentity) SoftwareID() string {
	return utils.SoftwareID(s.Entity.RegID, s.UniqueID)
}
