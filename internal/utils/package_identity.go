package utils

import (
	"fmt"
	"strings"

	"github.com/ralt/swidgen/internal/models"
)

// SoftwareIDSeparator joins the regid and the unique id of a tag
const SoftwareIDSeparator = "__"

// uniqueIDFieldSeparator joins the fields of a unique id. It never appears
// inside an escaped field.
const uniqueIDFieldSeparator = "-"

// UniqueID returns a stable identifier for an installed package instance.
// Every field is escaped before joining so that distinct inputs always give
// distinct ids.
func UniqueID(pkg *models.Package, osString, architecture string) string {
	fields := []string{osString, architecture, pkg.Name, pkg.Version}
	for i, f := range fields {
		fields[i] = escapeIDField(f)
	}
	return strings.Join(fields, uniqueIDFieldSeparator)
}

// SoftwareID returns the global tag identifier for a unique id
func SoftwareID(regid, uniqueID string) string {
	return regid + SoftwareIDSeparator + uniqueID
}

// escapeIDField percent-encodes every byte that is not safe in URLs and XML
// attributes, along with the field separator and the escape character itself
func escapeIDField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isIDChar(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isIDChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("._~+:", c) >= 0
}
