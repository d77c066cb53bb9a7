package slapdtest

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Attribute is a single (name, value) pair of an LDIF record.
type Attribute struct {
	Name  string
	Value string
}

// Record is one directory entry decoded from LDIF search output: the
// distinguished name plus the remaining attributes in wire order.
// Repeated attribute names are legal, so order is preserved rather than
// collapsed into a map.
type Record struct {
	DN         string
	Attributes []Attribute
}

// GetAttributeValues returns the values for an attribute, in order.
func (r Record) GetAttributeValues(name string) []string {
	var values []string
	for _, a := range r.Attributes {
		if a.Name == name {
			values = append(values, a.Value)
		}
	}
	return values
}

// GetAttributeValue returns the first value for an attribute, or the
// empty string if the record has none.
func (r Record) GetAttributeValue(name string) string {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// DecodeLDIF decodes the raw output of an ldapsearch invocation into an
// ordered sequence of records. It handles the RFC 2849 subset the
// OpenLDAP tools emit: a version header, blank-line-terminated records
// beginning with a dn line, continuation lines prefixed by a single
// space, comment lines prefixed by '#', and base64 values marked by
// '::'. Any malformed input aborts the whole decode; no partial result
// is returned.
func DecodeLDIF(output []byte) ([]Record, error) {
	// Unfold continuation lines and collapse runs of blank lines.
	var lines []string
	for _, l := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(l, " ") && len(lines) > 0:
			lines[len(lines)-1] += l[1:]
		case l == "" && len(lines) > 0 && lines[len(lines)-1] == "":
			// ignore multiple blank lines
		default:
			lines = append(lines, l)
		}
	}

	// Remove comments.
	filtered := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(l, "#") {
			filtered = append(filtered, l)
		}
	}
	lines = filtered

	// Remove the leading version marker and surrounding blank lines.
	if len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 || lines[0] != "version: 1" {
		got := "nothing"
		if len(lines) > 0 {
			got = fmt.Sprintf("%q", lines[0])
		}
		return nil, fmt.Errorf("%w, got %s", ErrExpectedVersion, got)
	}
	lines = lines[1:]
	if len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}

	// Ensure the content ends with a blank line so every record is
	// terminated (unless there is no content at all).
	if len(lines) > 0 && lines[len(lines)-1] != "" {
		lines = append(lines, "")
	}

	var records []Record
	var current []Attribute
	for _, line := range lines {
		if line == "" {
			if len(current) == 0 {
				continue
			}
			if current[0].Name != "dn" {
				return nil, fmt.Errorf("%w: record starts with %q", ErrMissingDN, current[0].Name)
			}
			records = append(records, Record{
				DN:         current[0].Value,
				Attributes: current[1:],
			})
			current = nil
			continue
		}

		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		name, rest := line[:idx], line[idx+1:]

		var value string
		switch {
		case strings.HasPrefix(rest, ": "):
			decoded, err := base64.StdEncoding.DecodeString(rest[2:])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err)
			}
			value = string(decoded)
		case strings.HasPrefix(rest, " "):
			value = rest[1:]
		default:
			return nil, fmt.Errorf("%w: %q", ErrBadLine, line)
		}
		current = append(current, Attribute{Name: name, Value: value})
	}

	// The trailing blank line guarantees the walk ends on a record
	// boundary; anything left over means the decoder itself is broken.
	if len(current) != 0 {
		return nil, fmt.Errorf("slapdtest: internal error: unterminated record after decode (%d attributes pending)", len(current))
	}

	return records, nil
}
