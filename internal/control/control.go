// Package control parses the RFC822-like stanza format used by apt index
// files (Packages, Sources).
//
// The parser is deliberately more forgiving than a general deb822
// implementation: real archive indices contain stanzas this tool has no
// use for, and occasionally corrupt ones. A stanza that cannot be parsed
// or that lacks the fields we need is skipped, never fatal.
package control

import (
	"bytes"
	"strings"
)

// Record is one package entry from an archive index. Suite, Pocket and
// Component are not part of the stanza; the caller stamps them on from the
// coordinate the index was fetched for.
type Record struct {
	Name         string
	Version      string
	Architecture string
	// Source is the source package a binary package was built from, if the
	// stanza declares one ("Source: foo" or "Source: foo (1.2-3)").
	Source string

	Suite     string
	Pocket    string
	Component string
}

// SourceName returns the name of the source package behind the record: the
// Source field if present, otherwise the package name itself. For records
// from a Sources index the two are the same.
func (r Record) SourceName() string {
	if r.Source != "" {
		return r.Source
	}
	return r.Name
}

// IsSource reports whether the record describes a source package (it came
// from a Sources index rather than a binary Packages index).
func (r Record) IsSource() bool { return r.Architecture == "source" }

// Warning describes one skipped stanza.
type Warning struct {
	Stanza int // 0-based index of the stanza within the input
	Reason string
}

// Parse scans decompressed index bytes and returns one Record per usable
// stanza, in input order. Stanzas missing a Package or Version field, and
// structurally broken stanzas (e.g. a continuation line before any field),
// are dropped and reported as warnings; they never abort the parse.
func Parse(b []byte) ([]Record, []Warning) {
	var (
		records  []Record
		warnings []Warning
		stanza   = 0
	)

	var (
		fields  = make(map[string]string)
		lastKey string
		broken  string // reason, if the current stanza is unusable
		seen    bool   // any line seen for the current stanza
	)
	flush := func() {
		if !seen {
			return
		}
		if broken == "" {
			if rec, reason := recordFromFields(fields); reason == "" {
				records = append(records, rec)
			} else {
				broken = reason
			}
		}
		if broken != "" {
			warnings = append(warnings, Warning{Stanza: stanza, Reason: broken})
		}
		stanza++
		fields = make(map[string]string)
		lastKey = ""
		broken = ""
		seen = false
	}

	// Lines are split by hand rather than through a bufio.Scanner:
	// Description fields in real indices exceed any fixed per-line buffer,
	// and a scanner abort would silently drop every stanza after it.
	rest := b
	for len(rest) > 0 {
		var line string
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = string(rest[:i]), rest[i+1:]
		} else {
			line, rest = string(rest), nil
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		seen = true
		if broken != "" {
			continue // already condemned, skip to the next blank line
		}
		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				broken = "continuation line before any field"
				continue
			}
			// Appended verbatim apart from the leading whitespace.
			fields[lastKey] += " " + strings.TrimLeft(line, " \t")
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			broken = "line without a colon: " + line
			continue
		}
		key := line[:idx]
		fields[key] = strings.TrimSpace(line[idx+1:])
		lastKey = key
	}
	flush()

	return records, warnings
}

// recordFromFields builds a Record, returning a non-empty reason if the
// stanza is not a package entry. Field names are case-sensitive, matching
// the archive's documented casing.
func recordFromFields(fields map[string]string) (Record, string) {
	name, ok := fields["Package"]
	if !ok || name == "" {
		return Record{}, "missing Package field"
	}
	ver, ok := fields["Version"]
	if !ok || ver == "" {
		return Record{}, "missing Version field"
	}
	rec := Record{
		Name:         name,
		Version:      ver,
		Architecture: fields["Architecture"],
		Source:       fields["Source"],
	}
	// Binary stanzas may pin the source version: "Source: foo (1:1.2-3)".
	// Only the name matters here.
	if idx := strings.Index(rec.Source, " ("); idx != -1 {
		rec.Source = rec.Source[:idx]
	}
	return rec, ""
}
