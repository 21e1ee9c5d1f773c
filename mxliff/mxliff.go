// Package mxliff implements reading and writing of Memsource MXLIFF bilingual
// files (XLIFF 1.2 with the mxlf/2.0 metadata namespace).
//
// A Document keeps the bytes it was parsed from together with an index of
// every <target> element. Writing splices freshly built <target> elements
// into those bytes, so everything else in the file (sources, metadata,
// attributes, whitespace, comments, untouched units) is emitted unchanged.
//
// Segment text is the serialized inner XML of an element with every tag
// removed. Character data stays in escaped form (&amp;, &lt;, &gt;), so the
// format's inline placeholders usually read as {1&gt;bold&lt;1} and {2}.
// Text assigned to a target must therefore already be XML-escaped.
package mxliff

import (
	"fmt"
	"os"
)

// Namespace URIs used by MXLIFF documents.
const (
	// XLIFFNamespace is the structural namespace (file, body, group,
	// trans-unit, source, target).
	XLIFFNamespace = "urn:oasis:names:tc:xliff:document:1.2"
	// MemsourceNamespace is the vendor namespace (tunit-metadata, mark,
	// type, content).
	MemsourceNamespace = "http://www.memsource.com/mxlf/2.0"
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Document is a parsed MXLIFF file.
type Document struct {
	// SourceLanguage and TargetLanguage come from the first <file> element.
	// Other files declaring a different pair are reported in Diagnostics.
	SourceLanguage string
	TargetLanguage string
	// TransUnitCount is the number of trans-units across all files.
	TransUnitCount int
	// Files in document order.
	Files []*File
	// Diagnostics lists non-fatal quirks found while parsing.
	Diagnostics []Diagnostic

	path    string
	raw     []byte
	hasDecl bool
	targets map[unitKey][]targetRef
	units   map[unitKey]*TransUnit
}

// File is one <file> group of translation units.
type File struct {
	// Original is the source file name the group was extracted from.
	Original   string
	TransUnits []*TransUnit
}

// TransUnit is a single source/target pair.
type TransUnit struct {
	// ID is the trans-unit id attribute. Expected to be unique within a
	// File; duplicates are reported as diagnostics, not rejected.
	ID     string
	Source Segment
	Target Segment
	// OnlyTag is true when the source holds nothing but placeholders.
	OnlyTag bool
	// Processed marks units whose target was changed after parsing.
	Processed bool
	// Metadata maps mark id to mark.
	Metadata map[string]Mark
}

// Segment is the extracted text of a <source> or <target> element.
type Segment struct {
	Text string
}

// Mark is an <m:mark> entry from a unit's <m:tunit-metadata>.
type Mark struct {
	// Type is the text of <m:type>, empty when the element is absent.
	Type    string
	Content string
}

// IsTranslated reports whether the unit has a non-empty target.
func (u *TransUnit) IsTranslated() bool {
	return u.Target.Text != ""
}

type unitKey struct {
	original string
	id       string
}

// targetRef locates a <target> element in Document.raw.
type targetRef struct {
	qname      string
	start, end int64
	ns         map[string]string // prefixes in scope at the target
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind int

const (
	// DiagLanguageMismatch: a <file> declares a language pair different
	// from the first file's.
	DiagLanguageMismatch DiagnosticKind = iota
	// DiagDuplicateUnit: two trans-units share the same (original, id).
	DiagDuplicateUnit
	// DiagUnpairedPlaceholder: a source has an opening placeholder with
	// no closing delimiter of the same id, e.g. {1>text<2}.
	DiagUnpairedPlaceholder
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagLanguageMismatch:
		return "language-mismatch"
	case DiagDuplicateUnit:
		return "duplicate-unit"
	case DiagUnpairedPlaceholder:
		return "unpaired-placeholder"
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic describes a quirk of the input that does not stop parsing.
type Diagnostic struct {
	Kind    DiagnosticKind
	File    string
	UnitID  string
	Message string
}

func (d Diagnostic) String() string {
	if d.UnitID != "" {
		return fmt.Sprintf("%s: %s/%s: %s", d.Kind, d.File, d.UnitID, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.File, d.Message)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Path returns the file the document was loaded from, or "" for documents
// built with Parse.
func (d *Document) Path() string { return d.path }

// Units returns every trans-unit in document order.
func (d *Document) Units() []*TransUnit {
	units := make([]*TransUnit, 0, d.TransUnitCount)
	for _, f := range d.Files {
		units = append(units, f.TransUnits...)
	}
	return units
}

// Unit returns the first unit with the given file original and id, or nil.
func (d *Document) Unit(original, id string) *TransUnit {
	return d.units[unitKey{original, id}]
}

// SetTarget assigns target text to a unit and marks it processed. The text
// must be XML-escaped. Returns false if the unit does not exist.
func (d *Document) SetTarget(original, id, text string) bool {
	u := d.Unit(original, id)
	if u == nil {
		return false
	}
	u.Target.Text = text
	u.Processed = true
	return true
}

// Stats returns the unit total, how many have a target, and how many are
// tag-only.
func (d *Document) Stats() (total, translated, tagOnly int) {
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			total++
			if u.IsTranslated() {
				translated++
			}
			if u.OnlyTag {
				tagOnly++
			}
		}
	}
	return
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ParseError reports a document that is not well-formed XML or lacks a
// required element.
type ParseError struct {
	// Path is the file being parsed; empty for in-memory input.
	Path string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Path != "" {
		return fmt.Sprintf("parsing %s: %s", e.Path, msg)
	}
	return "parsing mxliff: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// MalformedTargetError reports target text that is not well-formed once
// wrapped in a <target> element, typically an unescaped & or <.
type MalformedTargetError struct {
	File   string
	UnitID string
	Text   string
	Err    error
}

func (e *MalformedTargetError) Error() string {
	return fmt.Sprintf("malformed target for trans-unit %q in file %q: %v", e.UnitID, e.File, e.Err)
}

func (e *MalformedTargetError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads and parses an MXLIFF file. The path is remembered for Write.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	d.path = path
	return d, nil
}
