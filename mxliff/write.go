package mxliff

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/renameio"
)

// xmlDeclaration is prepended when the parsed input had none.
const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// ErrUnitNotFound is returned by Marshal when a unit in the model has no
// counterpart in the parsed document, e.g. after its ID was changed.
var ErrUnitNotFound = errors.New("trans-unit not found in document")

type splice struct {
	start, end int64
	text       string
}

// Marshal returns the document bytes with every unit's <target> element
// rebuilt from Target.Text. Bytes outside target elements are copied from
// the parsed input.
//
// All targets are checked before any output is produced; the first one that
// is not well-formed XML yields a *MalformedTargetError.
func (d *Document) Marshal() ([]byte, error) {
	splices := make([]splice, 0, d.TransUnitCount)
	seen := make(map[unitKey]int)

	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			k := unitKey{f.Original, u.ID}
			refs := d.targets[k]
			n := seen[k]
			seen[k]++
			if n >= len(refs) {
				return nil, fmt.Errorf("trans-unit %q in file %q: %w", u.ID, f.Original, ErrUnitNotFound)
			}
			ref := refs[n]

			el := "<" + ref.qname + ">" + u.Target.Text + "</" + ref.qname + ">"
			if err := checkFragment(el, ref.ns); err != nil {
				return nil, &MalformedTargetError{File: f.Original, UnitID: u.ID, Text: u.Target.Text, Err: err}
			}
			splices = append(splices, splice{start: ref.start, end: ref.end, text: el})
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })

	var b bytes.Buffer
	b.Grow(len(d.raw) + len(xmlDeclaration))
	if !d.hasDecl {
		b.WriteString(xmlDeclaration)
	}
	var pos int64
	for _, s := range splices {
		b.Write(d.raw[pos:s.start])
		b.WriteString(s.text)
		pos = s.end
	}
	b.Write(d.raw[pos:])
	return b.Bytes(), nil
}

// checkFragment verifies that s is a single well-formed element. Prefixes
// must be declared in s or bound in ns, the scope of the target in the
// document.
func checkFragment(s string, ns map[string]string) error {
	dec := xml.NewDecoder(strings.NewReader(s))
	// Prefixes declared inside s are resolved by the decoder; undeclared
	// ones are left in Name.Space as written.
	var declared []map[string]bool
	depth := 0
	closed := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if closed {
			return fmt.Errorf("extra content after </%s>", rootName(s))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			uris := make(map[string]bool)
			if len(declared) > 0 {
				for u := range declared[len(declared)-1] {
					uris[u] = true
				}
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Space == "" && a.Name.Local == "xmlns" {
					uris[a.Value] = true
				}
			}
			declared = append(declared, uris)
			if err := checkSpace(t.Name, uris, ns); err != nil {
				return err
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					continue
				}
				if err := checkSpace(a.Name, uris, ns); err != nil {
					return err
				}
			}
		case xml.EndElement:
			depth--
			declared = declared[:len(declared)-1]
			if depth == 0 {
				closed = true
			}
		case xml.ProcInst:
			if strings.EqualFold(t.Target, "xml") {
				return errors.New("XML declaration inside target")
			}
		}
	}
}

// checkSpace rejects a name whose prefix is bound neither in the fragment
// (uris, resolved by the decoder) nor in the document scope ns.
func checkSpace(n xml.Name, uris map[string]bool, ns map[string]string) error {
	switch {
	case n.Space == "", n.Space == xmlNamespaceURI, uris[n.Space]:
		return nil
	}
	if _, ok := ns[n.Space]; ok {
		return nil
	}
	return fmt.Errorf("undeclared namespace prefix %q on <%s>", n.Space, n.Local)
}

// xmlNamespaceURI is what the decoder resolves the reserved xml prefix to.
const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

func rootName(s string) string {
	return qualifiedName([]byte(s), 0)
}

// Write writes the document back to the file it was loaded from.
func (d *Document) Write() error {
	if d.path == "" {
		return errors.New("document was not loaded from a file; use WriteFile")
	}
	return d.WriteFile(d.path)
}

// WriteFile writes the document to path. The file is replaced atomically: a
// failure leaves any existing file at path untouched. An existing file's
// permissions are kept; new files get 0644.
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}

	perm := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer t.Cleanup()

	if err := t.Chmod(perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
