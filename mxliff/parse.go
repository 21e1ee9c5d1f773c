package mxliff

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"regexp"
	"strings"
)

// element is a node of the owned tree built once per Parse. Offsets index
// into the parsed bytes: start is the '<' of the start tag, end is just past
// the end tag (or past "/>").
type element struct {
	name     xml.Name
	attr     []xml.Attr
	children []*element
	// content holds *element and copied xml.CharData, xml.Comment,
	// xml.ProcInst and xml.Directive tokens in document order.
	content    []any
	start, end int64
	// ns maps the namespace prefixes in scope to their URIs.
	ns map[string]string
}

func (e *element) attrValue(local string) string {
	for _, a := range e.attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// child returns the first direct child with the given name, or nil.
func (e *element) child(space, local string) *element {
	for _, c := range e.children {
		if c.name.Space == space && c.name.Local == local {
			return c
		}
	}
	return nil
}

// path returns the direct-child chain matches, like ElementTree's
// findall("a/b/c").
func (e *element) path(space string, locals ...string) []*element {
	cur := []*element{e}
	for _, local := range locals {
		var next []*element
		for _, el := range cur {
			for _, c := range el.children {
				if c.name.Space == space && c.name.Local == local {
					next = append(next, c)
				}
			}
		}
		cur = next
	}
	return cur
}

// buildTree decodes data into an element tree. The returned element is a
// synthetic document node whose children are the top-level elements.
func buildTree(data []byte) (doc *element, hasDecl bool, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	doc = &element{end: int64(len(data))}
	stack := []*element{doc}
	rootClosed := false

	for {
		off := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		top := stack[len(stack)-1]

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, false, fmt.Errorf("element <%s> after the root element", t.Name.Local)
			}
			el := &element{name: t.Name, attr: t.Copy().Attr, start: off, ns: scope(top.ns, t.Attr)}
			top.children = append(top.children, el)
			top.content = append(top.content, el)
			stack = append(stack, el)
		case xml.EndElement:
			top.end = dec.InputOffset()
			stack = stack[:len(stack)-1]
			if len(stack) == 1 {
				rootClosed = true
			}
		case xml.ProcInst:
			if len(stack) == 1 && t.Target == "xml" {
				hasDecl = true
			}
			top.content = append(top.content, t.Copy())
		case xml.CharData:
			if len(stack) == 1 && !isProlog(t, off) {
				return nil, false, fmt.Errorf("text %q outside the root element", bytes.TrimSpace(t))
			}
			top.content = append(top.content, t.Copy())
		case xml.Comment:
			top.content = append(top.content, t.Copy())
		case xml.Directive:
			top.content = append(top.content, t.Copy())
		}
	}
	return doc, hasDecl, nil
}

// scope returns the prefix bindings in effect after the xmlns:* attributes
// of a start tag. parent is returned unchanged when there are none.
func scope(parent map[string]string, attr []xml.Attr) map[string]string {
	ns := parent
	copied := false
	for _, a := range attr {
		if a.Name.Space != "xmlns" {
			continue
		}
		if !copied {
			ns = maps.Clone(parent)
			if ns == nil {
				ns = make(map[string]string)
			}
			copied = true
		}
		ns[a.Name.Local] = a.Value
	}
	return ns
}

// isProlog reports whether top-level character data is only whitespace,
// allowing a byte order mark at the very start of the input.
func isProlog(t xml.CharData, off int64) bool {
	if off == 0 {
		t = bytes.TrimPrefix(t, []byte("\uFEFF"))
	}
	return len(bytes.TrimSpace(t)) == 0
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parse parses MXLIFF data. Tag-only flags are computed for every unit.
func Parse(data []byte) (*Document, error) {
	tree, hasDecl, err := buildTree(data)
	if err != nil {
		return nil, &ParseError{Msg: "malformed XML", Err: err}
	}
	if len(tree.children) == 0 {
		return nil, &ParseError{Msg: "no root element"}
	}
	root := tree.children[0]

	fileEls := root.path(XLIFFNamespace, "file")
	if len(fileEls) == 0 {
		return nil, &ParseError{Msg: "no <file> element"}
	}

	d := &Document{
		SourceLanguage: fileEls[0].attrValue("source-language"),
		TargetLanguage: fileEls[0].attrValue("target-language"),
		raw:            data,
		hasDecl:        hasDecl,
		targets:        make(map[unitKey][]targetRef),
		units:          make(map[unitKey]*TransUnit),
	}

	for _, fe := range fileEls {
		f := &File{Original: fe.attrValue("original")}
		if sl, tl := fe.attrValue("source-language"), fe.attrValue("target-language"); sl != d.SourceLanguage || tl != d.TargetLanguage {
			d.Diagnostics = append(d.Diagnostics, Diagnostic{
				Kind:    DiagLanguageMismatch,
				File:    f.Original,
				Message: fmt.Sprintf("declares %s→%s, document uses %s→%s", sl, tl, d.SourceLanguage, d.TargetLanguage),
			})
		}

		for _, ue := range fe.path(XLIFFNamespace, "body", "group", "trans-unit") {
			u, target, err := parseTransUnit(f.Original, ue, data)
			if err != nil {
				return nil, err
			}
			k := unitKey{f.Original, u.ID}
			if _, dup := d.units[k]; dup {
				d.Diagnostics = append(d.Diagnostics, Diagnostic{
					Kind:    DiagDuplicateUnit,
					File:    f.Original,
					UnitID:  u.ID,
					Message: "trans-unit id is not unique within file",
				})
			} else {
				d.units[k] = u
			}
			if HasUnpairedPlaceholder(u.Source.Text) {
				d.Diagnostics = append(d.Diagnostics, Diagnostic{
					Kind:    DiagUnpairedPlaceholder,
					File:    f.Original,
					UnitID:  u.ID,
					Message: fmt.Sprintf("source has an opening placeholder without matching close: %q", u.Source.Text),
				})
			}
			d.targets[k] = append(d.targets[k], target)
			f.TransUnits = append(f.TransUnits, u)
			d.TransUnitCount++
		}
		d.Files = append(d.Files, f)
	}

	return d, nil
}

func parseTransUnit(original string, ue *element, data []byte) (*TransUnit, targetRef, error) {
	u := &TransUnit{
		ID:       ue.attrValue("id"),
		Metadata: make(map[string]Mark),
	}

	src := ue.child(XLIFFNamespace, "source")
	if src == nil {
		return nil, targetRef{}, &ParseError{Msg: fmt.Sprintf("trans-unit %q in file %q has no <source>", u.ID, original)}
	}
	tgt := ue.child(XLIFFNamespace, "target")
	if tgt == nil {
		return nil, targetRef{}, &ParseError{Msg: fmt.Sprintf("trans-unit %q in file %q has no <target>", u.ID, original)}
	}
	u.Source.Text = extractText(src)
	u.Target.Text = extractText(tgt)
	u.OnlyTag = IsTagOnly(u.Source.Text)

	for _, me := range ue.path(MemsourceNamespace, "tunit-metadata", "mark") {
		content := me.child(MemsourceNamespace, "content")
		if content == nil {
			return nil, targetRef{}, &ParseError{Msg: fmt.Sprintf("mark %q of trans-unit %q in file %q has no <m:content>", me.attrValue("id"), u.ID, original)}
		}
		var m Mark
		if typ := me.child(MemsourceNamespace, "type"); typ != nil {
			m.Type = extractText(typ)
		}
		m.Content = extractText(content)
		u.Metadata[me.attrValue("id")] = m
	}

	return u, targetRef{qname: qualifiedName(data, tgt.start), start: tgt.start, end: tgt.end, ns: tgt.ns}, nil
}

// qualifiedName reads the element name as written (with any prefix) from the
// start tag at off.
func qualifiedName(data []byte, off int64) string {
	s := data[off+1:]
	if i := bytes.IndexAny(s, " \t\r\n/>"); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// ---------------------------------------------------------------------------
// Text extraction
// ---------------------------------------------------------------------------

// tagRe matches any angle-bracket tag, shortest first, across lines.
var tagRe = regexp.MustCompile(`(?s)<.*?>`)

// extractText serializes the element's inner XML, removes every tag and
// trims surrounding whitespace. The tag removal is not XML-aware: anything
// between '<' and the next '>' goes, including comment bodies up to their
// first '>'.
func extractText(e *element) string {
	var b strings.Builder
	writeContent(&b, e)
	return strings.TrimSpace(tagRe.ReplaceAllString(b.String(), ""))
}

func writeContent(b *strings.Builder, e *element) {
	for _, c := range e.content {
		switch t := c.(type) {
		case *element:
			writeElement(b, t)
		case xml.CharData:
			escapeText(b, string(t))
		case xml.Comment:
			b.WriteString("<!--")
			b.Write(t)
			b.WriteString("-->")
		case xml.ProcInst:
			b.WriteString("<?")
			b.WriteString(t.Target)
			if len(t.Inst) > 0 {
				b.WriteByte(' ')
				b.Write(t.Inst)
			}
			b.WriteString("?>")
		case xml.Directive:
			b.WriteString("<!")
			b.Write(t)
			b.WriteString(">")
		}
	}
}

func writeElement(b *strings.Builder, e *element) {
	b.WriteByte('<')
	b.WriteString(e.name.Local)
	for _, a := range e.attr {
		b.WriteByte(' ')
		if a.Name.Space != "" {
			b.WriteString(a.Name.Space)
			b.WriteByte(':')
		}
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		escapeAttr(b, a.Value)
		b.WriteByte('"')
	}
	if len(e.content) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	writeContent(b, e)
	b.WriteString("</")
	b.WriteString(e.name.Local)
	b.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(b *strings.Builder, s string) { textEscaper.WriteString(b, s) }

// EscapeText escapes plain text for use as segment text, the inverse of the
// entity form text extraction produces.
func EscapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(b *strings.Builder, s string) { attrEscaper.WriteString(b, s) }
