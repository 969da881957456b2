// Package docx converts WordprocessingML (.docx) documents to semantic HTML.
//
// The mapping follows the structure of the document rather than its looks:
// headings, paragraphs, lists, tables, hyperlinks and basic run formatting
// survive; fonts, colours and sizes are dropped.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"

	// maxPartSize bounds how much of a single zip part is decompressed.
	maxPartSize = 64 << 20
)

// ErrInvalidDocument is returned when the input is not a readable .docx package.
var ErrInvalidDocument = errors.New("docx: invalid document")

// ToHTML converts the raw bytes of a .docx file to an HTML fragment.
func ToHTML(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc, rels []byte
	for _, f := range zr.File {
		switch f.Name {
		case documentPart:
			if doc, err = readPart(f); err != nil {
				return "", err
			}
		case relsPart:
			if rels, err = readPart(f); err != nil {
				return "", err
			}
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidDocument, documentPart)
	}

	links, err := parseRelationships(rels)
	if err != nil {
		return "", err
	}

	var root node
	if err := xml.Unmarshal(doc, &root); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	body := root.child("body")
	if root.XMLName.Local != "document" || body == nil {
		return "", fmt.Errorf("%w: no document body", ErrInvalidDocument)
	}

	c := &converter{links: links}
	out := &html.Node{Type: html.DocumentNode}
	c.blocks(body.Children, out)

	var buf bytes.Buffer
	for n := out.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("docx: render: %w", err)
		}
	}
	return buf.String(), nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidDocument, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDocument, f.Name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%w: %s too large", ErrInvalidDocument, f.Name)
	}
	return data, nil
}

// node is a generic, order-preserving XML element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n *node) child(local string) *node {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *node) attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// on reads an OOXML toggle property such as <w:b/> or <w:b w:val="false"/>.
func (n *node) on(local string) bool {
	p := n.child(local)
	if p == nil {
		return false
	}
	v, ok := p.attr("val")
	if !ok {
		return true
	}
	switch v {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

type relationships struct {
	Items []struct {
		ID         string `xml:"Id,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// linkSchemes are the URL schemes a hyperlink target may carry into the output.
var linkSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

// safeTarget reports whether a relationship target can be emitted as an href.
// Internal targets must be fragments; external ones need an allowed scheme.
func safeTarget(target, mode string) bool {
	if strings.HasPrefix(target, "#") {
		return true
	}
	if mode != "External" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return false
	}
	return linkSchemes[strings.ToLower(u.Scheme)]
}

// parseRelationships returns the hyperlink targets keyed by relationship id.
// Targets that fail safeTarget are left out, so their links render without an href.
func parseRelationships(data []byte) (map[string]string, error) {
	links := map[string]string{}
	if data == nil {
		return links, nil
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("%w: relationships: %v", ErrInvalidDocument, err)
	}
	for _, r := range rels.Items {
		if safeTarget(r.Target, r.TargetMode) {
			links[r.ID] = strings.TrimSpace(r.Target)
		}
	}
	return links, nil
}
