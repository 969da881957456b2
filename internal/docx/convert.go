package docx

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type converter struct {
	links map[string]string
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

func appendText(parent *html.Node, s string) {
	if s == "" {
		return
	}
	if last := parent.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += s
		return
	}
	parent.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// blocks converts body-level content: paragraphs, tables and content controls.
func (c *converter) blocks(nodes []node, parent *html.Node) {
	for i := range nodes {
		n := &nodes[i]
		switch n.XMLName.Local {
		case "p":
			c.paragraph(n, parent)
		case "tbl":
			c.table(n, parent)
		case "sdt":
			if content := n.child("sdtContent"); content != nil {
				c.blocks(content.Children, parent)
			}
		case "customXml", "ins":
			c.blocks(n.Children, parent)
		}
	}
}

func (c *converter) paragraph(p *node, parent *html.Node) {
	tag := atom.P
	var list atom.Atom
	if ppr := p.child("pPr"); ppr != nil {
		style := ""
		if s := ppr.child("pStyle"); s != nil {
			style, _ = s.attr("val")
		}
		tag = headingFor(style)
		if tag == atom.P {
			switch {
			case strings.HasPrefix(style, "ListNumber"):
				list = atom.Ol
			case strings.HasPrefix(style, "ListBullet"), ppr.child("numPr") != nil:
				list = atom.Ul
			}
		}
	}

	if list != 0 {
		tag = atom.Li
	}
	block := element(tag)
	c.inlines(p.Children, block)
	if block.FirstChild == nil {
		return
	}

	if list == 0 {
		parent.AppendChild(block)
		return
	}
	// Consecutive list paragraphs share one list element.
	container := parent.LastChild
	if container == nil || container.Type != html.ElementNode || container.DataAtom != list {
		container = element(list)
		parent.AppendChild(container)
	}
	container.AppendChild(block)
}

var headings = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func headingFor(style string) atom.Atom {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return atom.H1
	}
	if rest, ok := strings.CutPrefix(s, "heading"); ok {
		if level, err := strconv.Atoi(rest); err == nil && level >= 1 && level <= len(headings) {
			return headings[level-1]
		}
	}
	return atom.P
}

// inlines converts paragraph content: runs, hyperlinks and tracked insertions.
func (c *converter) inlines(nodes []node, parent *html.Node) {
	for i := range nodes {
		n := &nodes[i]
		switch n.XMLName.Local {
		case "r":
			c.run(n, parent)
		case "hyperlink":
			c.hyperlink(n, parent)
		case "ins", "smartTag", "fldSimple", "customXml":
			c.inlines(n.Children, parent)
		case "sdt":
			if content := n.child("sdtContent"); content != nil {
				c.inlines(content.Children, parent)
			}
		}
	}
}

func (c *converter) hyperlink(n *node, parent *html.Node) {
	a := element(atom.A)
	href := ""
	if id, ok := n.attr("id"); ok {
		href = c.links[id]
	} else if anchor, ok := n.attr("anchor"); ok {
		href = "#" + anchor
	}
	if href != "" {
		a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: href})
	}
	c.inlines(n.Children, a)
	if a.FirstChild == nil {
		return
	}
	parent.AppendChild(a)
}

// run emits the text of a w:r wrapped in its formatting elements, outermost first.
func (c *converter) run(r *node, parent *html.Node) {
	var wrappers []atom.Atom
	if rpr := r.child("rPr"); rpr != nil {
		if rpr.on("b") {
			wrappers = append(wrappers, atom.Strong)
		}
		if rpr.on("i") {
			wrappers = append(wrappers, atom.Em)
		}
		if rpr.on("u") {
			wrappers = append(wrappers, atom.U)
		}
		if rpr.on("strike") || rpr.on("dstrike") {
			wrappers = append(wrappers, atom.S)
		}
		if va := rpr.child("vertAlign"); va != nil {
			switch v, _ := va.attr("val"); v {
			case "superscript":
				wrappers = append(wrappers, atom.Sup)
			case "subscript":
				wrappers = append(wrappers, atom.Sub)
			}
		}
	}

	content := &html.Node{Type: html.DocumentNode}
	for i := range r.Children {
		ch := &r.Children[i]
		switch ch.XMLName.Local {
		case "t":
			appendText(content, ch.Text)
		case "tab":
			appendText(content, "\t")
		case "noBreakHyphen":
			appendText(content, "-")
		case "cr":
			content.AppendChild(element(atom.Br))
		case "br":
			// Page and column breaks carry no meaning in a flowing document.
			if typ, _ := ch.attr("type"); typ == "" || typ == "textWrapping" {
				content.AppendChild(element(atom.Br))
			}
		}
	}
	if content.FirstChild == nil {
		return
	}

	target := parent
	for _, w := range wrappers {
		e := element(w)
		target.AppendChild(e)
		target = e
	}
	for n := content.FirstChild; n != nil; {
		next := n.NextSibling
		content.RemoveChild(n)
		if n.Type == html.TextNode {
			appendText(target, n.Data)
		} else {
			target.AppendChild(n)
		}
		n = next
	}
}

func (c *converter) table(t *node, parent *html.Node) {
	table := element(atom.Table)
	for i := range t.Children {
		tr := &t.Children[i]
		if tr.XMLName.Local != "tr" {
			continue
		}
		row := element(atom.Tr)
		for j := range tr.Children {
			tc := &tr.Children[j]
			if tc.XMLName.Local != "tc" {
				continue
			}
			cell := element(atom.Td)
			if tcpr := tc.child("tcPr"); tcpr != nil {
				if span := tcpr.child("gridSpan"); span != nil {
					if v, ok := span.attr("val"); ok && v != "1" {
						cell.Attr = append(cell.Attr, html.Attribute{Key: "colspan", Val: v})
					}
				}
			}
			c.blocks(tc.Children, cell)
			row.AppendChild(cell)
		}
		table.AppendChild(row)
	}
	parent.AppendChild(table)
}
