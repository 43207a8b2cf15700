package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// TocNode is one node of the table-of-contents tree. Depth starts at 1 for
// top-level entries; children are kept in document order.
type TocNode struct {
	Title    string
	Href     string
	Depth    int
	Children []TocNode
}

// TocEntry is one element of the flattened table of contents. Order reflects
// reading order and is preserved end-to-end.
type TocEntry struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Depth int    `json:"depth"`
}

// ResolveToc extracts the table of contents from the archive. Two strategies
// are tried in order, first non-empty tree wins: the EPUB 3 navigation
// document, then the legacy NCX. An empty result means the book has no
// navigable TOC — a caller-visible condition, not a parse failure.
func ResolveToc(a *Archive, pkg *Package) []TocNode {
	if item, ok := pkg.navItem(); ok {
		navPath := hrefPath(pkg.Resolve(item.Href))
		if data, err := a.Read(navPath); err == nil {
			if tree := parseNavToc(data, navPath); len(tree) > 0 {
				return tree
			}
		}
	}
	if item, ok := pkg.ncxItem(); ok {
		ncxPath := hrefPath(pkg.Resolve(item.Href))
		if data, err := a.Read(ncxPath); err == nil {
			if tree, err := parseNCX(data, ncxPath); err == nil && len(tree) > 0 {
				return tree
			}
		}
	}
	return nil
}

// Flatten converts the TOC tree to an ordered sequence by pre-order
// traversal: each node is emitted before its children, children in document
// order. The result is deterministic for identical input.
func Flatten(tree []TocNode) []TocEntry {
	var out []TocEntry
	var walk func(nodes []TocNode)
	walk = func(nodes []TocNode) {
		for _, n := range nodes {
			out = append(out, TocEntry{Title: n.Title, Href: n.Href, Depth: n.Depth})
			if len(n.Children) > 0 {
				walk(n.Children)
			}
		}
	}
	walk(tree)
	return out
}

// --- EPUB 3 navigation document ---

// parseNavToc parses the XHTML nav document and returns the tree under the
// nav element whose epub:type contains "toc".
func parseNavToc(data []byte, navPath string) []TocNode {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	nav := findTocNav(doc)
	if nav == nil {
		return nil
	}
	ol := findFirstElement(nav, "ol")
	if ol == nil {
		return nil
	}
	return parseNavList(ol, path.Dir(navPath), 1)
}

// parseNavList converts the li children of an ol into TocNodes at the given
// depth; a nested ol under an li becomes that node's children.
func parseNavList(ol *html.Node, baseDir string, depth int) []TocNode {
	var nodes []TocNode
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var node TocNode
		node.Depth = depth
		hasLink := false
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "a":
				if !hasLink {
					hasLink = true
					node.Title = collapseSpace(textContent(c))
					node.Href = resolveHref(baseDir, attrValue(c, "href"))
				}
			case "ol":
				node.Children = parseNavList(c, baseDir, depth+1)
			}
		}
		if !hasLink {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// findTocNav walks the document for a <nav> whose epub:type tokens include
// "toc".
func findTocNav(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "nav" {
		for _, t := range strings.Fields(attrValue(n, "epub:type")) {
			if t == "toc" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTocNav(c); found != nil {
			return found
		}
	}
	return nil
}

// findFirstElement does a depth-first search for the first descendant
// element with the given tag.
func findFirstElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findFirstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent collects all text beneath n.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// attrValue returns the value of the named attribute on n, or "".
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// --- legacy NCX ---

type ncxDocument struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	Label    ncxNavLabel   `xml:"navLabel"`
	Content  ncxContent    `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxNavLabel struct {
	Text string `xml:"text"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// parseNCX parses the legacy TOC file into a TocNode tree.
func parseNCX(data []byte, ncxPath string) ([]TocNode, error) {
	var doc ncxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse ncx %s: %v", ErrFormat, ncxPath, err)
	}
	return convertNavPoints(doc.NavMap.NavPoints, path.Dir(ncxPath), 1), nil
}

// convertNavPoints recursively converts navPoint elements, assigning depth
// by nesting level.
func convertNavPoints(points []ncxNavPoint, baseDir string, depth int) []TocNode {
	if len(points) == 0 {
		return nil
	}
	nodes := make([]TocNode, 0, len(points))
	for _, np := range points {
		nodes = append(nodes, TocNode{
			Title:    strings.TrimSpace(np.Label.Text),
			Href:     resolveHref(baseDir, strings.TrimSpace(np.Content.Src)),
			Depth:    depth,
			Children: convertNavPoints(np.Children, baseDir, depth+1),
		})
	}
	return nodes
}

// collapseSpace trims s and collapses internal whitespace runs to single
// spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
