package assets

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// defaultPage is used when no template is configured.
const defaultPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Packer App</title>
</head>
<body>
</body>
</html>
`

// GenerateHTML injects a stylesheet link per style into the head and a
// script tag per script at the end of the body. References the template
// already carries are left alone and reported as warnings.
func GenerateHTML(template []byte, scripts, styles []string) ([]byte, []string, error) {
	if len(template) == 0 {
		template = []byte(defaultPage)
	}

	doc, err := html.Parse(bytes.NewReader(template))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse html template: %w", err)
	}

	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		// the parser always synthesises both, guard anyway
		return nil, nil, fmt.Errorf("html template has no head or body")
	}

	existing := existingRefs(doc)
	var warnings []string

	for _, href := range styles {
		if existing[href] {
			warnings = append(warnings, fmt.Sprintf("template already links %s", href))
			continue
		}
		head.AppendChild(element(atom.Link, html.Attribute{Key: "rel", Val: "stylesheet"}, html.Attribute{Key: "href", Val: href}))
	}
	for _, src := range scripts {
		if existing[src] {
			warnings = append(warnings, fmt.Sprintf("template already loads %s", src))
			continue
		}
		body.AppendChild(element(atom.Script, html.Attribute{Key: "src", Val: src}))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), warnings, nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// existingRefs collects script sources and stylesheet hrefs in the document.
func existingRefs(n *html.Node) map[string]bool {
	refs := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script:
				if v, ok := attr(n, "src"); ok {
					refs[v] = true
				}
			case atom.Link:
				if rel, _ := attr(n, "rel"); rel == "stylesheet" {
					if v, ok := attr(n, "href"); ok {
						refs[v] = true
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return refs
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
