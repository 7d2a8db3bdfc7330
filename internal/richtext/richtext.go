// Package richtext runs event content through the configured HTML filters
// before it is placed in a feed, and strips markup from plain-text fields.
package richtext

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Filter rewrites a parsed HTML fragment in place.
type Filter func(nodes []*html.Node)

// Pipeline applies its filters in order to each rich-text value.
type Pipeline struct {
	names   []string
	filters []Filter
}

// New builds a pipeline from filter names. baseURL is used by absolute_urls;
// when it is empty that filter leaves links untouched.
func New(names []string, baseURL string) (*Pipeline, error) {
	p := &Pipeline{}
	for _, name := range names {
		var f Filter
		switch name {
		case "strip_scripts":
			f = stripScripts
		case "absolute_urls":
			base, err := parseBase(baseURL)
			if err != nil {
				return nil, err
			}
			f = absoluteURLs(base)
		default:
			return nil, fmt.Errorf("unknown richtext filter %q", name)
		}
		p.names = append(p.names, name)
		p.filters = append(p.filters, f)
	}
	return p, nil
}

func parseBase(baseURL string) (*url.URL, error) {
	if baseURL == "" {
		return nil, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return base, nil
}

// Names reports the configured filters in order.
func (p *Pipeline) Names() []string {
	return append([]string(nil), p.names...)
}

// Apply returns content with every filter applied. Content that cannot be
// parsed is returned unchanged.
func (p *Pipeline) Apply(content string) string {
	if content == "" || len(p.filters) == 0 {
		return content
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return content
	}

	for _, f := range p.filters {
		nodes = detach(nodes)
		f(nodes)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return content
		}
	}
	return buf.String()
}

// detach drops top-level nodes a previous filter removed.
func detach(nodes []*html.Node) []*html.Node {
	kept := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.RawNode && n.Data == "" {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
	fn(n)
}

func stripScripts(nodes []*html.Node) {
	for _, top := range nodes {
		walk(top, func(n *html.Node) {
			if n.Type != html.ElementNode {
				return
			}
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				if n.Parent != nil {
					n.Parent.RemoveChild(n)
				} else {
					// Top-level: blank it so detach skips it.
					n.Type = html.RawNode
					n.Data = ""
					n.FirstChild, n.LastChild = nil, nil
				}
				return
			}
			attrs := n.Attr[:0]
			for _, a := range n.Attr {
				if strings.HasPrefix(strings.ToLower(a.Key), "on") {
					continue
				}
				attrs = append(attrs, a)
			}
			n.Attr = attrs
		})
	}
}

func absoluteURLs(base *url.URL) Filter {
	return func(nodes []*html.Node) {
		if base == nil {
			return
		}
		for _, top := range nodes {
			walk(top, func(n *html.Node) {
				if n.Type != html.ElementNode {
					return
				}
				for i, a := range n.Attr {
					if a.Key != "href" && a.Key != "src" {
						continue
					}
					ref, err := url.Parse(strings.TrimSpace(a.Val))
					if err != nil || ref.IsAbs() || strings.HasPrefix(a.Val, "#") {
						continue
					}
					n.Attr[i].Val = base.ResolveReference(ref).String()
				}
			})
		}
	}
}

// StripTags returns the text content of an HTML string with tags removed
// and entities decoded.
func StripTags(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
