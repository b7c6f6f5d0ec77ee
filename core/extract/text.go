package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

const nbsp = " "

var (
	spaceAroundNewline = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	manyNewlines       = regexp.MustCompile(`\n{3,}`)
	manySpaces         = regexp.MustCompile(`[ \t]+`)
)

// extractText flattens an element's subtree into a single line of text.
// Nested block-level elements and <br> contribute a separator at their
// boundary; inline elements contribute their text with no separator, so
// "Hello <b>world</b>" stays one word apart, not two. The collected raw
// text is then whitespace-normalized.
func (w *walk) extractText(el *html.Node) string {
	var parts []string
	lastWasSep := true

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				t := strings.ReplaceAll(c.Data, nbsp, " ")
				if strings.TrimSpace(t) == "" {
					// Inter-tag whitespace still separates words.
					if !lastWasSep {
						parts = append(parts, " ")
						lastWasSep = true
					}
					continue
				}
				parts = append(parts, t)
				lastWasSep = false
			case html.ElementNode:
				name := strings.ToLower(c.Data)
				if name == "br" {
					if !lastWasSep {
						parts = append(parts, "\n")
						lastWasSep = true
					}
					continue
				}
				if w.e.blockTags[name] && !lastWasSep {
					parts = append(parts, "\n")
					lastWasSep = true
				}
				visit(c)
			}
		}
	}
	visit(el)

	return normalizeWhitespace(strings.Join(parts, ""))
}

// normalizeWhitespace collapses all runs of whitespace to single spaces.
// Newlines are first tightened and deduplicated, then folded into spaces,
// so a multi-line source renders as one clean line.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceAroundNewline.ReplaceAllString(s, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	s = strings.ReplaceAll(s, "\n", " ")
	s = manySpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// xpathSegment returns the element's path step with its 1-based position
// among same-tag siblings, e.g. "p[2]".
func xpathSegment(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	pos := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && strings.ToLower(sib.Data) == tag {
			pos++
		}
	}
	return fmt.Sprintf("%s[%d]", tag, pos)
}

// cssSegment returns a selector step for the element: by id when present,
// else by classes, else by tag with :nth-of-type.
func cssSegment(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	if id := attr(n, "id"); id != "" {
		return tag + "#" + id
	}
	if class := attr(n, "class"); class != "" {
		if fields := strings.Fields(class); len(fields) > 0 {
			return tag + "." + strings.Join(fields, ".")
		}
	}
	pos := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && strings.ToLower(sib.Data) == tag {
			pos++
		}
	}
	if pos > 1 {
		return fmt.Sprintf("%s:nth-of-type(%d)", tag, pos)
	}
	return tag
}

// renderMarkdown converts a single element's HTML to markdown. Conversion
// failures degrade to an empty string rather than failing the block.
func renderMarkdown(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
