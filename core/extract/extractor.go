// Package extract implements the Extractor interface.
// It walks the DOM of a rendered wiki page and flattens it into an ordered
// sequence of semantic blocks (paragraphs, list items, table rows,
// headings, …) with the positional metadata a UI needs to navigate back to
// the exact source element, plus an index of every heading encountered.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/gaurav-prasanna/confchunk/core"
)

// DefaultBlockTags are the element names treated as block-level. Everything
// else is inline and contributes text to the nearest enclosing block.
var DefaultBlockTags = []string{
	"p", "div", "blockquote", "pre",
	"ul", "ol", "table",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"section", "article", "figure", "figcaption",
}

// DefaultExcludedTags are dropped entirely, subtree included.
var DefaultExcludedTags = []string{"code", "script", "style", "hr", "nav", "header", "footer"}

// Config controls extraction behavior.
type Config struct {
	BlockTags       []string
	ExcludedTags    []string
	ExcludedClasses []string // class prefixes; whole subtree dropped on match
	ExcludedIDs     []string // id prefixes; whole subtree dropped on match
	IDPrefix        string
	IncludeMarkdown bool
}

// Extractor turns raw HTML into blocks and headings. Safe for concurrent
// use; all per-page state lives in the walk.
type Extractor struct {
	blockTags       map[string]bool
	excludedTags    map[string]bool
	excludedClasses []string
	excludedIDs     []string
	idPrefix        string
	includeMarkdown bool
}

// New creates an Extractor. Empty tag lists get the defaults.
func New(cfg Config) *Extractor {
	blockTags := cfg.BlockTags
	if len(blockTags) == 0 {
		blockTags = DefaultBlockTags
	}
	excludedTags := cfg.ExcludedTags
	if len(excludedTags) == 0 {
		excludedTags = DefaultExcludedTags
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = "EDU"
	}
	return &Extractor{
		blockTags:       toSet(blockTags),
		excludedTags:    toSet(excludedTags),
		excludedClasses: cfg.ExcludedClasses,
		excludedIDs:     cfg.ExcludedIDs,
		idPrefix:        prefix,
		includeMarkdown: cfg.IncludeMarkdown,
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			set[it] = true
		}
	}
	return set
}

// Extract parses htmlContent and returns the page's ordered blocks plus
// its heading index. Malformed markup is tolerated by the underlying
// parser; blocks with empty normalized text are silently dropped.
func (e *Extractor) Extract(htmlContent, pageID string) ([]*core.ContentBlock, []*core.HeadingInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing HTML: %w", err)
	}

	// Drop excluded subtrees before traversal so text extraction never
	// sees them.
	if len(e.excludedTags) > 0 {
		var sels []string
		for tag := range e.excludedTags {
			sels = append(sels, tag)
		}
		doc.Find(strings.Join(sels, ", ")).Remove()
	}
	if len(e.excludedClasses) > 0 || len(e.excludedIDs) > 0 {
		doc.Find("[class], [id]").Each(func(_ int, sel *goquery.Selection) {
			if len(sel.Nodes) > 0 && e.shouldExclude(sel.Nodes[0]) {
				sel.Remove()
			}
		})
	}

	// A line break renders as a separator, not as nothing.
	doc.Find("br").ReplaceWithHtml(" ")

	var root *html.Node
	if body := doc.Find("body"); body.Length() > 0 {
		root = body.Nodes[0]
	} else if len(doc.Nodes) > 0 {
		root = doc.Nodes[0]
	} else {
		return nil, nil, nil
	}

	w := &walk{e: e, pageID: pageID}
	w.element(root, nil, nil)
	return w.blocks, w.headings, nil
}

// shouldExclude reports whether an element's id or any of its classes
// starts with a configured prefix.
func (e *Extractor) shouldExclude(n *html.Node) bool {
	if id := attr(n, "id"); id != "" {
		for _, prefix := range e.excludedIDs {
			if strings.HasPrefix(id, prefix) {
				return true
			}
		}
	}
	if class := attr(n, "class"); class != "" {
		for _, cls := range strings.Fields(class) {
			for _, prefix := range e.excludedClasses {
				if strings.HasPrefix(cls, prefix) {
					return true
				}
			}
		}
	}
	return false
}

// walk holds the per-page traversal state.
type walk struct {
	e      *Extractor
	pageID string

	counter  int
	offset   int
	blocks   []*core.ContentBlock
	headings []*core.HeadingInfo
	stack    []*core.HeadingInfo
}

func (w *walk) element(n *html.Node, xpathParts, cssParts []string) {
	if n.Type != html.ElementNode {
		return
	}
	tag := strings.ToLower(n.Data)
	if w.e.excludedTags[tag] || w.e.shouldExclude(n) {
		return
	}

	curXPath := extend(xpathParts, xpathSegment(n))
	curCSS := extend(cssParts, cssSegment(n))

	if w.e.blockTags[tag] {
		w.block(n, tag, curXPath, curCSS)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.element(c, curXPath, curCSS)
	}
}

func (w *walk) block(n *html.Node, tag string, xpathParts, cssParts []string) {
	switch {
	case tag == "ul" || tag == "ol":
		w.list(n, xpathParts, cssParts)
	case tag == "table":
		w.table(n, xpathParts, cssParts)
	case isHeadingTag(tag):
		w.heading(n, tag, xpathParts, cssParts)
	case w.hasBlockChild(n):
		w.mixed(n, tag, xpathParts, cssParts)
	default:
		if text := w.extractText(n); text != "" {
			w.emit(text, tag, xpathParts, cssParts, n, true)
		}
	}
}

// mixed handles an element carrying both free text and block-level
// children, e.g. <div>intro<p>para</p>outro</div>. Each free-text run is
// flushed as its own block, in reading order, before descending into the
// nested block that follows it.
func (w *walk) mixed(n *html.Node, tag string, xpathParts, cssParts []string) {
	var buf []string
	flush := func() {
		joined := strings.TrimSpace(strings.Join(buf, " "))
		buf = buf[:0]
		if joined != "" {
			w.emit(joined, tag, xpathParts, cssParts, n, false)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				buf = append(buf, t)
			}
		case html.ElementNode:
			childTag := strings.ToLower(c.Data)
			if w.e.blockTags[childTag] {
				flush()
				w.element(c, xpathParts, cssParts)
			} else if !w.e.excludedTags[childTag] {
				if t := w.extractText(c); t != "" {
					buf = append(buf, t)
				}
			}
		}
	}
	flush()
}

// list explodes a list into one block per item. Nested lists inside an
// item are recursively exploded; free text around a nested list is kept as
// its own item block so nothing is silently lost.
func (w *walk) list(n *html.Node, xpathParts, cssParts []string) {
	idx := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || strings.ToLower(li.Data) != "li" {
			continue
		}
		idx++
		liXPath := extend(xpathParts, fmt.Sprintf("li[%d]", idx))
		liCSS := extend(cssParts, fmt.Sprintf("li:nth-of-type(%d)", idx))

		if !hasDirectList(li) {
			if text := w.extractText(li); text != "" {
				w.emit(text, "li", liXPath, liCSS, li, false)
			}
			continue
		}

		var buf []string
		flush := func() {
			joined := strings.TrimSpace(strings.Join(buf, " "))
			buf = buf[:0]
			if joined != "" {
				w.emit(joined, "li", liXPath, liCSS, li, false)
			}
		}

		for c := li.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if t := strings.TrimSpace(c.Data); t != "" {
					buf = append(buf, t)
				}
			case html.ElementNode:
				childTag := strings.ToLower(c.Data)
				if childTag == "ul" || childTag == "ol" {
					flush()
					// The nested list's own segment must stay on the
					// path, otherwise navigation breaks.
					nestedXPath := extend(liXPath, xpathSegment(c))
					nestedCSS := extend(liCSS, cssSegment(c))
					w.list(c, nestedXPath, nestedCSS)
				} else if t := w.extractText(c); t != "" {
					buf = append(buf, t)
				}
			}
		}
		flush()
	}
}

// table explodes a table into one block per row, concatenating the row's
// own direct cells with " | ". Rows of a nested table are never folded
// into the parent's rows: only rows inside thead/tbody/tfoot or directly
// under the table are considered, and only direct td/th cells are read.
func (w *walk) table(n *html.Node, xpathParts, cssParts []string) {
	type rowPath struct {
		row   *html.Node
		xpath []string
		css   []string
	}
	var rows []rowPath

	sections := directChildren(n, "thead", "tbody", "tfoot")
	if len(sections) > 0 {
		for _, sec := range sections {
			secXPath := extend(xpathParts, xpathSegment(sec))
			secCSS := extend(cssParts, cssSegment(sec))
			for _, tr := range directChildren(sec, "tr") {
				rows = append(rows, rowPath{tr, extend(secXPath, xpathSegment(tr)), extend(secCSS, cssSegment(tr))})
			}
		}
	} else {
		for _, tr := range directChildren(n, "tr") {
			rows = append(rows, rowPath{tr, extend(xpathParts, xpathSegment(tr)), extend(cssParts, cssSegment(tr))})
		}
	}

	for _, rp := range rows {
		cells := directChildren(rp.row, "td", "th")
		if len(cells) == 0 {
			continue
		}
		var parts []string
		for _, cell := range cells {
			if t := w.extractText(cell); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			w.emit(strings.Join(parts, " | "), "tr", rp.xpath, rp.css, rp.row, false)
		}
	}
}

// heading emits the heading's own block and maintains the heading stack:
// pushing first removes every stacked heading whose level is not strictly
// smaller, so the stack always equals the direct-ancestor chain.
func (w *walk) heading(n *html.Node, tag string, xpathParts, cssParts []string) {
	text := w.extractText(n)
	if text == "" {
		return
	}
	block := w.emit(text, tag, xpathParts, cssParts, n, true)

	info := &core.HeadingInfo{
		Level:      int(tag[1] - '0'),
		Text:       text,
		BlockID:    block.ID,
		BlockIndex: block.Index,
		HTMLID:     attr(n, "id"),
	}
	w.headings = append(w.headings, info)

	kept := w.stack[:0]
	for _, h := range w.stack {
		if h.Level < info.Level {
			kept = append(kept, h)
		}
	}
	w.stack = append(kept, info)
}

// emit registers a new block and advances the index and offset counters.
// A block is assigned the heading currently on top of the stack as its
// parent; for a heading block itself that is the heading one level up,
// since emit runs before the stack push.
func (w *walk) emit(text, blockType string, xpathParts, cssParts []string, n *html.Node, withMarkdown bool) *core.ContentBlock {
	block := &core.ContentBlock{
		Index:       w.counter,
		ID:          core.BlockID(w.e.idPrefix, w.pageID, w.counter),
		PageID:      w.pageID,
		BlockType:   blockType,
		Text:        text,
		XPath:       "/" + strings.Join(xpathParts, "/"),
		CSSSelector: strings.Join(cssParts, " > "),
		TextOffset:  w.offset,
		TextLength:  len(text),
		HTMLID:      attr(n, "id"),
	}
	if len(w.stack) > 0 {
		block.ParentHeadingID = w.stack[len(w.stack)-1].BlockID
	}
	if withMarkdown && w.e.includeMarkdown {
		block.Markdown = renderMarkdown(n)
	}

	w.blocks = append(w.blocks, block)
	w.counter++
	w.offset += len(text) + 1
	return block
}

func (w *walk) hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && w.e.blockTags[strings.ToLower(c.Data)] {
			return true
		}
	}
	return false
}

func isHeadingTag(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func hasDirectList(li *html.Node) bool {
	return len(directChildren(li, "ul", "ol")) > 0
}

func directChildren(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		name := strings.ToLower(c.Data)
		for _, t := range tags {
			if name == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// extend copies parts before appending so siblings never alias each
// other's path slices.
func extend(parts []string, seg string) []string {
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts...)
	return append(out, seg)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
