package chunk

import (
	"net/url"
	"strings"

	"github.com/gaurav-prasanna/confchunk/core"
)

// makeFragment records the exact slice of a block that landed in a chunk.
// startChar/endChar are offsets inside the block's text; the absolute
// page offset is derived from the block's own text_offset.
func makeFragment(block *core.ContentBlock, text string, startChar, endChar int) core.Fragment {
	return core.Fragment{
		BlockIndex:    block.Index,
		BlockID:       block.ID,
		BlockType:     block.BlockType,
		XPath:         block.XPath,
		CSSSelector:   block.CSSSelector,
		HTMLID:        block.HTMLID,
		TextOffset:    block.TextOffset + startChar,
		TextLength:    len(text),
		FragmentStart: startChar,
		FragmentEnd:   endChar,
		Text:          text,
	}
}

// navigationURL builds the link that takes a reader to the chunk on the
// page. An element anchor is the most reliable target, a section anchor
// the next best; without either, a text-fragment URL at least highlights
// the opening text in browsers that support it.
func navigationURL(pageURL string, first core.Fragment, chunkText, nearestHeadingHTMLID string) string {
	if first.HTMLID != "" {
		return pageURL + "#" + first.HTMLID
	}
	if nearestHeadingHTMLID != "" {
		return pageURL + "#" + nearestHeadingHTMLID
	}
	fragment := strings.TrimSpace(clipRunes(chunkText, 80))
	return pageURL + "#:~:text=" + url.PathEscape(fragment)
}
