package chunk

import (
	"github.com/gaurav-prasanna/confchunk/core"
)

// headingIndexFromBlocks builds the heading lookup straight from the block
// list. The list can change during packing (materialized splits renumber
// the tail), which makes any previously built heading list stale; deriving
// the index from the blocks themselves is always current.
func headingIndexFromBlocks(blocks []*core.ContentBlock) map[int]*core.HeadingInfo {
	idx := make(map[int]*core.HeadingInfo)
	for _, b := range blocks {
		if !isHeadingType(b.BlockType) {
			continue
		}
		idx[b.Index] = &core.HeadingInfo{
			Level:      int(b.BlockType[1] - '0'),
			Text:       b.Text,
			BlockID:    b.ID,
			BlockIndex: b.Index,
			HTMLID:     b.HTMLID,
		}
	}
	return idx
}

// recomputeOffsets rewrites text_offset across the whole page. Offsets
// advance by len(text)+1 per block, matching extraction.
func recomputeOffsets(blocks []*core.ContentBlock) {
	offset := 0
	for _, b := range blocks {
		b.TextOffset = offset
		b.TextLength = len(b.Text)
		offset += len(b.Text) + 1
	}
}

// materializeSplit cuts the block at splitPos into a prefix that stays in
// place and a remainder inserted as a new block right after it, then
// renumbers the tail: index and id for every shifted block, heading
// references through an old→new id mapping, and offsets across the page.
// Each part ends up independently addressable, so a block index never
// lives in more than one chunk's core.
func (b *Builder) materializeSplit(
	blocks *[]*core.ContentBlock,
	splitPos int,
	prefixText, remainderText string,
	pageID string,
) {
	list := *blocks
	cur := list[splitPos]

	cur.Text = prefixText
	cur.TextLength = len(prefixText)
	// The prefix text no longer matches the source element's markdown.
	cur.Markdown = ""

	remainder := &core.ContentBlock{
		Index:           splitPos + 1, // tail renumbering fixes this anyway
		ID:              core.BlockID(b.idPrefix, pageID, splitPos+1),
		PageID:          pageID,
		BlockType:       cur.BlockType,
		Text:            remainderText,
		XPath:           cur.XPath,
		CSSSelector:     cur.CSSSelector,
		ParentHeadingID: cur.ParentHeadingID,
		HTMLID:          cur.HTMLID,
	}

	list = append(list, nil)
	copy(list[splitPos+2:], list[splitPos+1:])
	list[splitPos+1] = remainder

	headingIDMap := make(map[string]string)
	for j := splitPos + 1; j < len(list); j++ {
		blk := list[j]
		oldID := blk.ID
		blk.Index = j
		blk.ID = core.BlockID(b.idPrefix, pageID, j)
		if isHeadingType(blk.BlockType) {
			headingIDMap[oldID] = blk.ID
		}
	}

	if len(headingIDMap) > 0 {
		for _, blk := range list[splitPos+1:] {
			if mapped, ok := headingIDMap[blk.ParentHeadingID]; ok {
				blk.ParentHeadingID = mapped
			}
		}
	}

	recomputeOffsets(list)
	*blocks = list
}
