package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gaurav-prasanna/confchunk/core"
)

func TestNormalizeLeavesFittingBlocksAlone(t *testing.T) {
	b := New(testStrategy(t), Config{ChunkSize: 100, ChunkOverlap: 10})
	blocks := makeBlocks(
		[2]string{"h1", "Title"},
		[2]string{"p", "Short paragraph."},
	)
	norm, headings := b.Normalize(blocks, headingsOf(blocks), "100", "T")
	if len(norm) != 2 {
		t.Fatalf("got %d blocks, want 2", len(norm))
	}
	if norm[1].Text != "Short paragraph." || norm[1].ParentHeadingID != norm[0].ID {
		t.Errorf("blocks = %+v", norm)
	}
	if len(headings) != 1 || headings[0].BlockIndex != 0 {
		t.Errorf("headings = %+v", headings)
	}
}

func TestNormalizeSplitsOversizedBlock(t *testing.T) {
	sentences := make([]string, 30)
	for i := range sentences {
		sentences[i] = fmt.Sprintf("Sentence number %d ends here.", i)
	}
	long := strings.Join(sentences, " ")

	b := New(testStrategy(t), Config{ChunkSize: 40, ChunkOverlap: 5})
	blocks := makeBlocks(
		[2]string{"h1", "Data"},
		[2]string{"p", long},
		[2]string{"p", "Trailing paragraph."},
	)
	norm, headings := b.Normalize(blocks, headingsOf(blocks), "100", "T")
	if len(norm) <= 3 {
		t.Fatalf("oversized block was not split: %d blocks", len(norm))
	}

	// Contiguous indices, regenerated ids, contiguous offsets.
	offset := 0
	for i, blk := range norm {
		if blk.Index != i {
			t.Errorf("block %d has index %d", i, blk.Index)
		}
		if blk.ID != core.BlockID("EDU", "100", i) {
			t.Errorf("block %d id = %q", i, blk.ID)
		}
		if blk.TextOffset != offset {
			t.Errorf("block %d offset = %d, want %d", i, blk.TextOffset, offset)
		}
		offset += len(blk.Text) + 1
	}

	// No content lost and split parts stay in reading order.
	var mid []string
	for _, blk := range norm[1 : len(norm)-1] {
		mid = append(mid, blk.Text)
	}
	if strings.Join(mid, " ") != long {
		t.Errorf("split parts do not reproduce the original text")
	}

	// Heading references survive the re-index.
	if len(headings) != 1 {
		t.Fatalf("headings = %+v", headings)
	}
	if headings[0].BlockID != norm[0].ID {
		t.Errorf("heading block_id = %q, want %q", headings[0].BlockID, norm[0].ID)
	}
	for _, blk := range norm[1:] {
		if blk.ParentHeadingID != norm[0].ID {
			t.Errorf("block %d parent = %q, want %q", blk.Index, blk.ParentHeadingID, norm[0].ID)
		}
	}
}

func TestNormalizeNeverSplitsSentencesUnlessAlone(t *testing.T) {
	sentences := make([]string, 20)
	for i := range sentences {
		sentences[i] = fmt.Sprintf("Sentence %d closes now.", i)
	}
	long := strings.Join(sentences, " ")

	b := New(testStrategy(t), Config{ChunkSize: 40, ChunkOverlap: 5})
	blocks := makeBlocks([2]string{"p", long})
	norm, _ := b.Normalize(blocks, nil, "100", "T")

	for _, blk := range norm {
		if !strings.HasSuffix(blk.Text, ".") {
			t.Errorf("part %q ends mid-sentence", blk.Text)
		}
	}
}

func TestNormalizeDropsEmptyBlocks(t *testing.T) {
	b := New(testStrategy(t), Config{ChunkSize: 50})
	blocks := makeBlocks(
		[2]string{"p", "kept"},
		[2]string{"p", "   "},
		[2]string{"p", "also kept"},
	)
	norm, _ := b.Normalize(blocks, nil, "100", "T")
	if len(norm) != 2 || norm[0].Text != "kept" || norm[1].Text != "also kept" {
		t.Errorf("norm = %+v", norm)
	}
}

func TestMaterializeSplitRenumbersTail(t *testing.T) {
	b := New(testStrategy(t), Config{ChunkSize: 50})
	blocks := makeBlocks(
		[2]string{"p", "first part second part"},
		[2]string{"h2", "Later"},
		[2]string{"p", "tail paragraph"},
	)
	laterOldID := blocks[1].ID
	if blocks[2].ParentHeadingID != laterOldID {
		t.Fatalf("fixture wiring broken")
	}

	b.materializeSplit(&blocks, 0, "first part", "second part", "100")

	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(blocks))
	}
	if blocks[0].Text != "first part" || blocks[1].Text != "second part" {
		t.Errorf("split texts = %q, %q", blocks[0].Text, blocks[1].Text)
	}
	if blocks[1].BlockType != "p" || blocks[1].ParentHeadingID != blocks[0].ParentHeadingID {
		t.Errorf("remainder block = %+v", blocks[1])
	}
	offset := 0
	for i, blk := range blocks {
		if blk.Index != i || blk.ID != core.BlockID("EDU", "100", i) {
			t.Errorf("block %d = index %d id %q", i, blk.Index, blk.ID)
		}
		if blk.TextOffset != offset {
			t.Errorf("block %d offset = %d, want %d", i, blk.TextOffset, offset)
		}
		offset += len(blk.Text) + 1
	}
	// The shifted heading got a fresh id and its child follows it.
	if blocks[2].BlockType != "h2" {
		t.Fatalf("blocks out of order: %+v", blocks)
	}
	if blocks[3].ParentHeadingID != blocks[2].ID {
		t.Errorf("tail parent = %q, want %q", blocks[3].ParentHeadingID, blocks[2].ID)
	}
}
