package ingest

import (
	"strings"

	"github.com/xxxsen/tierdoc/internal/model"
)

// Group walks chunks in order and closes a block as soon as its word count
// reaches threshold. The last block may be shorter. Every chunk lands in
// exactly one block.
func Group(chunks []model.Chunk, threshold int) []model.Block {
	if len(chunks) == 0 {
		return nil
	}
	var (
		blocks  []model.Block
		current []model.Chunk
		words   int
	)
	flush := func() {
		blocks = append(blocks, model.Block{
			Index:     len(blocks),
			Chunks:    current,
			WordCount: words,
		})
		current = nil
		words = 0
	}
	for _, c := range chunks {
		current = append(current, c)
		words += WordCount(c.Text)
		if words >= threshold {
			flush()
		}
	}
	if len(current) > 0 {
		flush()
	}
	return blocks
}

// GroupDocument groups one document's chunks. Blocks never span documents.
func GroupDocument(doc model.Document, threshold int) []model.Block {
	blocks := Group(doc.Chunks, threshold)
	for i := range blocks {
		blocks[i].Document = doc.Name
	}
	return blocks
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// BlockText joins the block's chunk texts with newlines.
func BlockText(b model.Block) string {
	parts := make([]string, 0, len(b.Chunks))
	for _, c := range b.Chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}
