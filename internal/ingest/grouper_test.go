package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tierdoc/internal/model"
)

func words(n int, tag string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", tag, i)
	}
	return strings.Join(parts, " ")
}

func chunksOf(sizes ...int) []model.Chunk {
	res := make([]model.Chunk, 0, len(sizes))
	for i, n := range sizes {
		res = append(res, model.Chunk{Text: words(n, fmt.Sprintf("c%d_", i)), Position: i})
	}
	return res
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name      string
		sizes     []int
		threshold int
		want      [][]int
	}{
		{name: "empty", sizes: nil, threshold: 10, want: nil},
		{name: "three of 300 at 500", sizes: []int{300, 300, 300}, threshold: 500, want: [][]int{{0, 1}, {2}}},
		{name: "single large chunk", sizes: []int{800, 10}, threshold: 700, want: [][]int{{0}, {1}}},
		{name: "exact threshold closes", sizes: []int{5, 5, 1}, threshold: 10, want: [][]int{{0, 1}, {2}}},
		{name: "all under threshold", sizes: []int{1, 2, 3}, threshold: 100, want: [][]int{{0, 1, 2}}},
		{name: "empty chunk text", sizes: []int{0, 4, 0}, threshold: 4, want: [][]int{{0, 1}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := Group(chunksOf(tt.sizes...), tt.threshold)
			require.Len(t, blocks, len(tt.want))
			for i, b := range blocks {
				require.Equal(t, i, b.Index)
				var got []int
				for _, c := range b.Chunks {
					got = append(got, c.Position)
				}
				require.Equal(t, tt.want[i], got)
			}
		})
	}
}

func TestGroupProperties(t *testing.T) {
	sizes := []int{12, 1, 40, 7, 7, 7, 3, 90, 2, 2, 2, 0, 15, 33}
	chunks := chunksOf(sizes...)
	for _, threshold := range []int{1, 5, 20, 50, 1000} {
		blocks := Group(chunks, threshold)

		// coverage: concatenation reproduces the input in order
		var flat []model.Chunk
		for _, b := range blocks {
			flat = append(flat, b.Chunks...)
		}
		require.Equal(t, chunks, flat)

		// threshold: every block but the last reaches it, and dropping its
		// last chunk would fall below it
		for i, b := range blocks {
			require.NotEmpty(t, b.Chunks)
			sum := 0
			for _, c := range b.Chunks {
				sum += WordCount(c.Text)
			}
			require.Equal(t, sum, b.WordCount)
			if i < len(blocks)-1 {
				require.GreaterOrEqual(t, b.WordCount, threshold)
				last := WordCount(b.Chunks[len(b.Chunks)-1].Text)
				require.Less(t, b.WordCount-last, threshold)
			}
		}

		// determinism
		require.Equal(t, blocks, Group(chunks, threshold))
	}
}

func TestGroupDocument(t *testing.T) {
	doc := model.Document{Name: "paper.pdf", Chunks: chunksOf(3, 3, 3)}
	blocks := GroupDocument(doc, 5)
	require.Len(t, blocks, 2)
	for _, b := range blocks {
		require.Equal(t, "paper.pdf", b.Document)
	}
	require.Empty(t, GroupDocument(model.Document{Name: "empty.txt"}, 5))
}

func TestBlockText(t *testing.T) {
	b := model.Block{Chunks: []model.Chunk{{Text: "first"}, {Text: "second"}}}
	require.Equal(t, "first\nsecond", BlockText(b))
}
