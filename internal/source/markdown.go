package source

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown yields one chunk per top-level block. Headings are carried
// into the block that follows them.
func parseMarkdown(data []byte) ([]string, error) {
	if strings.ContainsRune(string(data), '\x00') {
		return nil, fmt.Errorf("binary content")
	}
	reader := text.NewReader(data)
	doc := goldmark.New().Parser().Parse(reader)
	source := reader.Source()

	var (
		chunks  []string
		heading string
	)
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		var txt string
		switch n := node.(type) {
		case *ast.Heading:
			h := strings.TrimSpace(string(n.Text(source)))
			if heading != "" {
				heading += "\n" + h
			} else {
				heading = h
			}
			continue
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			txt = blockLines(n, source)
		default:
			txt = extractText(n, source)
		}
		if txt == "" {
			continue
		}
		if heading != "" {
			txt = heading + "\n" + txt
			heading = ""
		}
		chunks = append(chunks, txt)
	}
	if heading != "" {
		chunks = append(chunks, heading)
	}
	return chunks, nil
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimSpace(sb.String())
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		if node.Type() == ast.TypeBlock && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
