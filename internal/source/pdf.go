package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts page text, drops running headers and footers, and
// splits what is left into paragraphs.
func parsePDF(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf content")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, txt)
	}
	var chunks []string
	for _, page := range stripRunningLines(pages) {
		chunks = append(chunks, splitParagraphs(page)...)
	}
	return chunks, nil
}

// stripRunningLines removes first and last lines that repeat on more than
// half of the pages. Single page documents are returned unchanged.
func stripRunningLines(pages []string) []string {
	if len(pages) < 2 {
		return pages
	}
	type edges struct {
		lines       []string
		first, last int
	}
	counts := map[string]int{}
	split := make([]edges, len(pages))
	for i, p := range pages {
		lines := strings.Split(strings.ReplaceAll(p, "\r\n", "\n"), "\n")
		e := edges{lines: lines, first: -1, last: -1}
		for j, line := range lines {
			lines[j] = strings.TrimSpace(line)
			if lines[j] == "" {
				continue
			}
			if e.first < 0 {
				e.first = j
			}
			e.last = j
		}
		split[i] = e
		if e.first < 0 {
			continue
		}
		counts[lines[e.first]]++
		if e.last != e.first && lines[e.last] != lines[e.first] {
			counts[lines[e.last]]++
		}
	}
	res := make([]string, len(pages))
	for i, e := range split {
		if e.first >= 0 {
			first, last := e.lines[e.first], e.lines[e.last]
			if counts[first]*2 > len(pages) {
				e.lines[e.first] = ""
			}
			if counts[last]*2 > len(pages) {
				e.lines[e.last] = ""
			}
		}
		res[i] = strings.Join(e.lines, "\n")
	}
	return res
}
