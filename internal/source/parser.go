package source

import (
	"fmt"
	"path"
	"strings"

	"github.com/xxxsen/tierdoc/internal/model"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

type parseFunc func(data []byte) ([]string, error)

var parsers = map[string]parseFunc{
	".pdf":      parsePDF,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".txt":      parseText,
}

// Supported reports whether name has an extension a parser exists for.
func Supported(name string) bool {
	_, ok := parsers[strings.ToLower(path.Ext(name))]
	return ok
}

// Parse turns raw file content into a document with ordered chunks.
func Parse(name string, data []byte) (model.Document, error) {
	fn, ok := parsers[strings.ToLower(path.Ext(name))]
	if !ok {
		return model.Document{}, fmt.Errorf("unsupported file %s: %w", name, appErr.ErrInvalid)
	}
	texts, err := fn(data)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse %s: %w: %w", name, appErr.ErrMalformedDocument, err)
	}
	doc := model.Document{Name: name}
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		doc.Chunks = append(doc.Chunks, model.Chunk{Text: t, Position: len(doc.Chunks)})
	}
	return doc, nil
}

// splitParagraphs splits on blank lines and folds single line breaks.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		res     []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			res = append(res, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return res
}

func parseText(data []byte) ([]string, error) {
	if strings.ContainsRune(string(data), '\x00') {
		return nil, fmt.Errorf("binary content")
	}
	return splitParagraphs(string(data)), nil
}
