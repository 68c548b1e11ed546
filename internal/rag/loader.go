package rag

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/ledongthuc/pdf"
)

// Page is the plain text of one PDF page
type Page struct {
	Number int
	Text   string
}

// LoadPDF extracts the text of every non-empty page
func LoadPDF(data []byte) (pages []Page, err error) {
	// the reader panics on some malformed xref tables and fonts
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// SplitSentences groups text into chunks of n consecutive sentences
func SplitSentences(text string, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("failed to segment text: %w", err)
	}

	sentences := doc.Sentences()
	chunks := make([]string, 0, (len(sentences)+n-1)/n)
	for i := 0; i < len(sentences); i += n {
		end := min(i+n, len(sentences))
		parts := make([]string, 0, end-i)
		for _, s := range sentences[i:end] {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			chunks = append(chunks, strings.Join(parts, " "))
		}
	}
	return chunks, nil
}
