package processor

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/imaging"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/storage"
)

// DefaultConfidenceThreshold is the OCR confidence a line must exceed
const DefaultConfidenceThreshold = 0.25

// TextLocator runs OCR over processed images
type TextLocator struct {
	store     storage.ImageStore
	ocr       OCRProvider
	threshold float64
	logger    *logging.Logger
}

func NewTextLocator(processed storage.ImageStore, ocr OCRProvider, threshold float64) *TextLocator {
	return &TextLocator{
		store:     processed,
		ocr:       ocr,
		threshold: threshold,
		logger:    logging.NewLogger("TextLocator"),
	}
}

// Locate returns the cleaned fragments of filename in OCR order. Lines at or
// below the confidence threshold are dropped, as are lines with no letters.
func (l *TextLocator) Locate(ctx context.Context, filename string) ([]Fragment, error) {
	ctx, span := tracer.Start(ctx, "processor.Locate")
	defer span.End()

	data, err := l.store.Get(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewImageReadError(filename, err)
	}
	if err != nil {
		return nil, apperrors.NewStorageFailedError("read processed image", err)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, apperrors.NewImageReadError(filename, err)
	}

	lines, err := l.ocr.Recognize(ctx, imaging.Invert(imaging.Grayscale(img)))
	if err != nil {
		return nil, apperrors.NewOCRFailedError(l.ocr.Name(), err)
	}

	fragments := make([]Fragment, 0, len(lines))
	for i, line := range lines {
		if line.Confidence <= l.threshold {
			l.logger.Debug("Dropping low-confidence line", "filename", filename, "index", i, "confidence", line.Confidence)
			continue
		}
		text := CleanText(line.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text:       text,
			Box:        line.Box,
			Confidence: line.Confidence,
			Index:      i,
		})
	}

	span.SetAttributes(
		attribute.Int("ocr.lines", len(lines)),
		attribute.Int("ocr.fragments", len(fragments)),
	)
	return fragments, nil
}

// CleanText keeps letters and spaces only, then title-cases each word:
// "j0hn SMITH!" becomes "Jhn Smith".
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
		case r == ' ':
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
