/**
 * OCR Types - Shared data structures for name extraction
 *
 * Common types used by the OCR and NER providers, the locator, the
 * identifier and the extractor.
 */

package processor

import (
	"context"
	"image"
)

// BoundingBox is four integer (x, y) corners: TL, TR, BR, BL.
// It marshals as [[x,y],[x,y],[x,y],[x,y]].
type BoundingBox [4][2]int

// BoxFromRect converts an axis-aligned rectangle
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{
		{r.Min.X, r.Min.Y},
		{r.Max.X, r.Min.Y},
		{r.Max.X, r.Max.Y},
		{r.Min.X, r.Max.Y},
	}
}

// OCRLine is one raw result from an OCR provider
type OCRLine struct {
	Box        BoundingBox
	Text       string
	Confidence float64 // 0..1
}

// OCRProvider recognizes English text lines in a grayscale image
type OCRProvider interface {
	Name() string
	Recognize(ctx context.Context, img *image.Gray) ([]OCRLine, error)
}

// Fragment is a cleaned OCR line that passed the confidence filter
type Fragment struct {
	Text       string
	Box        BoundingBox
	Confidence float64
	Index      int // position in the OCR output
}

// Entity is one span recognized by an NER provider
type Entity struct {
	Text  string
	Label string
}

// NERProvider recognizes entities in a single string
type NERProvider interface {
	Name() string
	Entities(ctx context.Context, text string) ([]Entity, error)
}

// Candidate is a two-token PERSON entity and the fragment it came from
type Candidate struct {
	Name     string
	Fragment Fragment
}

// ExtractionResult is the name found on a document
type ExtractionResult struct {
	FullName  string      `json:"full_name"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Box       BoundingBox `json:"box"`
}
