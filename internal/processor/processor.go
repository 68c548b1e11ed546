/**
 * Name Extractor
 *
 * Orchestrates name extraction from an identity-document scan:
 * - Skew correction of the raw upload into the processed store
 * - Line-level OCR with a confidence filter
 * - Per-fragment entity recognition for two-token person names
 * - Resolution of the top candidate and its bounding box
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
)

var tracer = otel.Tracer("github.com/adverant/nexus/idverify/internal/processor")

// Corrector writes a de-skewed copy of a raw image to the processed store
type Corrector interface {
	Correct(ctx context.Context, filename string) error
}

// Extractor composes the pipeline stages. It holds no per-request state.
type Extractor struct {
	corrector  Corrector
	locator    *TextLocator
	identifier *NameIdentifier
	logger     *logging.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(corrector Corrector, locator *TextLocator, identifier *NameIdentifier) (*Extractor, error) {
	if corrector == nil {
		return nil, fmt.Errorf("skew corrector is required")
	}

	if locator == nil {
		return nil, fmt.Errorf("text locator is required")
	}

	if identifier == nil {
		return nil, fmt.Errorf("name identifier is required")
	}

	return &Extractor{
		corrector:  corrector,
		locator:    locator,
		identifier: identifier,
		logger:     logging.NewLogger("Extractor"),
	}, nil
}

// Run de-skews filename and then extracts the name from it
func (e *Extractor) Run(ctx context.Context, filename string) (*ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Run")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	e.logger.Info("Step 1: Correcting skew", "filename", filename)
	if err := e.corrector.Correct(ctx, filename); err != nil {
		e.logger.Warn("Skew correction failed", "filename", filename, "error", err)
		return nil, err
	}

	return e.Extract(ctx, filename)
}

// Extract reads the processed copy of filename, which must already exist
func (e *Extractor) Extract(ctx context.Context, filename string) (*ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "processor.Extract")
	defer span.End()

	startTime := time.Now()

	e.logger.Info("Step 2: Locating text", "filename", filename)
	fragments, err := e.locator.Locate(ctx, filename)
	if err != nil {
		e.logger.Warn("Text location failed", "filename", filename, "error", err)
		return nil, err
	}

	e.logger.Info("Step 3: Identifying names", "filename", filename, "fragments", len(fragments))
	candidates, err := e.identifier.Identify(ctx, fragments)
	if err != nil {
		e.logger.Warn("Name identification failed", "filename", filename, "error", err)
		return nil, err
	}

	top := candidates[0]
	tokens := strings.Split(top.Name, " ")
	if len(tokens) != 2 {
		return nil, apperrors.NewMalformedNameError(top.Name, len(tokens))
	}

	result := &ExtractionResult{
		FullName:  top.Name,
		FirstName: tokens[0],
		LastName:  tokens[1],
		Box:       top.Fragment.Box,
	}

	e.logger.Info("Step 4: Name extracted",
		"filename", filename,
		"candidates", len(candidates),
		"fragment_index", top.Fragment.Index,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return result, nil
}
