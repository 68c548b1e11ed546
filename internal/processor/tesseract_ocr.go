/**
 * Tesseract OCR
 *
 * Offline line-level OCR through gosseract. One client is shared by the
 * whole process and guarded by a mutex, since a Tesseract handle must not
 * be used from two goroutines at once.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Language       string // defaults to "eng"
	TessdataPrefix string
}

// TesseractOCR handles OCR using Tesseract
type TesseractOCR struct {
	cfg TesseractConfig

	mu     sync.Mutex
	client *gosseract.Client
}

var (
	tesseractOnce sync.Once
	tesseractInst *TesseractOCR
)

// SharedTesseract returns the process-wide Tesseract provider. The config
// of the first call wins.
func SharedTesseract(cfg TesseractConfig) *TesseractOCR {
	tesseractOnce.Do(func() {
		if cfg.Language == "" {
			cfg.Language = "eng"
		}
		tesseractInst = &TesseractOCR{cfg: cfg}
	})
	return tesseractInst
}

func (t *TesseractOCR) Name() string { return "tesseract" }

// init creates the client on first use; callers hold t.mu
func (t *TesseractOCR) init() error {
	if t.client != nil {
		return nil
	}
	client := gosseract.NewClient()
	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			client.Close()
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.cfg.Language); err != nil {
		client.Close()
		return fmt.Errorf("set language: %w", err)
	}
	t.client = client
	return nil
}

// Recognize returns one OCRLine per text line Tesseract finds
func (t *TesseractOCR) Recognize(ctx context.Context, img *image.Gray) ([]OCRLine, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode for tesseract: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := t.init(); err != nil {
		return nil, err
	}

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	lines := make([]OCRLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, OCRLine{
			Box:        BoxFromRect(b.Box),
			Text:       text,
			Confidence: b.Confidence / 100.0,
		})
	}

	return lines, nil
}

// Close releases the Tesseract handle
func (t *TesseractOCR) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
