package processor

import (
	"context"
	"image"

	"golang.org/x/time/rate"
)

type limitedOCR struct {
	limiter  *rate.Limiter
	provider OCRProvider
}

// NewLimitedOCR throttles calls to p. A nil limiter disables throttling.
func NewLimitedOCR(l *rate.Limiter, p OCRProvider) OCRProvider {
	if l == nil {
		return p
	}
	return &limitedOCR{
		limiter:  l,
		provider: p,
	}
}

func (p *limitedOCR) Name() string {
	return p.provider.Name()
}

func (p *limitedOCR) Recognize(ctx context.Context, img *image.Gray) ([]OCRLine, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return p.provider.Recognize(ctx, img)
}
