package processor

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimitedOCR(t *testing.T) {
	inner := &fakeOCR{lines: []OCRLine{{Text: "A", Confidence: 1}}}

	require.Same(t, inner, NewLimitedOCR(nil, inner).(*fakeOCR))

	limited := NewLimitedOCR(rate.NewLimiter(rate.Inf, 1), inner)
	require.Equal(t, "fake-ocr", limited.Name())

	lines, err := limited.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 1, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLimitedOCR(rate.NewLimiter(rate.Limit(0.001), 1), inner).Recognize(ctx, nil)
	require.Error(t, err)
	require.Equal(t, 1, inner.calls, "cancelled call never reaches the provider")
}

func TestSharedProseNERIsSingleton(t *testing.T) {
	a := SharedProseNER("")
	b := SharedProseNER("ignored")
	require.Same(t, a, b)
	require.Equal(t, "prose", a.Name())

	_, err := a.Entities(context.Background(), "Jane Doe")
	require.NoError(t, err)
}

func TestBoxFromRect(t *testing.T) {
	box := BoxFromRect(image.Rect(1, 1, 2, 2))
	require.Equal(t, BoundingBox{{1, 1}, {2, 1}, {2, 2}, {1, 2}}, box)
}
