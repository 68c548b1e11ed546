package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/storage"
)

// card draws a dark w×h block tilted by tilt degrees (counter-clockwise on
// screen) on a white canvas.
func card(size, w, h int, tilt float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	rad := tilt * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-c, float64(y)+0.5-c
			u := cos*dx - sin*dy
			v := sin*dx + cos*dy
			if math.Abs(u) <= float64(w)/2 && math.Abs(v) <= float64(h)/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeSkewAngle(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{raw: -90, want: 0},
		{raw: -80, want: -10},
		{raw: -60, want: -30},
		{raw: -45, want: 45},
		{raw: -30, want: 30},
		{raw: -10, want: 10},
		{raw: -0.5, want: 0.5},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, NormalizeSkewAngle(tt.raw), 1e-9, "raw %v", tt.raw)
	}
}

func TestNormalizeSkewAngleRange(t *testing.T) {
	for raw := -90.0; raw < 0; raw += 0.25 {
		got := NormalizeSkewAngle(raw)
		require.Greater(t, got, -45.0, "raw %v", raw)
		require.LessOrEqual(t, got, 45.0, "raw %v", raw)
	}
}

func TestRawRectAngle(t *testing.T) {
	require.Equal(t, -90.0, RawRectAngle(Rect{Angle: 0}))
	require.Equal(t, -90.0, RawRectAngle(Rect{Angle: 90}))
	require.Equal(t, -90.0, RawRectAngle(Rect{Angle: -180}))
	require.InDelta(t, -80.0, RawRectAngle(Rect{Angle: 10}), 1e-9)
	require.InDelta(t, -10.0, RawRectAngle(Rect{Angle: -10}), 1e-9)
	require.InDelta(t, -10.0, RawRectAngle(Rect{Angle: 170}), 1e-9)
}

func TestConvexHullDropsInteriorAndCollinear(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {4, 0}, {4, 4}, {0, 4}, {2, 2}, {1, 3}}
	hull := ConvexHull(pts)
	require.ElementsMatch(t, []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}, hull)
}

func TestMinAreaRectAxisAligned(t *testing.T) {
	rect, ok := MinAreaRect([]Point{{10, 20}, {50, 20}, {50, 40}, {10, 40}, {30, 30}})
	require.True(t, ok)
	require.InDelta(t, 30, rect.Center.X, 1e-9)
	require.InDelta(t, 30, rect.Center.Y, 1e-9)
	require.InDelta(t, 800, rect.Width*rect.Height, 1e-9)
	require.Equal(t, -90.0, RawRectAngle(rect))

	_, ok = MinAreaRect(nil)
	require.False(t, ok)
}

func TestOtsuThresholdSeparatesTwoLevels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		if i%2 == 0 {
			g.Pix[i] = 40
		} else {
			g.Pix[i] = 200
		}
	}
	level := OtsuThreshold(g)
	require.GreaterOrEqual(t, level, uint8(40))
	require.Less(t, level, uint8(200))
}

func TestSkewAngle(t *testing.T) {
	tests := []struct {
		name string
		tilt float64
		want float64
	}{
		{name: "level", tilt: 0, want: 0},
		{name: "tilted counter-clockwise", tilt: 10, want: -10},
		{name: "tilted clockwise", tilt: -12, want: 12},
		{name: "tilted thirty", tilt: 30, want: -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := card(400, 260, 120, tt.tilt)
			got := SkewAngle(Invert(Grayscale(img)))
			require.InDelta(t, tt.want, got, 1.0)
			require.Greater(t, got, -45.0)
			require.LessOrEqual(t, got, 45.0)
		})
	}
}

func TestRotateLevelsTiltedCard(t *testing.T) {
	img := card(400, 260, 120, 10)
	angle := SkewAngle(Invert(Grayscale(img)))

	rotated := Rotate(img, angle)
	require.Equal(t, img.Bounds(), rotated.Bounds())
	require.InDelta(t, 0, SkewAngle(Invert(Grayscale(rotated))), 1.0)

	// exposed corners are black
	r, g, b, a := rotated.At(0, 0).RGBA()
	require.Equal(t, []uint32{0, 0, 0, 0xffff}, []uint32{r, g, b, a})
}

func TestEncodeByExtension(t *testing.T) {
	img := card(20, 10, 10, 0)

	data, err := Encode(img, "a.PNG")
	require.NoError(t, err)
	_, format, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "png", format)

	data, err = Encode(img, "a.jpeg")
	require.NoError(t, err)
	_, format, err = Decode(data)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)

	_, err = Encode(img, "a.gif")
	require.Error(t, err)
}

func newStores(t *testing.T) (*storage.FileStore, *storage.FileStore) {
	t.Helper()
	raw, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	processed, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return raw, processed
}

func TestCorrectCopiesLevelImageVerbatim(t *testing.T) {
	ctx := context.Background()
	raw, processed := newStores(t)

	data := encodePNG(t, card(200, 120, 60, 0))
	require.NoError(t, raw.Put(ctx, "level.png", data))

	require.NoError(t, NewSkewCorrector(raw, processed).Correct(ctx, "level.png"))

	out, err := processed.Get(ctx, "level.png")
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestCorrectRotatesTiltedImage(t *testing.T) {
	ctx := context.Background()
	raw, processed := newStores(t)

	data := encodePNG(t, card(400, 260, 120, 10))
	require.NoError(t, raw.Put(ctx, "tilted.png", data))

	require.NoError(t, NewSkewCorrector(raw, processed).Correct(ctx, "tilted.png"))

	out, err := processed.Get(ctx, "tilted.png")
	require.NoError(t, err)
	require.NotEqual(t, data, out)

	img, format, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())
	require.InDelta(t, 0, SkewAngle(Invert(Grayscale(img))), 1.0)

	raw2, err := raw.Get(ctx, "tilted.png")
	require.NoError(t, err)
	require.Equal(t, data, raw2, "raw image is never modified")
}

func TestCorrectRejectsUndecodableImage(t *testing.T) {
	ctx := context.Background()
	raw, processed := newStores(t)
	require.NoError(t, raw.Put(ctx, "broken.png", []byte("not an image")))

	err := NewSkewCorrector(raw, processed).Correct(ctx, "broken.png")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.ErrorImageRead))

	err = NewSkewCorrector(raw, processed).Correct(ctx, "missing.png")
	require.True(t, apperrors.HasCode(err, apperrors.ErrorImageRead))
}
