package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// Grayscale converts any image to 8-bit luma
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// Invert flips intensities in place and returns g, so dark text on a light
// card becomes bright foreground.
func Invert(g *image.Gray) *image.Gray {
	for i, v := range g.Pix {
		g.Pix[i] = 255 - v
	}
	return g
}

// OtsuThreshold picks the level that maximizes between-class variance.
// Pixels strictly above the returned level are foreground.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB    float64
		weightB int
		best    float64
		level   uint8
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])

		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	return level
}

// ForegroundPoints returns, for every row, the leftmost and rightmost pixel
// brighter than level. Interior pixels never touch the convex hull, so
// they are skipped.
func ForegroundPoints(g *image.Gray, level uint8) []Point {
	b := g.Bounds()
	points := make([]Point, 0, 2*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		left, right := -1, -1
		for x, v := range row {
			if v > level {
				if left < 0 {
					left = x
				}
				right = x
			}
		}
		if left < 0 {
			continue
		}
		points = append(points, Point{X: float64(b.Min.X + left), Y: float64(y)})
		if right != left {
			points = append(points, Point{X: float64(b.Min.X + right), Y: float64(y)})
		}
	}
	return points
}
