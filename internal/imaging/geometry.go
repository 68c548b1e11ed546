package imaging

import (
	"image"
	"math"
	"sort"
)

// Point is a pixel coordinate, y growing downwards
type Point struct {
	X, Y float64
}

// Rect is a rotated rectangle. Angle is the direction of one edge in
// degrees, measured counter-clockwise from the x axis with y pointing up.
type Rect struct {
	Center        Point
	Width, Height float64
	Angle         float64
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull returns the hull in counter-clockwise order without collinear
// points (Andrew's monotone chain).
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	pts := make([]Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// MinAreaRect finds the smallest rectangle enclosing points. One side of
// the optimum is always collinear with a hull edge, so every edge is tried.
// ok is false when there are no points.
func MinAreaRect(points []Point) (rect Rect, ok bool) {
	hull := ConvexHull(points)
	switch len(hull) {
	case 0:
		return Rect{}, false
	case 1:
		return Rect{Center: hull[0]}, true
	}

	bestArea := math.Inf(1)
	for i := range hull {
		p, q := hull[i], hull[(i+1)%len(hull)]
		dx, dy := q.X-p.X, q.Y-p.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length // along the edge
		vx, vy := -uy, ux              // normal

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, h := range hull {
			u := h.X*ux + h.Y*uy
			v := h.X*vx + h.Y*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		w, h := maxU-minU, maxV-minV
		if area := w * h; area < bestArea-1e-9 {
			bestArea = area
			cu, cv := (minU+maxU)/2, (minV+maxV)/2
			rect = Rect{
				Center: Point{X: cu*ux + cv*vx, Y: cu*uy + cv*vy},
				Width:  w,
				Height: h,
				// flip y so the angle reads counter-clockwise on screen
				Angle: math.Atan2(-dy, dx) * 180 / math.Pi,
			}
		}
	}
	return rect, true
}

// RawRectAngle folds a rectangle's edge direction into [-90, 0), the range
// a rotated rectangle's angle is conventionally reported in. An axis-aligned
// rectangle reports -90.
func RawRectAngle(r Rect) float64 {
	a := math.Mod(r.Angle, 90)
	if a < 0 {
		a += 90
	}
	if a >= 90 {
		a = 0
	}
	return a - 90
}

// NormalizeSkewAngle maps a raw rectangle angle to the correction, in
// (-45, 45], that levels the text. Positive means counter-clockwise.
func NormalizeSkewAngle(raw float64) float64 {
	var angle float64
	if raw < -45 {
		angle = -(90 + raw)
	} else {
		angle = -raw
	}
	if math.Abs(angle) < 1e-9 {
		return 0
	}
	return angle
}

// SkewAngle estimates the correction angle for a grayscale image whose
// foreground is already bright. An image without foreground is level.
func SkewAngle(g *image.Gray) float64 {
	level := OtsuThreshold(g)
	rect, ok := MinAreaRect(ForegroundPoints(g, level))
	if !ok {
		return 0
	}
	return NormalizeSkewAngle(RawRectAngle(rect))
}
