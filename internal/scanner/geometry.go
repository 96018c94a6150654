package scanner

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

type point struct {
	x, y float64
}

func (p point) dist(q point) float64 {
	return math.Hypot(p.x-q.x, p.y-q.y)
}

// intersections returns the crossing points of every vertical/horizontal
// line pair that land within a 20% margin around the image frame.
func intersections(vertical, horizontal []line, width, height int) []point {
	const margin = 0.2
	w, h := float64(width), float64(height)

	var points []point
	for _, v := range vertical {
		for _, hl := range horizontal {
			det := v.a*hl.b - hl.a*v.b
			if math.Abs(det) < 1e-10 {
				continue
			}
			x := (v.b*hl.c - hl.b*v.c) / det
			y := (v.c*hl.a - hl.c*v.a) / det
			if x >= -w*margin && x <= w*(1+margin) && y >= -h*margin && y <= h*(1+margin) {
				points = append(points, point{x, y})
			}
		}
	}
	return points
}

// clusterPoints groups near-duplicate points (density clustering with a
// minimum cluster size of one: connected components under the eps radius)
// and returns one centroid per group.
func clusterPoints(points []point, eps float64) []point {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != -1 {
			continue
		}
		labels[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for j := 0; j < n; j++ {
				if labels[j] == -1 && points[cur].dist(points[j]) <= eps {
					labels[j] = next
					queue = append(queue, j)
				}
			}
		}
		next++
	}

	centroids := make([]point, next)
	counts := make([]int, next)
	for i, p := range points {
		centroids[labels[i]].x += p.x
		centroids[labels[i]].y += p.y
		counts[labels[i]]++
	}
	for i := range centroids {
		centroids[i].x /= float64(counts[i])
		centroids[i].y /= float64(counts[i])
	}
	return centroids
}

// selectBestCorners picks, for each image frame corner, the detected point
// closest to it.
func selectBestCorners(corners []point, width, height int) []point {
	w, h := float64(width), float64(height)
	frame := []point{{0, 0}, {w, 0}, {w, h}, {0, h}}

	selected := make([]point, 0, 4)
	for _, fc := range frame {
		best := corners[0]
		for _, c := range corners[1:] {
			if c.dist(fc) < best.dist(fc) {
				best = c
			}
		}
		selected = append(selected, best)
	}
	return selected
}

// sortCorners orders corners clockwise starting at top-left, by angle
// around the centroid.
func sortCorners(corners []point) []point {
	var cx, cy float64
	for _, c := range corners {
		cx += c.x
		cy += c.y
	}
	cx /= float64(len(corners))
	cy /= float64(len(corners))

	sorted := make([]point, len(corners))
	copy(sorted, corners)
	sort.Slice(sorted, func(i, j int) bool {
		ai := math.Atan2(sorted[i].y-cy, sorted[i].x-cx) + math.Pi
		aj := math.Atan2(sorted[j].y-cy, sorted[j].x-cx) + math.Pi
		return ai < aj
	})
	return sorted
}

// homography solves the 3x3 projective transform mapping the four src
// points onto the four dst points.
func homography(src, dst []point) ([9]float64, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		sx, sy := src[i].x, src[i].y
		dx, dy := dst[i].x, dst[i].y
		a.SetRow(2*i, []float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy})
		a.SetRow(2*i+1, []float64{0, 0, 0, sx, sy, 1, -dy * sx, -dy * sy})
		b.SetVec(2*i, dx)
		b.SetVec(2*i+1, dy)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return [9]float64{}, err
	}

	var out [9]float64
	for i := 0; i < 8; i++ {
		out[i] = h.AtVec(i)
	}
	out[8] = 1
	return out, nil
}

// warpPerspective flattens the quadrilateral bounded by corners (ordered
// top-left, top-right, bottom-right, bottom-left) into a rectangle scaled
// to targetHeight.
func warpPerspective(src image.Image, corners []point, targetHeight int) image.Image {
	width := math.Max(corners[0].dist(corners[1]), corners[2].dist(corners[3]))
	height := math.Max(corners[0].dist(corners[3]), corners[1].dist(corners[2]))
	if width < 1 || height < 1 {
		return src
	}

	scale := float64(targetHeight) / height
	outW := int(width * scale)
	outH := targetHeight
	if outW < 1 {
		return src
	}

	dst := []point{
		{0, 0},
		{float64(outW - 1), 0},
		{float64(outW - 1), float64(outH - 1)},
		{0, float64(outH - 1)},
	}

	// Map output pixels back into the source quadrilateral.
	inv, err := homography(dst, corners)
	if err != nil {
		return src
	}

	nrgba := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			fx, fy := applyHomography(inv, float64(x), float64(y))
			out.SetNRGBA(x, y, bilinearSample(nrgba, fx, fy))
		}
	}
	return out
}

func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return -1, -1
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

func bilinearSample(img *image.NRGBA, x, y float64) color.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return color.NRGBA{A: 255}
	}

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	blend := func(c00, c10, c01, c11 uint8) uint8 {
		top := float64(c00)*(1-fx) + float64(c10)*fx
		bottom := float64(c01)*(1-fx) + float64(c11)*fx
		return uint8(top*(1-fy) + bottom*fy)
	}

	p00 := img.NRGBAAt(x0, y0)
	p10 := img.NRGBAAt(x1, y0)
	p01 := img.NRGBAAt(x0, y1)
	p11 := img.NRGBAAt(x1, y1)
	return color.NRGBA{
		R: blend(p00.R, p10.R, p01.R, p11.R),
		G: blend(p00.G, p10.G, p01.G, p11.G),
		B: blend(p00.B, p10.B, p01.B, p11.B),
		A: 255,
	}
}
