package scanner

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// line is a normalized line in the form ax + by + c = 0, with a^2 + b^2 = 1.
type line struct {
	a, b, c float64
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// adaptiveThreshold builds an inverted binary mask: a pixel is foreground
// when it is darker than the local window mean minus offset. The window
// mean uses an integral image so the pass stays linear in pixel count.
func adaptiveThreshold(gray *image.Gray, window, offset int) *image.Gray {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := image.NewGray(bounds)

	integral := make([]int64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	half := window / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(0, x-half), max(0, y-half)
			x1, y1 := min(w-1, x+half), min(h-1, y+half)
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			mean := sum / area
			v := int64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			if v < mean-int64(offset) {
				mask.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}

// edgeMap marks pixels whose Sobel gradient magnitude on the mask exceeds
// the edge threshold.
func edgeMap(mask *image.Gray) *image.Gray {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	edges := image.NewGray(bounds)

	at := func(x, y int) int {
		return int(mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	const threshold = 255
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if abs(gx)+abs(gy) >= threshold {
				edges.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 255})
			}
		}
	}
	return edges
}

// houghLines extracts up to maxLines straight lines from the edge map using
// a standard Hough accumulator (1px rho step, 1 degree theta step). Peaks
// close to an already accepted line are suppressed.
func houghLines(edges *image.Gray, minVotes, maxLines int) []line {
	bounds := edges.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))

	const thetaSteps = 180
	sin := make([]float64, thetaSteps)
	cos := make([]float64, thetaSteps)
	for t := 0; t < thetaSteps; t++ {
		theta := float64(t) * math.Pi / thetaSteps
		sin[t], cos[t] = math.Sin(theta), math.Cos(theta)
	}

	// rho in [-diag, diag] offset by diag
	acc := make([]int, (2*diag+1)*thetaSteps)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				continue
			}
			for t := 0; t < thetaSteps; t++ {
				rho := int(math.Round(float64(x)*cos[t] + float64(y)*sin[t]))
				acc[(rho+diag)*thetaSteps+t]++
			}
		}
	}

	type peak struct {
		votes, rho, theta int
	}
	var peaks []peak
	for r := 0; r <= 2*diag; r++ {
		for t := 0; t < thetaSteps; t++ {
			if v := acc[r*thetaSteps+t]; v >= minVotes {
				peaks = append(peaks, peak{votes: v, rho: r - diag, theta: t})
			}
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })

	var lines []line
	var accepted []peak
	for _, p := range peaks {
		if len(lines) >= maxLines {
			break
		}
		near := false
		for _, a := range accepted {
			dTheta := abs(p.theta - a.theta)
			if dTheta > thetaSteps/2 {
				dTheta = thetaSteps - dTheta
			}
			if abs(p.rho-a.rho) < 10 && dTheta < 5 {
				near = true
				break
			}
		}
		if near {
			continue
		}
		accepted = append(accepted, p)
		lines = append(lines, line{
			a: cos[p.theta],
			b: sin[p.theta],
			c: -float64(p.rho),
		})
	}
	return lines
}

// classifyLines splits lines into near-vertical and near-horizontal sets.
// The normal angle theta is near 0 (or pi) for vertical lines and near
// pi/2 for horizontal ones.
func classifyLines(lines []line) (vertical, horizontal []line) {
	for _, l := range lines {
		theta := math.Atan2(l.b, l.a) * 180 / math.Pi
		if theta < 0 {
			theta += 180
		}
		if theta < 45 || theta > 135 {
			vertical = append(vertical, l)
		} else {
			horizontal = append(horizontal, l)
		}
	}
	return vertical, horizontal
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
