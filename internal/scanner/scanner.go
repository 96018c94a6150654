package scanner

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
)

// Refiner is an optional post-pass over the perspective-corrected image,
// e.g. an external document-unwarping model.
type Refiner interface {
	Refine(img image.Image) (image.Image, error)
}

// Scanner locates a document boundary in a photographed page, flattens it
// and normalizes contrast. When no plausible boundary is found the original
// image is kept, so an upload never fails on a hard-to-detect page.
type Scanner struct {
	// TargetHeight is the output height in pixels (A4 at 100 DPI by default).
	TargetHeight int
	// Refiner, when set, runs after the perspective pass.
	Refiner Refiner

	minLineVotes int
	maxLines     int
	clusterEps   float64
}

// New returns a Scanner producing images of the given height.
func New(targetHeight int) *Scanner {
	if targetHeight <= 0 {
		targetHeight = 842
	}
	return &Scanner{
		TargetHeight: targetHeight,
		minLineVotes: 30,
		maxLines:     100,
		clusterEps:   20,
	}
}

// Result describes one enhanced image.
type Result struct {
	// Path is the written output file.
	Path string
	// Fallback is true when no document boundary was found and the
	// original image was used.
	Fallback bool
}

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename replaces spaces and special characters with underscores.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// ScanImage enhances the image at inputPath and writes the result into
// outputDir as scan_<name>.jpg.
func (s *Scanner) ScanImage(inputPath, outputDir string) (*Result, error) {
	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not read image at %s: %w", inputPath, err)
	}

	out, fallback := s.enhance(src)
	if fallback {
		slog.Warn("No document boundary found, keeping original image", "path", inputPath)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, "scan_"+SanitizeFilename(base)+".jpg")
	if err := imaging.Save(out, outputPath, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to save enhanced image: %w", err)
	}

	slog.Info("Image enhanced", "input", inputPath, "output", outputPath, "fallback", fallback)
	return &Result{Path: outputPath, Fallback: fallback}, nil
}

// enhance runs the full pipeline. The second return value reports whether
// the original image was kept.
func (s *Scanner) enhance(src image.Image) (image.Image, bool) {
	corners, err := s.detectCorners(src)
	if err != nil {
		return s.normalize(src), true
	}

	warped := warpPerspective(src, corners, s.TargetHeight)

	var out image.Image = warped
	if s.Refiner != nil {
		refined, err := s.Refiner.Refine(warped)
		if err != nil {
			slog.Warn("Refiner pass failed, keeping perspective-corrected image", "error", err)
		} else {
			out = refined
		}
	}

	return s.normalize(out), false
}

// normalize applies the brightness/contrast pass applied to every output.
func (s *Scanner) normalize(img image.Image) image.Image {
	out := imaging.AdjustContrast(img, 10)
	return imaging.Sharpen(out, 0.5)
}

// detectCorners finds the four document corners, ordered top-left,
// top-right, bottom-right, bottom-left.
func (s *Scanner) detectCorners(src image.Image) ([]point, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	gray := toGray(imaging.Blur(src, 1.4))
	mask := adaptiveThreshold(gray, 15, 10)
	edges := edgeMap(mask)

	lines := houghLines(edges, s.minLineVotes, s.maxLines)
	vertical, horizontal := classifyLines(lines)
	slog.Debug("Edge lines found", "vertical", len(vertical), "horizontal", len(horizontal))
	if len(vertical) == 0 || len(horizontal) == 0 {
		return nil, fmt.Errorf("no edge lines found")
	}

	points := intersections(vertical, horizontal, width, height)
	if len(points) == 0 {
		return nil, fmt.Errorf("no line intersections found")
	}

	corners := clusterPoints(points, s.clusterEps)
	slog.Debug("Corners detected", "count", len(corners))

	if len(corners) > 4 {
		corners = selectBestCorners(corners, width, height)
	}
	if len(corners) < 4 {
		return nil, fmt.Errorf("detected %d corners, need 4", len(corners))
	}

	return sortCorners(corners), nil
}
