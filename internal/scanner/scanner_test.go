package scanner

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "spaces",
			input:    "my lecture notes.jpg",
			expected: "my_lecture_notes.jpg",
		},
		{
			name:     "special characters",
			input:    "week#3 (final)!.png",
			expected: "week_3__final__.png",
		},
		{
			name:     "already safe",
			input:    "page-01_v2.jpeg",
			expected: "page-01_v2.jpeg",
		},
		{
			name:     "unicode",
			input:    "notes§.jpg",
			expected: "notes_.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClusterPoints(t *testing.T) {
	points := []point{
		{10, 10}, {12, 11}, {11, 9}, // one tight cluster
		{200, 200},                  // isolated
	}

	centroids := clusterPoints(points, 20)
	if len(centroids) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(centroids))
	}

	if centroids[0].dist(point{11, 10}) > 0.5 {
		t.Errorf("Unexpected first centroid: %+v", centroids[0])
	}
	if centroids[1].dist(point{200, 200}) > 1e-9 {
		t.Errorf("Unexpected second centroid: %+v", centroids[1])
	}
}

func TestSortCorners(t *testing.T) {
	shuffled := []point{
		{90, 90}, // bottom-right
		{10, 10}, // top-left
		{10, 90}, // bottom-left
		{90, 10}, // top-right
	}

	sorted := sortCorners(shuffled)
	want := []point{{10, 10}, {90, 10}, {90, 90}, {10, 90}}
	for i, w := range want {
		if sorted[i].dist(w) > 1e-9 {
			t.Errorf("Corner %d = %+v, want %+v", i, sorted[i], w)
		}
	}
}

func TestClassifyLines(t *testing.T) {
	verticalLine := line{a: 1, b: 0, c: -30}   // x = 30
	horizontalLine := line{a: 0, b: 1, c: -50} // y = 50
	diagonal := line{a: math.Cos(math.Pi / 3), b: math.Sin(math.Pi / 3), c: 0}

	vertical, horizontal := classifyLines([]line{verticalLine, horizontalLine, diagonal})
	if len(vertical) != 1 {
		t.Errorf("Expected 1 vertical line, got %d", len(vertical))
	}
	if len(horizontal) != 2 {
		t.Errorf("Expected 2 horizontal lines, got %d", len(horizontal))
	}
}

func TestIntersections(t *testing.T) {
	vertical := []line{{a: 1, b: 0, c: -10}}   // x = 10
	horizontal := []line{{a: 0, b: 1, c: -20}} // y = 20

	points := intersections(vertical, horizontal, 100, 100)
	if len(points) != 1 {
		t.Fatalf("Expected 1 intersection, got %d", len(points))
	}
	if points[0].dist(point{10, 20}) > 1e-9 {
		t.Errorf("Unexpected intersection: %+v", points[0])
	}

	// Crossings far outside the frame margin are rejected.
	farVertical := []line{{a: 1, b: 0, c: -1000}} // x = 1000
	if got := intersections(farVertical, horizontal, 100, 100); len(got) != 0 {
		t.Errorf("Expected out-of-frame intersection to be dropped, got %d", len(got))
	}
}

func TestHoughLinesFindsVerticalEdge(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		edges.SetGray(30, y, color.Gray{Y: 255})
	}

	lines := houghLines(edges, 30, 100)
	if len(lines) == 0 {
		t.Fatal("Expected at least one line")
	}

	// The strongest line is x = 30: normal angle 0, distance 30.
	l := lines[0]
	if math.Abs(l.a-1) > 0.05 || math.Abs(l.b) > 0.05 {
		t.Errorf("Expected a vertical line normal, got a=%f b=%f", l.a, l.b)
	}
	if math.Abs(l.c+30) > 1.5 {
		t.Errorf("Expected line at x=30, got c=%f", l.c)
	}

	vertical, _ := classifyLines(lines[:1])
	if len(vertical) != 1 {
		t.Error("Expected the detected line to classify as vertical")
	}
}

func TestHomographyIdentity(t *testing.T) {
	quad := []point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	h, err := homography(quad, quad)
	if err != nil {
		t.Fatalf("Failed to solve homography: %v", err)
	}

	for _, p := range []point{{0, 0}, {50, 50}, {100, 100}, {25, 75}} {
		x, y := applyHomography(h, p.x, p.y)
		if math.Abs(x-p.x) > 1e-6 || math.Abs(y-p.y) > 1e-6 {
			t.Errorf("Identity homography moved (%f,%f) to (%f,%f)", p.x, p.y, x, y)
		}
	}
}

func TestWarpPerspectiveDimensions(t *testing.T) {
	src := imaging.New(100, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	corners := []point{{10, 10}, {90, 10}, {90, 90}, {10, 90}}

	out := warpPerspective(src, corners, 200)
	bounds := out.Bounds()
	if bounds.Dy() != 200 {
		t.Errorf("Expected output height 200, got %d", bounds.Dy())
	}
	// A square region warps to a square output.
	if bounds.Dx() != 200 {
		t.Errorf("Expected output width 200, got %d", bounds.Dx())
	}
}

func TestBilinearSample(t *testing.T) {
	img := imaging.New(10, 10, color.NRGBA{R: 100, G: 150, B: 200, A: 255})

	got := bilinearSample(img, 4.5, 4.5)
	if got.R != 100 || got.G != 150 || got.B != 200 {
		t.Errorf("Expected uniform color sample, got %+v", got)
	}

	outside := bilinearSample(img, -5, 3)
	if outside.R != 0 || outside.G != 0 || outside.B != 0 || outside.A != 255 {
		t.Errorf("Expected black for out-of-bounds sample, got %+v", outside)
	}
}

func TestScanImageFallsBackOnFeaturelessImage(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "blank page.jpg")
	blank := imaging.New(200, 280, color.NRGBA{R: 180, G: 180, B: 180, A: 255})
	if err := imaging.Save(blank, inputPath); err != nil {
		t.Fatalf("Failed to save test image: %v", err)
	}

	s := New(842)
	outputDir := filepath.Join(dir, "out")
	result, err := s.ScanImage(inputPath, outputDir)
	if err != nil {
		t.Fatalf("Failed to scan image: %v", err)
	}
	if !result.Fallback {
		t.Error("Expected fallback on a featureless image")
	}
	if filepath.Base(result.Path) != "scan_blank_page.jpg" {
		t.Errorf("Unexpected output name: %s", result.Path)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("Expected output file on disk: %v", err)
	}
	if !strings.HasPrefix(result.Path, outputDir) {
		t.Errorf("Expected output under %s, got %s", outputDir, result.Path)
	}
}

func TestScanImageMissingInput(t *testing.T) {
	s := New(842)
	if _, err := s.ScanImage(filepath.Join(t.TempDir(), "missing.jpg"), t.TempDir()); err == nil {
		t.Fatal("Expected an error for a missing input file")
	}
}

func TestNewDefaultsTargetHeight(t *testing.T) {
	if s := New(0); s.TargetHeight != 842 {
		t.Errorf("Expected default target height 842, got %d", s.TargetHeight)
	}
	if s := New(600); s.TargetHeight != 600 {
		t.Errorf("Expected target height 600, got %d", s.TargetHeight)
	}
}
