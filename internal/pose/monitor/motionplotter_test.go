package monitor

import (
	"image/color"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AIchemizt/dance-analysis-server/internal/fsutil"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func plottableReport() *pose.Report {
	return &pose.Report{
		TotalFrames:     10,
		DurationSeconds: 0.3,
		Movement: pose.MovementSummary{
			MovementIntensity: map[string]float64{
				"left_wrist":  0.030,
				"right_wrist": 0.028,
				"left_ankle":  0.004,
				"right_ankle": 0.005,
			},
			SymmetryScore:      0.91,
			HighMovementFrames: []int{3, 7},
		},
		MotionStats: pose.MotionStatistics{
			MeanVelocity:   0.011,
			MaxVelocity:    0.029,
			VelocitySeries: []float64{0.004, 0.009, 0.029, 0.012, 0.008, 0.006, 0.025, 0.010, 0.005},
		},
	}
}

func TestNewMotionPlotter(t *testing.T) {
	mp := NewMotionPlotter(nil)

	if mp == nil {
		t.Fatal("NewMotionPlotter returned nil")
	}
	if mp.fs == nil {
		t.Error("expected nil fs to fall back to the OS filesystem")
	}
}

func TestMotionPlotter_PlotReport(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	mp := NewMotionPlotter(fs)

	written, err := mp.PlotReport(plottableReport(), 0.015, "plots/routine", "routine")
	if err != nil {
		t.Fatalf("PlotReport failed: %v", err)
	}

	if len(written) != 3 {
		t.Fatalf("expected 3 plots, got %d: %v", len(written), written)
	}

	wantSuffixes := []string{"routine_velocity.png", "routine_intensity.png", "routine_symmetry.png"}
	for i, suffix := range wantSuffixes {
		if filepath.Base(written[i]) != suffix {
			t.Errorf("plot %d: expected file %q, got %q", i, suffix, written[i])
		}
	}

	for _, file := range written {
		data, err := fs.ReadFile(file)
		if err != nil {
			t.Fatalf("plot %s was not written: %v", file, err)
		}
		if len(data) < len(pngMagic) {
			t.Fatalf("plot %s is truncated (%d bytes)", file, len(data))
		}
		for i := range pngMagic {
			if data[i] != pngMagic[i] {
				t.Errorf("plot %s does not start with the PNG magic", file)
				break
			}
		}
	}
}

func TestMotionPlotter_PlotReport_NilReport(t *testing.T) {
	mp := NewMotionPlotter(fsutil.NewMemoryFileSystem())

	if _, err := mp.PlotReport(nil, 0.015, "plots", "routine"); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestMotionPlotter_PlotReport_EmptyReport(t *testing.T) {
	mp := NewMotionPlotter(fsutil.NewMemoryFileSystem())

	written, err := mp.PlotReport(&pose.Report{}, 0.015, "plots", "routine")
	if err != nil {
		t.Fatalf("PlotReport failed: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("expected no plots for an empty report, got %v", written)
	}
}

func TestMotionPlotter_PlotReport_UnpairedJoints(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	mp := NewMotionPlotter(fs)

	report := plottableReport()
	report.Movement.MovementIntensity = map[string]float64{"left_wrist": 0.02}

	written, err := mp.PlotReport(report, 0.015, "plots", "routine")
	if err != nil {
		t.Fatalf("PlotReport failed: %v", err)
	}

	// Velocity and intensity render, but there is no pair to compare.
	if len(written) != 2 {
		t.Fatalf("expected 2 plots without joint pairs, got %d: %v", len(written), written)
	}
	for _, file := range written {
		if strings.HasSuffix(file, "_symmetry.png") {
			t.Errorf("expected no symmetry plot, got %q", file)
		}
	}
}

func TestMotionPlotter_PlotReport_DefaultLabel(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	mp := NewMotionPlotter(fs)

	written, err := mp.PlotReport(plottableReport(), 0.015, "plots", "")
	if err != nil {
		t.Fatalf("PlotReport failed: %v", err)
	}
	if len(written) == 0 {
		t.Fatal("expected plots to be written")
	}
	if filepath.Base(written[0]) != "run_velocity.png" {
		t.Errorf("expected empty label to fall back to 'run', got %q", written[0])
	}
}

func TestPairedJoints(t *testing.T) {
	intensity := map[string]float64{
		"left_wrist":  0.03,
		"right_wrist": 0.02,
		"left_knee":   0.01,
		"right_knee":  0.015,
		"left_elbow":  0.04,
		"nose":        0.001,
	}

	bases, left, right := pairedJoints(intensity)

	if len(bases) != 2 {
		t.Fatalf("expected 2 paired joints, got %d: %v", len(bases), bases)
	}
	if bases[0] != "knee" || bases[1] != "wrist" {
		t.Errorf("expected sorted bases [knee wrist], got %v", bases)
	}
	if left[1] != 0.03 || right[1] != 0.02 {
		t.Errorf("expected wrist pair (0.03, 0.02), got (%v, %v)", left[1], right[1])
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 30, 14, 35, 22, 0, time.UTC)
	result := FormatTimestamp(ts)

	expected := "20260130_143522"
	if result != expected {
		t.Errorf("expected '%s', got '%s'", expected, result)
	}
}

func TestMakePlotOutputDir_WithSourceFile(t *testing.T) {
	baseDir := "/tmp/plots"
	sourceFile := "/data/exports/spin-combo.json"

	result := MakePlotOutputDir(baseDir, sourceFile)

	if filepath.Dir(filepath.Dir(result)) != baseDir {
		t.Errorf("expected base dir '%s' in path, got '%s'", baseDir, result)
	}
	parent := filepath.Base(filepath.Dir(result))
	if parent != "spin-combo" {
		t.Errorf("expected parent 'spin-combo', got '%s'", parent)
	}
}

func TestMakePlotOutputDir_WithoutSourceFile(t *testing.T) {
	result := MakePlotOutputDir("/tmp/plots", "")

	base := filepath.Base(result)
	if len(base) < 4 || base[:4] != "run_" {
		t.Errorf("expected path to contain 'run_', got '%s'", result)
	}
}

func TestGenerateColors(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{0, 0},
		{1, 1},
		{3, 3},
		{12, 12},
	}

	for _, tt := range tests {
		colors := generateColors(tt.n)
		if len(colors) != tt.expected {
			t.Errorf("generateColors(%d): expected %d colours, got %d", tt.n, tt.expected, len(colors))
		}
	}

	// Palette entries are opaque and distinct.
	colors := generateColors(6)
	seen := make(map[uint32]bool)
	for i, c := range colors {
		rgba, ok := c.(color.RGBA)
		if !ok {
			t.Errorf("colour %d: expected color.RGBA, got %T", i, c)
			continue
		}
		if rgba.A != 255 {
			t.Errorf("colour %d: expected alpha 255, got %d", i, rgba.A)
		}
		key := uint32(rgba.R)<<16 | uint32(rgba.G)<<8 | uint32(rgba.B)
		if seen[key] {
			t.Error("duplicate colour found in generated palette")
		}
		seen[key] = true
	}
}

func TestHslToRGB(t *testing.T) {
	tests := []struct {
		h, s, l   float64
		expectedR uint8
		expectedG uint8
		expectedB uint8
	}{
		{0.0, 1.0, 0.5, 255, 0, 0},
		{1.0 / 3.0, 1.0, 0.5, 0, 255, 0},
		{2.0 / 3.0, 1.0, 0.5, 0, 0, 255},
		{0.0, 0.0, 1.0, 255, 255, 255},
		{0.0, 0.0, 0.0, 0, 0, 0},
		{0.0, 0.0, 0.5, 127, 127, 127},
	}

	for _, tt := range tests {
		r, g, b := hslToRGB(tt.h, tt.s, tt.l)

		if absInt(int(r)-int(tt.expectedR)) > 1 ||
			absInt(int(g)-int(tt.expectedG)) > 1 ||
			absInt(int(b)-int(tt.expectedB)) > 1 {
			t.Errorf("hslToRGB(%f, %f, %f): expected (%d, %d, %d), got (%d, %d, %d)",
				tt.h, tt.s, tt.l, tt.expectedR, tt.expectedG, tt.expectedB, r, g, b)
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
