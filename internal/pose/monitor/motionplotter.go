// Package monitor renders post-analysis PNG summaries of a run's movement
// so a routine can be reviewed without the web dashboard.
package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/AIchemizt/dance-analysis-server/internal/fsutil"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
)

// MotionPlotter writes movement charts for analyzed runs as PNG files.
// Rendering goes through a FileSystem so tests can capture output in memory.
type MotionPlotter struct {
	fs fsutil.FileSystem
}

// NewMotionPlotter creates a plotter. A nil fs falls back to the OS
// filesystem.
func NewMotionPlotter(fs fsutil.FileSystem) *MotionPlotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &MotionPlotter{fs: fs}
}

// PlotReport writes the charts for one analyzed run into outputDir and
// returns the paths written. Charts whose data is absent from the report are
// skipped: a run with no velocity series gets no velocity plot.
// threshold is the peak-velocity cutoff drawn as a rule on the velocity
// chart, normally the same value the analysis ran with.
func (mp *MotionPlotter) PlotReport(report *pose.Report, threshold float64, outputDir, runLabel string) ([]string, error) {
	if report == nil {
		return nil, fmt.Errorf("no report to plot")
	}
	if err := mp.fs.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	label := runLabel
	if label == "" {
		label = "run"
	}

	var written []string

	if len(report.MotionStats.VelocitySeries) > 0 {
		file := filepath.Join(outputDir, fmt.Sprintf("%s_velocity.png", label))
		if err := mp.plotVelocity(report, threshold, label, file); err != nil {
			return written, err
		}
		written = append(written, file)
	}

	if len(report.Movement.MovementIntensity) > 0 {
		file := filepath.Join(outputDir, fmt.Sprintf("%s_intensity.png", label))
		if err := mp.plotIntensity(report, label, file); err != nil {
			return written, err
		}
		written = append(written, file)
	}

	if bases, _, _ := pairedJoints(report.Movement.MovementIntensity); len(bases) > 0 {
		file := filepath.Join(outputDir, fmt.Sprintf("%s_symmetry.png", label))
		if err := mp.plotSymmetry(report, label, file); err != nil {
			return written, err
		}
		written = append(written, file)
	}

	return written, nil
}

// plotVelocity draws the smoothed center-of-mass velocity over the run with
// the peak threshold as a dashed rule and the detected peaks marked.
func (mp *MotionPlotter) plotVelocity(report *pose.Report, threshold float64, label, file string) error {
	series := report.MotionStats.VelocitySeries

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Movement Velocity", label)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Velocity (normalized units/frame)"

	colors := generateColors(3)

	// Velocity sample i describes the displacement arriving at frame i+1.
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = colors[2]
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("velocity", line)

	rulePts := plotter.XYs{
		{X: 1, Y: threshold},
		{X: float64(len(series)), Y: threshold},
	}
	rule, err := plotter.NewLine(rulePts)
	if err != nil {
		return err
	}
	rule.Color = colors[1]
	rule.Width = vg.Points(1)
	rule.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(rule)
	p.Legend.Add("threshold", rule)

	peakPts := make(plotter.XYs, 0, len(report.Movement.HighMovementFrames))
	for _, frame := range report.Movement.HighMovementFrames {
		if frame < 1 || frame > len(series) {
			continue
		}
		peakPts = append(peakPts, plotter.XY{X: float64(frame), Y: series[frame-1]})
	}
	if len(peakPts) > 0 {
		peaks, err := plotter.NewScatter(peakPts)
		if err != nil {
			return err
		}
		peaks.GlyphStyle.Color = colors[0]
		peaks.GlyphStyle.Radius = vg.Points(3)
		p.Add(peaks)
		p.Legend.Add("peaks", peaks)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return mp.writePlot(p, 14*vg.Inch, 6*vg.Inch, file)
}

// plotIntensity draws the per-joint average displacement as a bar chart.
func (mp *MotionPlotter) plotIntensity(report *pose.Report, label, file string) error {
	intensity := report.Movement.MovementIntensity

	names := make([]string, 0, len(intensity))
	for name := range intensity {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(plotter.Values, len(names))
	for i, name := range names {
		values[i] = intensity[name]
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Joint Movement Intensity", label)
	p.Y.Label.Text = "Avg displacement (normalized units)"

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.Color = generateColors(1)[0]
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = -0.9

	return mp.writePlot(p, 10*vg.Inch, 6*vg.Inch, file)
}

// plotSymmetry draws the left and right intensity of each paired joint side
// by side so lateral bias is visible at a glance.
func (mp *MotionPlotter) plotSymmetry(report *pose.Report, label, file string) error {
	bases, left, right := pairedJoints(report.Movement.MovementIntensity)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Left/Right Intensity (symmetry %.2f)", label, report.Movement.SymmetryScore)
	p.Y.Label.Text = "Avg displacement (normalized units)"

	colors := generateColors(2)
	barWidth := vg.Points(12)

	leftBars, err := plotter.NewBarChart(plotter.Values(left), barWidth)
	if err != nil {
		return err
	}
	leftBars.Color = colors[0]
	leftBars.Offset = -barWidth / 2

	rightBars, err := plotter.NewBarChart(plotter.Values(right), barWidth)
	if err != nil {
		return err
	}
	rightBars.Color = colors[1]
	rightBars.Offset = barWidth / 2

	p.Add(leftBars, rightBars)
	p.Legend.Add("left", leftBars)
	p.Legend.Add("right", rightBars)
	p.NominalX(bases...)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return mp.writePlot(p, 10*vg.Inch, 6*vg.Inch, file)
}

// pairedJoints collects the joints tracked on both sides. Returned slices
// are aligned: left[i] and right[i] belong to bases[i].
func pairedJoints(intensity map[string]float64) (bases []string, left, right []float64) {
	for name := range intensity {
		if !strings.HasPrefix(name, "left_") {
			continue
		}
		base := strings.TrimPrefix(name, "left_")
		if _, ok := intensity["right_"+base]; ok {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)

	left = make([]float64, len(bases))
	right = make([]float64, len(bases))
	for i, base := range bases {
		left[i] = intensity["left_"+base]
		right[i] = intensity["right_"+base]
	}
	return bases, left, right
}

// writePlot renders p as a PNG through the configured filesystem.
func (mp *MotionPlotter) writePlot(p *plot.Plot, w, h vg.Length, file string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(file), err)
	}
	f, err := mp.fs.Create(file)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(file), err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(file), err)
	}
	return f.Close()
}

// generateColors creates a palette of distinct colors for plot series
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir builds a timestamped output directory for a run's plots.
// For a named landmarks file: <baseDir>/<file_basename>/<timestamp>
// For unnamed input: <baseDir>/run_<timestamp>
func MakePlotOutputDir(baseDir, sourceFile string) string {
	ts := FormatTimestamp(time.Now())
	if sourceFile != "" {
		base := filepath.Base(sourceFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "run_"+ts)
}
