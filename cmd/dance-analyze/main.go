package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AIchemizt/dance-analysis-server/internal/config"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
	"github.com/AIchemizt/dance-analysis-server/internal/pose/monitor"
)

var (
	input          = flag.String("input", "", "Path to a landmark frames JSON file")
	output         = flag.String("output", "", "Path for the report JSON (defaults to stdout)")
	configPath     = flag.String("config", "", "Path to a tuning config JSON file")
	peakThreshold  = flag.Float64("peak-threshold", -1, "Velocity peak threshold (overrides config when >= 0)")
	minConsecutive = flag.Int("min-consecutive", 0, "Consecutive frames to confirm a pose (overrides config when > 0)")
	plotDir        = flag.String("plot-dir", "", "Directory to render PNG motion plots into (disabled when empty)")
	pretty         = flag.Bool("pretty", false, "Indent the report JSON")
)

// loadConfig returns the tuning config from -config, or an empty config
// whose accessors fall back to the built-in defaults.
func loadConfig() *config.TuningConfig {
	if *configPath == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config %s: %v", *configPath, err)
	}
	return cfg
}

// analyzerConfig resolves the pipeline parameters from the tuning config
// plus any explicit flag overrides.
func analyzerConfig(cfg *config.TuningConfig) pose.AnalyzerConfig {
	acfg := cfg.AnalyzerConfig()
	if *peakThreshold >= 0 {
		acfg.PeakVelocityThreshold = *peakThreshold
	}
	if *minConsecutive > 0 {
		acfg.MinConsecutiveFrames = *minConsecutive
	}
	return acfg
}

func encodeReport(report *pose.Report, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(report, "", "  ")
	}
	return json.Marshal(report)
}

// summarizePoses formats the confirmed archetypes as "T-Pose x4, Squat x2",
// or "none" when nothing was confirmed.
func summarizePoses(report *pose.Report) string {
	if len(report.DetectedPoses) == 0 {
		return "none"
	}
	names := make([]string, 0, len(report.DetectedPoses))
	for name := range report.DetectedPoses {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s x%d", name, report.DetectedPoses[name].Count))
	}
	return strings.Join(parts, ", ")
}

// topMover returns the joint with the highest movement intensity. Ties go
// to the alphabetically first joint so the output is stable.
func topMover(report *pose.Report) (string, float64) {
	joints := make([]string, 0, len(report.Movement.MovementIntensity))
	for joint := range report.Movement.MovementIntensity {
		joints = append(joints, joint)
	}
	sort.Strings(joints)

	var topJoint string
	var topValue float64
	for _, joint := range joints {
		if v := report.Movement.MovementIntensity[joint]; topJoint == "" || v > topValue {
			topJoint = joint
			topValue = v
		}
	}
	return topJoint, topValue
}

func main() {
	flag.Parse()

	if *input == "" {
		log.Fatal("input file is required")
	}

	cfg := loadConfig()

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *input, err)
	}

	frames, err := pose.ParseFrames(data)
	if err != nil {
		log.Fatalf("failed to parse frames from %s: %v", *input, err)
	}
	if len(frames) == 0 {
		log.Fatalf("no landmark frames in %s", *input)
	}

	acfg := analyzerConfig(cfg)
	report := pose.BuildReport(frames, acfg)

	out, err := encodeReport(report, *pretty)
	if err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}

	if *output == "" {
		fmt.Println(string(out))
	} else {
		if err := os.WriteFile(*output, out, 0644); err != nil {
			log.Fatalf("failed to write report to %s: %v", *output, err)
		}
		log.Printf("report written to %s", *output)
	}

	if *plotDir != "" {
		label := strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
		outDir := monitor.MakePlotOutputDir(*plotDir, *input)
		files, err := monitor.NewMotionPlotter(nil).PlotReport(report, acfg.PeakVelocityThreshold, outDir, label)
		if err != nil {
			log.Fatalf("failed to render plots: %v", err)
		}
		for _, f := range files {
			log.Printf("wrote plot %s", f)
		}
	}

	log.Printf("analysed %d frames over %.2fs", report.TotalFrames, report.DurationSeconds)
	log.Printf("confirmed poses: %s", summarizePoses(report))
	if joint, intensity := topMover(report); joint != "" {
		log.Printf("top mover: %s (intensity %.4f)", joint, intensity)
	}
}
