package pose

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultReportPeakThreshold is the smoothed-velocity peak cutoff used by
// report assembly. Tighter than DefaultPeakThreshold so short accents
// survive the smoothing pass.
const DefaultReportPeakThreshold = 0.015

// AnalyzerConfig carries the sequence-level analysis parameters used when
// assembling a report.
type AnalyzerConfig struct {
	Classifier            ClassifierConfig
	MinConsecutiveFrames  int     // temporal confirmation run length
	PeakVelocityThreshold float64 // smoothed velocity peak cutoff
	SmoothingWindow       int     // velocity smoothing window, frames
	MinLandmarkVisibility float64 // visibility floor for torso measurement
}

// DefaultAnalyzerConfig returns the production pipeline parameters.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Classifier:            DefaultClassifierConfig(),
		MinConsecutiveFrames:  DefaultMinConsecutive,
		PeakVelocityThreshold: DefaultReportPeakThreshold,
		SmoothingWindow:       DefaultSmoothingWindow,
		MinLandmarkVisibility: DefaultMinVisibility,
	}
}

// PoseSummary describes one archetype that survived temporal confirmation.
// AverageConfidence is the mean confidence over the frames where the raw
// rule fired, not over the confirmed set.
type PoseSummary struct {
	Frames            []int   `json:"frames"`
	Count             int     `json:"count"`
	AverageConfidence float64 `json:"average_confidence"`
}

// MovementSummary aggregates the continuous movement metrics of a run.
type MovementSummary struct {
	MovementIntensity  map[string]float64 `json:"movement_intensity"`
	SymmetryScore      float64            `json:"symmetry_score"`
	HighMovementFrames []int              `json:"high_movement_frames"`
}

// MotionStatistics holds aggregate motion statistics for an analysis run.
type MotionStatistics struct {
	// Center-of-mass velocity distribution
	MeanVelocity float64 `json:"mean_velocity"`
	MaxVelocity  float64 `json:"max_velocity"`
	P50Velocity  float64 `json:"p50_velocity"`
	P90Velocity  float64 `json:"p90_velocity"`
	P99Velocity  float64 `json:"p99_velocity"`

	// Sequence coverage
	ActiveFrameRatio float64 `json:"active_frame_ratio"` // velocity samples above threshold
	LandmarkCoverage float64 `json:"landmark_coverage"`  // frames with landmarks

	// VelocitySeries is the smoothed per-step velocity profile (length
	// frame count - 1). Persisted so dashboards can redraw the motion
	// curve without the original frames.
	VelocitySeries []float64 `json:"velocity_series,omitempty"`
}

// Report is the assembled result of analyzing one frame sequence.
type Report struct {
	RunID           string                 `json:"run_id,omitempty"`
	TotalFrames     int                    `json:"total_frames"`
	DurationSeconds float64                `json:"duration_seconds"`
	DetectedPoses   map[string]PoseSummary `json:"detected_poses"`
	Movement        MovementSummary        `json:"movement_analysis"`
	MotionStats     MotionStatistics       `json:"motion_statistics"`
}

// BuildReport runs the full analysis pipeline over a frame sequence:
// per-frame classification, temporal confirmation, movement metrics, and
// aggregate statistics. Frames without landmarks contribute a raw
// non-detection for every archetype so temporal alignment is preserved.
// Degenerate input (no frames) produces a report of neutral values, never
// an error.
func BuildReport(frames []Frame, cfg AnalyzerConfig) *Report {
	classifier := NewClassifier(cfg.Classifier)

	raw := make(map[PoseArchetype][]bool, len(Archetypes()))
	confidences := make(map[PoseArchetype][]float64, len(Archetypes()))
	for _, archetype := range Archetypes() {
		raw[archetype] = make([]bool, 0, len(frames))
	}

	for i := range frames {
		if !frames[i].HasLandmarks() {
			for _, archetype := range Archetypes() {
				raw[archetype] = append(raw[archetype], false)
			}
			continue
		}
		torso := TorsoScale(frames[i].Landmarks, cfg.MinLandmarkVisibility)
		results := classifier.Classify(frames[i].Landmarks, torso)
		for _, archetype := range Archetypes() {
			obs := results[archetype]
			raw[archetype] = append(raw[archetype], obs.Detected)
			if obs.Detected {
				confidences[archetype] = append(confidences[archetype], obs.Confidence)
			}
		}
	}

	confirmed := ConfirmDetections(raw, cfg.MinConsecutiveFrames)
	intensity := MovementIntensity(frames)
	symmetry := OverallSymmetry(frames)
	peaks := movementPeaks(frames, cfg.PeakVelocityThreshold, cfg.SmoothingWindow)
	velocities := smoothedVelocities(frames, cfg.SmoothingWindow)

	detectedPoses := make(map[string]PoseSummary)
	for archetype, confirmedFrames := range confirmed {
		if len(confirmedFrames) == 0 {
			continue
		}
		avgConfidence := 0.0
		if c := confidences[archetype]; len(c) > 0 {
			avgConfidence = stat.Mean(c, nil)
		}
		detectedPoses[string(archetype)] = PoseSummary{
			Frames:            confirmedFrames,
			Count:             len(confirmedFrames),
			AverageConfidence: roundTo(avgConfidence, 3),
		}
	}

	var duration float64
	if len(frames) > 0 {
		duration = frames[len(frames)-1].Timestamp
	}

	// Peak offsets index the velocity series; the report carries the frame
	// each displacement arrives at, so offset i becomes frame i+1.
	peakFrames := make([]int, len(peaks))
	for i, p := range peaks {
		peakFrames[i] = p + 1
	}

	intensityRounded := make(map[string]float64, len(intensity))
	for name, v := range intensity {
		intensityRounded[name] = roundTo(v, 4)
	}

	return &Report{
		TotalFrames:     len(frames),
		DurationSeconds: roundTo(duration, 2),
		DetectedPoses:   detectedPoses,
		Movement: MovementSummary{
			MovementIntensity:  intensityRounded,
			SymmetryScore:      roundTo(symmetry, 3),
			HighMovementFrames: peakFrames,
		},
		MotionStats: ComputeMotionStatistics(frames, velocities, cfg.PeakVelocityThreshold),
	}
}

// ComputeMotionStatistics calculates the velocity distribution and coverage
// figures for a run from its frame sequence and smoothed velocity series.
func ComputeMotionStatistics(frames []Frame, velocities []float64, threshold float64) MotionStatistics {
	var stats MotionStatistics

	if len(frames) > 0 {
		withLandmarks := 0
		for i := range frames {
			if frames[i].HasLandmarks() {
				withLandmarks++
			}
		}
		stats.LandmarkCoverage = float64(withLandmarks) / float64(len(frames))
	}

	if len(velocities) == 0 {
		return stats
	}

	sorted := append([]float64(nil), velocities...)
	sort.Float64s(sorted)

	stats.MeanVelocity = stat.Mean(velocities, nil)
	stats.MaxVelocity = floats.Max(sorted)
	stats.P50Velocity = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	stats.P90Velocity = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	stats.P99Velocity = stat.Quantile(0.99, stat.Empirical, sorted, nil)

	active := 0
	for _, v := range velocities {
		if v > threshold {
			active++
		}
	}
	stats.ActiveFrameRatio = float64(active) / float64(len(velocities))

	stats.VelocitySeries = make([]float64, len(velocities))
	for i, v := range velocities {
		stats.VelocitySeries[i] = roundTo(v, 4)
	}

	return stats
}

// ToJSON serializes the report for storage or transport.
func (r *Report) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ParseReport deserializes a report previously produced by ToJSON.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// roundTo rounds v to the given number of decimal places, matching the
// precision the report contract promises.
func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
