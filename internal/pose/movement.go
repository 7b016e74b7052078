package pose

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/AIchemizt/dance-analysis-server/internal/pose/geom"
)

// Movement analysis defaults
const (
	// DefaultPeakThreshold is the smoothed center-of-mass displacement
	// (normalized units per frame) above which a frame counts as a peak.
	DefaultPeakThreshold = 0.02
	// DefaultSmoothingWindow is the moving-average window applied to the
	// velocity series before peak detection.
	DefaultSmoothingWindow = 5
)

// trackedLandmarks maps report keys to landmark indices for the joints
// whose movement is measured individually.
var trackedLandmarks = map[string]int{
	"left_wrist":     LandmarkLeftWrist,
	"right_wrist":    LandmarkRightWrist,
	"left_elbow":     LandmarkLeftElbow,
	"right_elbow":    LandmarkRightElbow,
	"left_shoulder":  LandmarkLeftShoulder,
	"right_shoulder": LandmarkRightShoulder,
	"left_hip":       LandmarkLeftHip,
	"right_hip":      LandmarkRightHip,
	"left_knee":      LandmarkLeftKnee,
	"right_knee":     LandmarkRightKnee,
	"left_ankle":     LandmarkLeftAnkle,
	"right_ankle":    LandmarkRightAnkle,
}

// TrackedLandmarkNames returns the report keys of the individually tracked
// joints in sorted order.
func TrackedLandmarkNames() []string {
	names := make([]string, 0, len(trackedLandmarks))
	for name := range trackedLandmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MovementIntensity computes the average per-frame displacement of each
// tracked joint across the sequence. For every joint the positions are
// collected only from frames whose landmarks are present; the summed
// consecutive displacement is divided by the count of collected positions.
// Joints observed in fewer than two frames report 0. The result always
// contains all tracked keys.
func MovementIntensity(frames []Frame) map[string]float64 {
	out := make(map[string]float64, len(trackedLandmarks))
	for name := range trackedLandmarks {
		out[name] = 0
	}

	for name, idx := range trackedLandmarks {
		var positions []geom.Point
		for i := range frames {
			if frames[i].HasLandmarks() {
				positions = append(positions, frames[i].Landmarks.Point(idx))
			}
		}
		if len(positions) < 2 {
			continue
		}
		var total float64
		for i := 1; i < len(positions); i++ {
			total += geom.Distance(positions[i-1], positions[i])
		}
		out[name] = total / float64(len(positions))
	}
	return out
}

// OverallSymmetry scores how mirror-symmetric the body is across the whole
// sequence. Per present frame the wrist, elbow, ankle and knee pairs are
// scored against the shoulder-midpoint axis; the per-frame scores are
// averaged. Returns 0 when no frame has landmarks.
func OverallSymmetry(frames []Frame) float64 {
	var scores []float64
	for i := range frames {
		if !frames[i].HasLandmarks() {
			continue
		}
		lm := frames[i].Landmarks
		left := []geom.Point{
			lm.Point(LandmarkLeftWrist),
			lm.Point(LandmarkLeftElbow),
			lm.Point(LandmarkLeftAnkle),
			lm.Point(LandmarkLeftKnee),
		}
		right := []geom.Point{
			lm.Point(LandmarkRightWrist),
			lm.Point(LandmarkRightElbow),
			lm.Point(LandmarkRightAnkle),
			lm.Point(LandmarkRightKnee),
		}
		centerX := (lm[LandmarkLeftShoulder].X + lm[LandmarkRightShoulder].X) / 2
		scores = append(scores, geom.SymmetryScore(left, right, centerX))
	}
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// MovementPeaks finds bursts of whole-body motion: the per-frame center of
// mass (mean over all 33 landmarks) is differenced into a velocity series,
// smoothed with the default window, and compared against threshold.
// Returned indices are offsets into the velocity series, which is one
// shorter than the frame sequence; index i describes the displacement
// arriving at frame i+1. Returns nil for sequences shorter than two frames.
func MovementPeaks(frames []Frame, threshold float64) []int {
	return movementPeaks(frames, threshold, DefaultSmoothingWindow)
}

func movementPeaks(frames []Frame, threshold float64, window int) []int {
	var peaks []int
	for i, v := range smoothedVelocities(frames, window) {
		if v > threshold {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// MovementVelocities exposes the smoothed center-of-mass velocity series
// used for peak detection so reports and plots can show the full curve.
// The series is one element shorter than the frame sequence.
func MovementVelocities(frames []Frame) []float64 {
	return smoothedVelocities(frames, DefaultSmoothingWindow)
}

func smoothedVelocities(frames []Frame, window int) []float64 {
	velocities := centerVelocities(frames)
	if len(velocities) > window {
		velocities = geom.Smooth(velocities, window)
	}
	return velocities
}

// centerVelocities computes the raw frame-to-frame displacement of the
// whole-body center of mass. A displacement whose earlier or later frame
// lacks landmarks contributes 0 rather than breaking the series.
func centerVelocities(frames []Frame) []float64 {
	if len(frames) < 2 {
		return nil
	}

	centers := make([]geom.Point, len(frames))
	present := make([]bool, len(frames))
	for i := range frames {
		if !frames[i].HasLandmarks() {
			continue
		}
		var sumX, sumY float64
		for _, lm := range frames[i].Landmarks {
			sumX += lm.X
			sumY += lm.Y
		}
		n := float64(len(frames[i].Landmarks))
		centers[i] = geom.Point{X: sumX / n, Y: sumY / n}
		present[i] = true
	}

	velocities := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(centers); i++ {
		if !present[i] || !present[i-1] {
			velocities = append(velocities, 0)
			continue
		}
		velocities = append(velocities, geom.Distance(centers[i-1], centers[i]))
	}
	return velocities
}
