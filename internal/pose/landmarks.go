// Package pose implements the dance-movement analysis core: body-landmark
// frame types, rule-based classification over a fixed set of pose
// archetypes, temporal confirmation of raw detections, and batch movement
// metrics (per-joint intensity, whole-body symmetry, velocity peaks).
//
// All coordinates are normalized image coordinates in [0,1] with y growing
// downward; distance thresholds are expressed in torso-height units so they
// stay invariant to resolution and camera distance.
package pose

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/AIchemizt/dance-analysis-server/internal/pose/geom"
)

// LandmarkCount is the fixed size of a present landmark set. The index
// layout is the well-known 33-point body schema produced by the upstream
// pose detector; index meaning is part of that external contract.
const LandmarkCount = 33

// Landmark indices used by the analysis core. Other indices are carried
// but never read.
const (
	LandmarkNose          = 0
	LandmarkLeftShoulder  = 11
	LandmarkRightShoulder = 12
	LandmarkLeftElbow     = 13
	LandmarkRightElbow    = 14
	LandmarkLeftWrist     = 15
	LandmarkRightWrist    = 16
	LandmarkLeftHip       = 23
	LandmarkRightHip      = 24
	LandmarkLeftKnee      = 25
	LandmarkRightKnee     = 26
	LandmarkLeftAnkle     = 27
	LandmarkRightAnkle    = 28
)

const (
	// DefaultTorsoScale is the fallback normalization factor used when too
	// few torso landmarks are visible to measure the subject.
	DefaultTorsoScale = 0.3

	// DefaultMinVisibility is the visibility score below which a landmark
	// is treated as unreliable for torso measurement.
	DefaultMinVisibility = 0.5
)

// Landmark is a single tracked body point in normalized image coordinates
// with a detector-assigned visibility score.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// LandmarkSet holds one frame's landmarks. A nil set is the explicit
// "detection failed" case; consumers must check presence before indexing.
type LandmarkSet []Landmark

// Complete reports whether the set carries the full 33-point schema.
func (s LandmarkSet) Complete() bool {
	return len(s) == LandmarkCount
}

// Point returns the 2-D projection of the landmark at index i.
func (s LandmarkSet) Point(i int) geom.Point {
	return geom.Point{X: s[i].X, Y: s[i].Y}
}

// Frame is one ordered record of the analyzed sequence. Landmarks is nil
// when detection failed for the frame; the frame still occupies its slot so
// temporal alignment is preserved. Frames are produced once by the external
// detector and read-only afterward.
type Frame struct {
	FrameNumber int         `json:"frame_number"`
	Timestamp   float64     `json:"timestamp"`
	Landmarks   LandmarkSet `json:"landmarks"`
}

// HasLandmarks reports whether the frame carries a complete landmark set.
func (f *Frame) HasLandmarks() bool {
	return f.Landmarks.Complete()
}

// ParseFrames decodes a landmark frames document. Both the wrapped form
// {"frames": [...]} written by collectors and a bare frame array are
// accepted.
func ParseFrames(data []byte) ([]Frame, error) {
	var wrapper struct {
		Frames []Frame `json:"frames"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Frames != nil {
		return wrapper.Frames, nil
	}

	var frames []Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("parse landmark frames: %w", err)
	}
	return frames, nil
}

// TorsoScale measures the subject's torso height as the mean of the
// per-side |shoulder.y - hip.y| over sides whose shoulder and hip both meet
// the visibility threshold. Falls back to DefaultTorsoScale when landmarks
// are absent or no side is sufficiently visible.
func TorsoScale(lm LandmarkSet, minVisibility float64) float64 {
	if !lm.Complete() {
		return DefaultTorsoScale
	}
	visible := func(i int) bool { return lm[i].Visibility >= minVisibility }

	var sum float64
	var sides int
	if visible(LandmarkLeftShoulder) && visible(LandmarkLeftHip) {
		sum += math.Abs(lm[LandmarkLeftShoulder].Y - lm[LandmarkLeftHip].Y)
		sides++
	}
	if visible(LandmarkRightShoulder) && visible(LandmarkRightHip) {
		sum += math.Abs(lm[LandmarkRightShoulder].Y - lm[LandmarkRightHip].Y)
		sides++
	}
	if sides == 0 {
		return DefaultTorsoScale
	}
	return sum / float64(sides)
}
