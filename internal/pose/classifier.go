package pose

import (
	"math"

	"github.com/AIchemizt/dance-analysis-server/internal/pose/geom"
)

// PoseArchetype identifies one of the fixed pose categories the classifier
// recognizes. The string values double as report keys.
type PoseArchetype string

const (
	// ArchetypeTPose indicates arms extended horizontally at shoulder height
	ArchetypeTPose PoseArchetype = "T-Pose"
	// ArchetypeArmsUp indicates both wrists raised above the head
	ArchetypeArmsUp PoseArchetype = "Arms-Up"
	// ArchetypeSquat indicates bent knees with hips dropped toward knee level
	ArchetypeSquat PoseArchetype = "Squat"
	// ArchetypeLunge indicates a split stance with front knee bent and back leg straight
	ArchetypeLunge PoseArchetype = "Lunge"
)

// Archetypes returns the supported archetypes in evaluation order.
func Archetypes() []PoseArchetype {
	return []PoseArchetype{ArchetypeTPose, ArchetypeArmsUp, ArchetypeSquat, ArchetypeLunge}
}

// Classification thresholds (configurable for tuning)
const (
	// Joint angle thresholds (degrees)
	DefaultStraightArmAngleDeg = 160.0 // Elbow angle above which an arm counts as straight
	DefaultSquatKneeAngleDeg   = 120.0 // Knee angle below which a leg counts as bent
	DefaultLungeFrontKneeDeg   = 120.0 // Front knee must bend below this
	DefaultLungeBackKneeDeg    = 150.0 // Back knee must stay straighter than this

	// Positional thresholds (fractions of torso height)
	DefaultWristLevelTolerance  = 0.15 // Wrist-to-shoulder vertical slack for T-Pose
	DefaultArmsUpProximityRatio = 0.5  // Wrist separation below this means hands together
	DefaultSquatHipDropRatio    = 0.3  // Hip-to-knee vertical gap ceiling for a full squat
	DefaultLungeSeparationRatio = 0.3  // Horizontal knee split floor for a lunge
)

// ClassifierConfig carries the per-archetype rule thresholds. All values
// are static configuration; the zero value is not usable, construct with
// DefaultClassifierConfig.
type ClassifierConfig struct {
	StraightArmAngleDeg  float64 // degrees, T-Pose elbow straightness
	WristLevelTolerance  float64 // torso fraction, T-Pose wrist height slack
	ArmsUpProximityRatio float64 // torso fraction, Arms-Up hands-together bonus
	SquatKneeAngleDeg    float64 // degrees, Squat knee bend ceiling
	SquatHipDropRatio    float64 // torso fraction, Squat hip drop ceiling
	LungeFrontKneeDeg    float64 // degrees, Lunge front knee bend ceiling
	LungeBackKneeDeg     float64 // degrees, Lunge back knee straightness floor
	LungeSeparationRatio float64 // torso fraction, Lunge knee split floor
}

// DefaultClassifierConfig returns the tuned production thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		StraightArmAngleDeg:  DefaultStraightArmAngleDeg,
		WristLevelTolerance:  DefaultWristLevelTolerance,
		ArmsUpProximityRatio: DefaultArmsUpProximityRatio,
		SquatKneeAngleDeg:    DefaultSquatKneeAngleDeg,
		SquatHipDropRatio:    DefaultSquatHipDropRatio,
		LungeFrontKneeDeg:    DefaultLungeFrontKneeDeg,
		LungeBackKneeDeg:     DefaultLungeBackKneeDeg,
		LungeSeparationRatio: DefaultLungeSeparationRatio,
	}
}

// PoseObservation is the per-frame, per-archetype classification result.
// Detected=true implies the archetype's pass threshold was met; Confidence
// is always in [0,1].
type PoseObservation struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
}

// clampConfidence clamps a confidence value to the range [min, max].
func clampConfidence(value, min, max float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// poseRule evaluates a single archetype against one frame's landmarks.
// Rules are independent of each other; a frame may satisfy zero, one, or
// several archetypes simultaneously.
type poseRule interface {
	Archetype() PoseArchetype
	Evaluate(lm LandmarkSet, torso float64) PoseObservation
}

// Classifier performs rule-based pose classification on single frames.
// It is stateless and safe for concurrent use across frames.
type Classifier struct {
	cfg   ClassifierConfig
	rules []poseRule
}

// NewClassifier builds a classifier with one rule per supported archetype.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{
		cfg: cfg,
		rules: []poseRule{
			tPoseRule{cfg},
			armsUpRule{cfg},
			squatRule{cfg},
			lungeRule{cfg},
		},
	}
}

// Classify evaluates every archetype rule against the given landmarks and
// torso scale. Returns nil when landmarks are absent (no detection for the
// frame); otherwise the result always contains all four archetype keys.
// The landmark set must carry the full 33-point schema when non-nil.
func (c *Classifier) Classify(lm LandmarkSet, torso float64) map[PoseArchetype]PoseObservation {
	if len(lm) == 0 {
		return nil
	}
	out := make(map[PoseArchetype]PoseObservation, len(c.rules))
	for _, rule := range c.rules {
		out[rule.Archetype()] = rule.Evaluate(lm, torso)
	}
	return out
}

// tPoseRule checks for arms extended horizontally at shoulder height.
// Three criteria groups: both arms straight, both wrists level with their
// shoulder, both wrists extended outward past their shoulder. Confidence is
// the fraction of groups met; detection requires all three.
type tPoseRule struct {
	cfg ClassifierConfig
}

func (r tPoseRule) Archetype() PoseArchetype { return ArchetypeTPose }

func (r tPoseRule) Evaluate(lm LandmarkSet, torso float64) PoseObservation {
	leftElbowAngle := geom.Angle(lm.Point(LandmarkLeftShoulder), lm.Point(LandmarkLeftElbow), lm.Point(LandmarkLeftWrist))
	rightElbowAngle := geom.Angle(lm.Point(LandmarkRightShoulder), lm.Point(LandmarkRightElbow), lm.Point(LandmarkRightWrist))
	armsStraight := leftElbowAngle > r.cfg.StraightArmAngleDeg && rightElbowAngle > r.cfg.StraightArmAngleDeg

	yTolerance := torso * r.cfg.WristLevelTolerance
	leftLevel := math.Abs(lm[LandmarkLeftWrist].Y-lm[LandmarkLeftShoulder].Y) < yTolerance
	rightLevel := math.Abs(lm[LandmarkRightWrist].Y-lm[LandmarkRightShoulder].Y) < yTolerance

	// Outward means past the shoulder on each side's own half of the image.
	leftExtended := lm[LandmarkLeftWrist].X < lm[LandmarkLeftShoulder].X
	rightExtended := lm[LandmarkRightWrist].X > lm[LandmarkRightShoulder].X

	criteriaMet := 0
	if armsStraight {
		criteriaMet++
	}
	if leftLevel && rightLevel {
		criteriaMet++
	}
	if leftExtended && rightExtended {
		criteriaMet++
	}

	return PoseObservation{
		Detected:   criteriaMet >= 3,
		Confidence: clampConfidence(float64(criteriaMet)/3.0, 0, 1),
	}
}

// armsUpRule checks for both wrists raised above the nose. Hands held close
// together overhead score higher than a wide V.
type armsUpRule struct {
	cfg ClassifierConfig
}

func (r armsUpRule) Archetype() PoseArchetype { return ArchetypeArmsUp }

func (r armsUpRule) Evaluate(lm LandmarkSet, torso float64) PoseObservation {
	noseY := lm[LandmarkNose].Y
	leftAbove := lm[LandmarkLeftWrist].Y < noseY
	rightAbove := lm[LandmarkRightWrist].Y < noseY

	switch {
	case leftAbove && rightAbove:
		wristDistance := math.Abs(lm[LandmarkLeftWrist].X - lm[LandmarkRightWrist].X)
		confidence := 0.8
		if wristDistance < torso*r.cfg.ArmsUpProximityRatio {
			confidence = 1.0
		}
		return PoseObservation{Detected: true, Confidence: confidence}
	case leftAbove || rightAbove:
		return PoseObservation{Detected: false, Confidence: 0.5}
	default:
		return PoseObservation{Detected: false, Confidence: 0.0}
	}
}

// squatRule checks for both knees bent with the hips dropped toward knee
// level. Depth scales confidence from a 0.7 floor up to 1.0.
type squatRule struct {
	cfg ClassifierConfig
}

func (r squatRule) Archetype() PoseArchetype { return ArchetypeSquat }

func (r squatRule) Evaluate(lm LandmarkSet, torso float64) PoseObservation {
	leftKneeAngle := geom.Angle(lm.Point(LandmarkLeftHip), lm.Point(LandmarkLeftKnee), lm.Point(LandmarkLeftAnkle))
	rightKneeAngle := geom.Angle(lm.Point(LandmarkRightHip), lm.Point(LandmarkRightKnee), lm.Point(LandmarkRightAnkle))
	kneesBent := leftKneeAngle < r.cfg.SquatKneeAngleDeg && rightKneeAngle < r.cfg.SquatKneeAngleDeg

	avgHipY := (lm[LandmarkLeftHip].Y + lm[LandmarkRightHip].Y) / 2
	avgKneeY := (lm[LandmarkLeftKnee].Y + lm[LandmarkRightKnee].Y) / 2
	hipKneeGap := math.Abs(avgHipY - avgKneeY)
	maxGap := torso * r.cfg.SquatHipDropRatio
	hipsLow := hipKneeGap < maxGap

	switch {
	case kneesBent && hipsLow:
		depthRatio := 1.0 - hipKneeGap/maxGap
		return PoseObservation{
			Detected:   true,
			Confidence: math.Min(1.0, 0.7+depthRatio*0.3),
		}
	case kneesBent:
		return PoseObservation{Detected: false, Confidence: 0.5}
	default:
		return PoseObservation{Detected: false, Confidence: 0.0}
	}
}

// lungeRule checks for a split stance: knees separated horizontally, front
// knee bent, back leg straight. The forward leg is whichever knee sits at
// the smaller x; screen orientation is assumed consistent, not canonicalized
// by facing direction. Detection requires two of the three criteria.
type lungeRule struct {
	cfg ClassifierConfig
}

func (r lungeRule) Archetype() PoseArchetype { return ArchetypeLunge }

func (r lungeRule) Evaluate(lm LandmarkSet, torso float64) PoseObservation {
	leftKneeAngle := geom.Angle(lm.Point(LandmarkLeftHip), lm.Point(LandmarkLeftKnee), lm.Point(LandmarkLeftAnkle))
	rightKneeAngle := geom.Angle(lm.Point(LandmarkRightHip), lm.Point(LandmarkRightKnee), lm.Point(LandmarkRightAnkle))

	kneeSeparation := math.Abs(lm[LandmarkLeftKnee].X - lm[LandmarkRightKnee].X)
	legsSplit := kneeSeparation > torso*r.cfg.LungeSeparationRatio

	frontAngle, backAngle := leftKneeAngle, rightKneeAngle
	if lm[LandmarkLeftKnee].X >= lm[LandmarkRightKnee].X {
		frontAngle, backAngle = rightKneeAngle, leftKneeAngle
	}
	frontBent := frontAngle < r.cfg.LungeFrontKneeDeg
	backStraight := backAngle > r.cfg.LungeBackKneeDeg

	criteriaMet := 0
	if legsSplit {
		criteriaMet++
	}
	if frontBent {
		criteriaMet++
	}
	if backStraight {
		criteriaMet++
	}

	return PoseObservation{
		Detected:   criteriaMet >= 2,
		Confidence: clampConfidence(float64(criteriaMet)/3.0, 0, 1),
	}
}
