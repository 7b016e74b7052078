package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AIchemizt/dance-analysis-server/internal/pose/geom"
)

// testLandmarks builds a complete 33-point set with every landmark at a
// neutral (0.5, 0.5) and full visibility, then applies the overrides.
func testLandmarks(overrides map[int]geom.Point) LandmarkSet {
	lm := make(LandmarkSet, LandmarkCount)
	for i := range lm {
		lm[i] = Landmark{X: 0.5, Y: 0.5, Visibility: 1.0}
	}
	for idx, p := range overrides {
		lm[idx] = Landmark{X: p.X, Y: p.Y, Visibility: 1.0}
	}
	return lm
}

// TestClassify_TPose tests the extended-arms archetype rule.
func TestClassify_TPose(t *testing.T) {
	t.Parallel()
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("detects arms extended level and straight", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftShoulder:  {X: 0.5, Y: 0.3},
			LandmarkRightShoulder: {X: 0.7, Y: 0.3},
			LandmarkLeftElbow:     {X: 0.3, Y: 0.3},
			LandmarkRightElbow:    {X: 0.9, Y: 0.3},
			LandmarkLeftWrist:     {X: 0.1, Y: 0.3},
			LandmarkRightWrist:    {X: 1.1, Y: 0.3},
			LandmarkLeftHip:       {X: 0.5, Y: 0.6},
			LandmarkRightHip:      {X: 0.7, Y: 0.6},
		})

		result := classifier.Classify(lm, 0.3)
		require.Contains(t, result, ArchetypeTPose)
		assert.True(t, result[ArchetypeTPose].Detected)
		assert.InDelta(t, 1.0, result[ArchetypeTPose].Confidence, 1e-9)
	})

	t.Run("rejects wrists dropped to hip level", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftShoulder:  {X: 0.5, Y: 0.3},
			LandmarkRightShoulder: {X: 0.7, Y: 0.3},
			LandmarkLeftWrist:     {X: 0.5, Y: 0.6},
			LandmarkRightWrist:    {X: 0.7, Y: 0.6},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeTPose].Detected)
		assert.Less(t, result[ArchetypeTPose].Confidence, 1.0)
	})

	t.Run("partial criteria yield partial confidence", func(t *testing.T) {
		t.Parallel()
		// Arms straight and extended but raised well above shoulder height.
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftShoulder:  {X: 0.5, Y: 0.4},
			LandmarkRightShoulder: {X: 0.7, Y: 0.4},
			LandmarkLeftElbow:     {X: 0.3, Y: 0.3},
			LandmarkRightElbow:    {X: 0.9, Y: 0.3},
			LandmarkLeftWrist:     {X: 0.1, Y: 0.2},
			LandmarkRightWrist:    {X: 1.1, Y: 0.2},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeTPose].Detected)
		assert.InDelta(t, 2.0/3.0, result[ArchetypeTPose].Confidence, 1e-9)
	})
}

// TestClassify_ArmsUp tests the raised-wrists archetype rule.
func TestClassify_ArmsUp(t *testing.T) {
	t.Parallel()
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("hands together overhead scores full confidence", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkNose:       {X: 0.6, Y: 0.1},
			LandmarkLeftWrist:  {X: 0.55, Y: 0.05},
			LandmarkRightWrist: {X: 0.65, Y: 0.05},
		})

		result := classifier.Classify(lm, 0.3)
		assert.True(t, result[ArchetypeArmsUp].Detected)
		assert.InDelta(t, 1.0, result[ArchetypeArmsUp].Confidence, 1e-9)
	})

	t.Run("wide V overhead still detects at reduced confidence", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkNose:       {X: 0.6, Y: 0.1},
			LandmarkLeftWrist:  {X: 0.2, Y: 0.05},
			LandmarkRightWrist: {X: 0.9, Y: 0.05},
		})

		result := classifier.Classify(lm, 0.3)
		assert.True(t, result[ArchetypeArmsUp].Detected)
		assert.InDelta(t, 0.8, result[ArchetypeArmsUp].Confidence, 1e-9)
	})

	t.Run("single raised wrist is not a detection", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkNose:       {X: 0.6, Y: 0.1},
			LandmarkLeftWrist:  {X: 0.55, Y: 0.05},
			LandmarkRightWrist: {X: 0.65, Y: 0.5},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeArmsUp].Detected)
		assert.InDelta(t, 0.5, result[ArchetypeArmsUp].Confidence, 1e-9)
	})

	t.Run("both wrists down scores zero", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkNose:       {X: 0.6, Y: 0.1},
			LandmarkLeftWrist:  {X: 0.55, Y: 0.5},
			LandmarkRightWrist: {X: 0.65, Y: 0.5},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeArmsUp].Detected)
		assert.Zero(t, result[ArchetypeArmsUp].Confidence)
	})
}

// TestClassify_Squat tests the bent-knees archetype rule.
func TestClassify_Squat(t *testing.T) {
	t.Parallel()
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("deep squat detects with depth-scaled confidence", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftHip:    {X: 0.5, Y: 0.55},
			LandmarkRightHip:   {X: 0.7, Y: 0.55},
			LandmarkLeftKnee:   {X: 0.6, Y: 0.58},
			LandmarkRightKnee:  {X: 0.8, Y: 0.58},
			LandmarkLeftAnkle:  {X: 0.5, Y: 0.8},
			LandmarkRightAnkle: {X: 0.7, Y: 0.8},
		})

		result := classifier.Classify(lm, 0.25)
		require.True(t, result[ArchetypeSquat].Detected)
		// gap 0.03 against a 0.075 ceiling: depth ratio 0.6, confidence 0.88
		assert.InDelta(t, 0.88, result[ArchetypeSquat].Confidence, 1e-9)
	})

	t.Run("bent knees with high hips is only a half signal", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftHip:    {X: 0.5, Y: 0.4},
			LandmarkRightHip:   {X: 0.7, Y: 0.4},
			LandmarkLeftKnee:   {X: 0.7, Y: 0.6},
			LandmarkRightKnee:  {X: 0.9, Y: 0.6},
			LandmarkLeftAnkle:  {X: 0.5, Y: 0.8},
			LandmarkRightAnkle: {X: 0.7, Y: 0.8},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeSquat].Detected)
		assert.InDelta(t, 0.5, result[ArchetypeSquat].Confidence, 1e-9)
	})

	t.Run("straight legs score zero", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftHip:    {X: 0.5, Y: 0.4},
			LandmarkRightHip:   {X: 0.7, Y: 0.4},
			LandmarkLeftKnee:   {X: 0.5, Y: 0.6},
			LandmarkRightKnee:  {X: 0.7, Y: 0.6},
			LandmarkLeftAnkle:  {X: 0.5, Y: 0.8},
			LandmarkRightAnkle: {X: 0.7, Y: 0.8},
		})

		result := classifier.Classify(lm, 0.3)
		assert.False(t, result[ArchetypeSquat].Detected)
		assert.Zero(t, result[ArchetypeSquat].Confidence)
	})
}

// TestClassify_Lunge tests the split-stance archetype rule.
func TestClassify_Lunge(t *testing.T) {
	t.Parallel()
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("full lunge satisfies all three criteria", func(t *testing.T) {
		t.Parallel()
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftHip:    {X: 0.5, Y: 0.4},
			LandmarkRightHip:   {X: 0.7, Y: 0.4},
			LandmarkLeftKnee:   {X: 0.3, Y: 0.4},
			LandmarkRightKnee:  {X: 0.8, Y: 0.6},
			LandmarkLeftAnkle:  {X: 0.3, Y: 0.8},
			LandmarkRightAnkle: {X: 0.9, Y: 0.8},
		})

		result := classifier.Classify(lm, 0.3)
		require.True(t, result[ArchetypeLunge].Detected)
		assert.InDelta(t, 1.0, result[ArchetypeLunge].Confidence, 1e-9)
	})

	t.Run("two of three criteria still detect", func(t *testing.T) {
		t.Parallel()
		// Back knee bent as well, so back-straight fails.
		lm := testLandmarks(map[int]geom.Point{
			LandmarkLeftHip:    {X: 0.5, Y: 0.4},
			LandmarkRightHip:   {X: 0.7, Y: 0.4},
			LandmarkLeftKnee:   {X: 0.3, Y: 0.4},
			LandmarkRightKnee:  {X: 0.8, Y: 0.6},
			LandmarkLeftAnkle:  {X: 0.3, Y: 0.8},
			LandmarkRightAnkle: {X: 0.7, Y: 0.75},
		})

		result := classifier.Classify(lm, 0.3)
		assert.True(t, result[ArchetypeLunge].Detected)
		assert.InDelta(t, 2.0/3.0, result[ArchetypeLunge].Confidence, 1e-9)
	})

	t.Run("neutral stance is not a lunge", func(t *testing.T) {
		t.Parallel()
		result := classifier.Classify(testLandmarks(nil), 0.3)
		assert.False(t, result[ArchetypeLunge].Detected)
	})
}

// TestClassify_Contract tests the classification envelope independent of
// any single archetype rule.
func TestClassify_Contract(t *testing.T) {
	t.Parallel()
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("absent landmarks yield no observations", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, classifier.Classify(nil, 0.3))
	})

	t.Run("present landmarks always yield all four archetypes", func(t *testing.T) {
		t.Parallel()
		result := classifier.Classify(testLandmarks(nil), 0.3)
		require.Len(t, result, 4)
		for _, archetype := range Archetypes() {
			assert.Contains(t, result, archetype)
		}
	})

	t.Run("confidences stay within the unit interval", func(t *testing.T) {
		t.Parallel()
		fixtures := []LandmarkSet{
			testLandmarks(nil),
			testLandmarks(map[int]geom.Point{LandmarkLeftWrist: {X: -0.2, Y: 1.4}}),
			testLandmarks(map[int]geom.Point{LandmarkNose: {X: 0.5, Y: 0.9}}),
		}
		for _, lm := range fixtures {
			for archetype, obs := range classifier.Classify(lm, 0.3) {
				assert.GreaterOrEqual(t, obs.Confidence, 0.0, "archetype %s", archetype)
				assert.LessOrEqual(t, obs.Confidence, 1.0, "archetype %s", archetype)
			}
		}
	})
}
