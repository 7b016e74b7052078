// Package geom provides pure 2-D geometry helpers used by pose
// classification and movement analysis: joint angles, Euclidean distance,
// moving-average smoothing, and mirror-symmetry scoring. All functions
// operate on plain numeric values and carry no pose or frame state.
package geom

import "math"

// normEpsilon guards divisions against zero-length vectors and zero torso
// scales. Matches the analysis contract exactly; do not change without
// revisiting the classifier thresholds.
const normEpsilon = 1e-6

// Point is a 2-D coordinate in whatever space the caller works in
// (normalized image coordinates throughout this repo).
type Point struct {
	X float64
	Y float64
}

// Angle returns the angle in degrees at vertex b between rays b->a and
// b->c, in [0, 180]. The cosine is clamped to [-1, 1] before acos so that
// floating-point drift on collinear inputs cannot produce NaN. Coincident
// input points yield a defined but not meaningful result; callers must not
// rely on the output when either ray has ~zero length.
func Angle(a, b, c Point) float64 {
	bax := a.X - b.X
	bay := a.Y - b.Y
	bcx := c.X - b.X
	bcy := c.Y - b.Y

	dot := bax*bcx + bay*bcy
	normBA := math.Hypot(bax, bay)
	normBC := math.Hypot(bcx, bcy)

	cosine := dot / (normBA*normBC + normEpsilon)
	if cosine > 1 {
		cosine = 1
	} else if cosine < -1 {
		cosine = -1
	}
	return math.Acos(cosine) * 180 / math.Pi
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Smooth applies a centered moving average of the given window to values.
// At the edges the window is truncated to the available neighbors rather
// than padded, so edge outputs average fewer samples. Sequences shorter
// than the window are returned as-is.
func Smooth(values []float64, window int) []float64 {
	if len(values) < window {
		return values
	}
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(values) {
			end = len(values)
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// SymmetryScore measures how well the left points mirror the right points
// about the vertical line x = centerX. Each left point is reflected across
// the line and its distance to the paired right point accumulated; the mean
// error maps to a score via exp(-10 * err), so 1.0 is a perfect mirror and
// the score decays toward 0 as asymmetry grows. Mismatched list lengths are
// malformed input and score 0.
func SymmetryScore(left, right []Point, centerX float64) float64 {
	if len(left) != len(right) {
		return 0
	}
	if len(left) == 0 {
		return 0
	}
	var total float64
	for i, lp := range left {
		mirrored := Point{X: 2*centerX - lp.X, Y: lp.Y}
		total += Distance(mirrored, right[i])
	}
	avgError := total / float64(len(left))
	return math.Exp(-avgError * 10)
}

// NormalizeByTorso expresses value in torso-height units so that distance
// thresholds stay resolution- and camera-distance-invariant. A small
// epsilon keeps a zero torso from dividing by zero.
func NormalizeByTorso(value, torso float64) float64 {
	return value / (torso + normEpsilon)
}
