package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AIchemizt/dance-analysis-server/internal/pose"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/dance.defaults.json"

// Fallbacks for fields that have no counterpart in the pose package.
const (
	defaultUploadDir      = "/tmp/dance_uploads"
	defaultMaxUploadBytes = 100 * 1024 * 1024 // 100MB
	defaultListRunsLimit  = 50
)

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches what clients may POST alongside an analysis request,
// so the same JSON works for both startup configuration and per-request
// overrides. Omitted fields fall back to defaults through the Get* methods.
type TuningConfig struct {
	// Classifier thresholds
	StraightArmAngleDeg  *float64 `json:"straight_arm_angle_deg,omitempty"`
	SquatKneeAngleDeg    *float64 `json:"squat_knee_angle_deg,omitempty"`
	LungeFrontKneeDeg    *float64 `json:"lunge_front_knee_deg,omitempty"`
	LungeBackKneeDeg     *float64 `json:"lunge_back_knee_deg,omitempty"`
	WristLevelTolerance  *float64 `json:"wrist_level_tolerance,omitempty"`
	ArmsUpProximityRatio *float64 `json:"arms_up_proximity_ratio,omitempty"`
	SquatHipDropRatio    *float64 `json:"squat_hip_drop_ratio,omitempty"`
	LungeSeparationRatio *float64 `json:"lunge_separation_ratio,omitempty"`

	// Movement analysis params
	MinConsecutiveFrames  *int     `json:"min_consecutive_frames,omitempty"`
	PeakVelocityThreshold *float64 `json:"peak_velocity_threshold,omitempty"`
	SmoothingWindow       *int     `json:"smoothing_window,omitempty"`
	MinLandmarkVisibility *float64 `json:"min_landmark_visibility,omitempty"`
	TorsoScaleFallback    *float64 `json:"torso_scale_fallback,omitempty"`

	// Server params
	UploadDir      *string `json:"upload_dir,omitempty"`
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`
	ListRunsLimit  *int    `json:"list_runs_limit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/pose/geom/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	angles := map[string]*float64{
		"straight_arm_angle_deg": c.StraightArmAngleDeg,
		"squat_knee_angle_deg":   c.SquatKneeAngleDeg,
		"lunge_front_knee_deg":   c.LungeFrontKneeDeg,
		"lunge_back_knee_deg":    c.LungeBackKneeDeg,
	}
	for name, angle := range angles {
		if angle != nil && (*angle <= 0 || *angle > 180) {
			return fmt.Errorf("%s must be between 0 and 180, got %f", name, *angle)
		}
	}

	ratios := map[string]*float64{
		"wrist_level_tolerance":   c.WristLevelTolerance,
		"arms_up_proximity_ratio": c.ArmsUpProximityRatio,
		"squat_hip_drop_ratio":    c.SquatHipDropRatio,
		"lunge_separation_ratio":  c.LungeSeparationRatio,
		"torso_scale_fallback":    c.TorsoScaleFallback,
	}
	for name, ratio := range ratios {
		if ratio != nil && *ratio <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *ratio)
		}
	}

	if c.MinLandmarkVisibility != nil {
		if *c.MinLandmarkVisibility < 0 || *c.MinLandmarkVisibility > 1 {
			return fmt.Errorf("min_landmark_visibility must be between 0 and 1, got %f", *c.MinLandmarkVisibility)
		}
	}

	if c.MinConsecutiveFrames != nil && *c.MinConsecutiveFrames < 1 {
		return fmt.Errorf("min_consecutive_frames must be at least 1, got %d", *c.MinConsecutiveFrames)
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}

	if c.PeakVelocityThreshold != nil && *c.PeakVelocityThreshold < 0 {
		return fmt.Errorf("peak_velocity_threshold must be non-negative, got %f", *c.PeakVelocityThreshold)
	}

	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}

	if c.ListRunsLimit != nil && *c.ListRunsLimit < 1 {
		return fmt.Errorf("list_runs_limit must be at least 1, got %d", *c.ListRunsLimit)
	}

	return nil
}

// GetStraightArmAngleDeg returns the straight_arm_angle_deg value or the default.
func (c *TuningConfig) GetStraightArmAngleDeg() float64 {
	if c.StraightArmAngleDeg == nil {
		return pose.DefaultStraightArmAngleDeg
	}
	return *c.StraightArmAngleDeg
}

// GetSquatKneeAngleDeg returns the squat_knee_angle_deg value or the default.
func (c *TuningConfig) GetSquatKneeAngleDeg() float64 {
	if c.SquatKneeAngleDeg == nil {
		return pose.DefaultSquatKneeAngleDeg
	}
	return *c.SquatKneeAngleDeg
}

// GetLungeFrontKneeDeg returns the lunge_front_knee_deg value or the default.
func (c *TuningConfig) GetLungeFrontKneeDeg() float64 {
	if c.LungeFrontKneeDeg == nil {
		return pose.DefaultLungeFrontKneeDeg
	}
	return *c.LungeFrontKneeDeg
}

// GetLungeBackKneeDeg returns the lunge_back_knee_deg value or the default.
func (c *TuningConfig) GetLungeBackKneeDeg() float64 {
	if c.LungeBackKneeDeg == nil {
		return pose.DefaultLungeBackKneeDeg
	}
	return *c.LungeBackKneeDeg
}

// GetWristLevelTolerance returns the wrist_level_tolerance value or the default.
func (c *TuningConfig) GetWristLevelTolerance() float64 {
	if c.WristLevelTolerance == nil {
		return pose.DefaultWristLevelTolerance
	}
	return *c.WristLevelTolerance
}

// GetArmsUpProximityRatio returns the arms_up_proximity_ratio value or the default.
func (c *TuningConfig) GetArmsUpProximityRatio() float64 {
	if c.ArmsUpProximityRatio == nil {
		return pose.DefaultArmsUpProximityRatio
	}
	return *c.ArmsUpProximityRatio
}

// GetSquatHipDropRatio returns the squat_hip_drop_ratio value or the default.
func (c *TuningConfig) GetSquatHipDropRatio() float64 {
	if c.SquatHipDropRatio == nil {
		return pose.DefaultSquatHipDropRatio
	}
	return *c.SquatHipDropRatio
}

// GetLungeSeparationRatio returns the lunge_separation_ratio value or the default.
func (c *TuningConfig) GetLungeSeparationRatio() float64 {
	if c.LungeSeparationRatio == nil {
		return pose.DefaultLungeSeparationRatio
	}
	return *c.LungeSeparationRatio
}

// GetMinConsecutiveFrames returns the min_consecutive_frames value or the default.
func (c *TuningConfig) GetMinConsecutiveFrames() int {
	if c.MinConsecutiveFrames == nil {
		return pose.DefaultMinConsecutive
	}
	return *c.MinConsecutiveFrames
}

// GetPeakVelocityThreshold returns the peak_velocity_threshold value or the default.
func (c *TuningConfig) GetPeakVelocityThreshold() float64 {
	if c.PeakVelocityThreshold == nil {
		return pose.DefaultReportPeakThreshold
	}
	return *c.PeakVelocityThreshold
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return pose.DefaultSmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetMinLandmarkVisibility returns the min_landmark_visibility value or the default.
func (c *TuningConfig) GetMinLandmarkVisibility() float64 {
	if c.MinLandmarkVisibility == nil {
		return pose.DefaultMinVisibility
	}
	return *c.MinLandmarkVisibility
}

// GetTorsoScaleFallback returns the torso_scale_fallback value or the default.
func (c *TuningConfig) GetTorsoScaleFallback() float64 {
	if c.TorsoScaleFallback == nil {
		return pose.DefaultTorsoScale
	}
	return *c.TorsoScaleFallback
}

// GetUploadDir returns the upload_dir value or the default.
func (c *TuningConfig) GetUploadDir() string {
	if c.UploadDir == nil || *c.UploadDir == "" {
		return defaultUploadDir
	}
	return *c.UploadDir
}

// GetMaxUploadBytes returns the max_upload_bytes value or the default.
func (c *TuningConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return defaultMaxUploadBytes
	}
	return *c.MaxUploadBytes
}

// GetListRunsLimit returns the list_runs_limit value or the default.
func (c *TuningConfig) GetListRunsLimit() int {
	if c.ListRunsLimit == nil {
		return defaultListRunsLimit
	}
	return *c.ListRunsLimit
}

// ClassifierConfig builds a pose.ClassifierConfig from the tuning values.
func (c *TuningConfig) ClassifierConfig() pose.ClassifierConfig {
	return pose.ClassifierConfig{
		StraightArmAngleDeg:  c.GetStraightArmAngleDeg(),
		SquatKneeAngleDeg:    c.GetSquatKneeAngleDeg(),
		LungeFrontKneeDeg:    c.GetLungeFrontKneeDeg(),
		LungeBackKneeDeg:     c.GetLungeBackKneeDeg(),
		WristLevelTolerance:  c.GetWristLevelTolerance(),
		ArmsUpProximityRatio: c.GetArmsUpProximityRatio(),
		SquatHipDropRatio:    c.GetSquatHipDropRatio(),
		LungeSeparationRatio: c.GetLungeSeparationRatio(),
	}
}

// AnalyzerConfig builds a pose.AnalyzerConfig from the tuning values.
func (c *TuningConfig) AnalyzerConfig() pose.AnalyzerConfig {
	return pose.AnalyzerConfig{
		Classifier:            c.ClassifierConfig(),
		MinConsecutiveFrames:  c.GetMinConsecutiveFrames(),
		PeakVelocityThreshold: c.GetPeakVelocityThreshold(),
		SmoothingWindow:       c.GetSmoothingWindow(),
		MinLandmarkVisibility: c.GetMinLandmarkVisibility(),
	}
}
