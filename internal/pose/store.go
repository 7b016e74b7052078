package pose

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by RunStore implementations when the requested
// run does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is one persisted analysis of an uploaded frame sequence.
// Scalar columns are denormalized from the report so listings can be served
// without deserializing every stored report.
type AnalysisRun struct {
	ID              string    `json:"id"`
	SourceName      string    `json:"source_name"`
	CreatedAt       time.Time `json:"created_at"`
	TotalFrames     int       `json:"total_frames"`
	DurationSeconds float64   `json:"duration_seconds"`
	SymmetryScore   float64   `json:"symmetry_score"`
	Report          *Report   `json:"report,omitempty"`
}

// NewAnalysisRun wraps a freshly built report in a run record with a new
// random ID and stamps the ID back onto the report.
func NewAnalysisRun(sourceName string, report *Report, createdAt time.Time) *AnalysisRun {
	run := &AnalysisRun{
		ID:         uuid.NewString(),
		SourceName: sourceName,
		CreatedAt:  createdAt,
		Report:     report,
	}
	if report != nil {
		run.TotalFrames = report.TotalFrames
		run.DurationSeconds = report.DurationSeconds
		run.SymmetryScore = report.Movement.SymmetryScore
		report.RunID = run.ID
	}
	return run
}

// ArchetypeCount aggregates confirmed detections of one archetype across
// all stored runs.
type ArchetypeCount struct {
	Archetype string  `json:"archetype"`
	RunCount  int     `json:"run_count"`
	AvgFrames float64 `json:"avg_frames"`
}

// RunStore persists analysis runs and their reports.
type RunStore interface {
	// SaveRun inserts or replaces a run and its archetype rollups.
	SaveRun(run *AnalysisRun) error
	// GetRun loads a run including its full report. Returns ErrRunNotFound
	// when the id is unknown.
	GetRun(id string) (*AnalysisRun, error)
	// ListRuns returns runs ordered newest first, without report payloads.
	ListRuns(limit, offset int) ([]*AnalysisRun, error)
	// DeleteRun removes a run and its rollups.
	DeleteRun(id string) error
	// ListArchetypeCounts aggregates the stored rollup rows per archetype.
	ListArchetypeCounts() ([]ArchetypeCount, error)
}
