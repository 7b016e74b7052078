// Package sqlite persists pose analysis runs and their per-archetype
// detection rollups in SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AIchemizt/dance-analysis-server/internal/pose"
)

// RunStore provides SQLite-backed persistence for analysis runs.
type RunStore struct {
	db *sql.DB
}

// Compile-time check that RunStore satisfies the domain contract.
var _ pose.RunStore = (*RunStore)(nil)

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// SaveRun inserts or replaces a run together with its archetype rollup
// rows. The rollups are rewritten wholesale inside one transaction so the
// table always mirrors the stored report.
func (s *RunStore) SaveRun(run *pose.AnalysisRun) error {
	var reportJSON []byte
	if run.Report != nil {
		var err error
		reportJSON, err = run.Report.ToJSON()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		reportJSON = []byte("{}")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT DO UPDATE keeps re-analysis of the same run id from
	// cascade-deleting rollup rows mid-transaction.
	query := `
		INSERT INTO analysis_runs (
			id, source_name, created_at_ns,
			total_frames, duration_seconds, symmetry_score, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_name = excluded.source_name,
			created_at_ns = excluded.created_at_ns,
			total_frames = excluded.total_frames,
			duration_seconds = excluded.duration_seconds,
			symmetry_score = excluded.symmetry_score,
			report_json = excluded.report_json
	`
	_, err = tx.Exec(query,
		run.ID,
		run.SourceName,
		run.CreatedAt.UnixNano(),
		run.TotalFrames,
		run.DurationSeconds,
		run.SymmetryScore,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM pose_detections WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear detections: %w", err)
	}

	if run.Report != nil {
		for archetype, summary := range run.Report.DetectedPoses {
			_, err := tx.Exec(`
				INSERT INTO pose_detections (run_id, archetype, frame_count, average_confidence)
				VALUES (?, ?, ?, ?)
			`, run.ID, archetype, summary.Count, summary.AverageConfidence)
			if err != nil {
				return fmt.Errorf("insert detection rollup %s: %w", archetype, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, including its full report.
func (s *RunStore) GetRun(id string) (*pose.AnalysisRun, error) {
	query := `
		SELECT id, source_name, created_at_ns,
		       total_frames, duration_seconds, symmetry_score, report_json
		FROM analysis_runs
		WHERE id = ?
	`

	var run pose.AnalysisRun
	var createdAtNs int64
	var reportJSON string

	err := s.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.SourceName,
		&createdAtNs,
		&run.TotalFrames,
		&run.DurationSeconds,
		&run.SymmetryScore,
		&reportJSON,
	)
	if err == sql.ErrNoRows {
		return nil, pose.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.CreatedAt = time.Unix(0, createdAtNs).UTC()
	if reportJSON != "" && reportJSON != "{}" {
		report, err := pose.ParseReport([]byte(reportJSON))
		if err != nil {
			return nil, fmt.Errorf("decode stored report: %w", err)
		}
		run.Report = report
	}

	return &run, nil
}

// ListRuns retrieves runs ordered newest first. Report payloads are left
// unloaded; callers wanting the full report should follow up with GetRun.
func (s *RunStore) ListRuns(limit, offset int) ([]*pose.AnalysisRun, error) {
	query := `
		SELECT id, source_name, created_at_ns,
		       total_frames, duration_seconds, symmetry_score
		FROM analysis_runs
		ORDER BY created_at_ns DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*pose.AnalysisRun
	for rows.Next() {
		var run pose.AnalysisRun
		var createdAtNs int64
		if err := rows.Scan(
			&run.ID,
			&run.SourceName,
			&createdAtNs,
			&run.TotalFrames,
			&run.DurationSeconds,
			&run.SymmetryScore,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, createdAtNs).UTC()
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// DeleteRun removes a run and its rollup rows.
func (s *RunStore) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pose_detections WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("delete detections: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run rows affected: %w", err)
	}
	if affected == 0 {
		return pose.ErrRunNotFound
	}

	return tx.Commit()
}

// ListArchetypeCounts tallies, per archetype, how many stored runs
// confirmed it and the mean confirmed-frame count. Feeds the runs
// overview chart.
func (s *RunStore) ListArchetypeCounts() ([]pose.ArchetypeCount, error) {
	query := `
		SELECT archetype, COUNT(*), AVG(frame_count)
		FROM pose_detections
		GROUP BY archetype
		ORDER BY archetype
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list archetype counts: %w", err)
	}
	defer rows.Close()

	var counts []pose.ArchetypeCount
	for rows.Next() {
		var c pose.ArchetypeCount
		if err := rows.Scan(&c.Archetype, &c.RunCount, &c.AvgFrames); err != nil {
			return nil, fmt.Errorf("scan archetype count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archetype counts: %w", err)
	}

	return counts, nil
}
