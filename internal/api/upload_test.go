package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AIchemizt/dance-analysis-server/internal/fsutil"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
	"github.com/AIchemizt/dance-analysis-server/internal/testutil"
)

// recordingFS wraps a FileSystem and records writes and removals so tests
// can assert staged uploads get cleaned up.
type recordingFS struct {
	fsutil.FileSystem
	written []string
	removed []string
}

func (r *recordingFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	r.written = append(r.written, name)
	return r.FileSystem.WriteFile(name, data, perm)
}

func (r *recordingFS) Remove(name string) error {
	r.removed = append(r.removed, name)
	return r.FileSystem.Remove(name)
}

// tPoseFrames builds n identical frames holding a clean T-Pose so the
// analysis pipeline confirms the archetype.
func tPoseFrames(n int) []pose.Frame {
	frames := make([]pose.Frame, n)
	for i := range frames {
		lm := make(pose.LandmarkSet, pose.LandmarkCount)
		for j := range lm {
			lm[j] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1.0}
		}
		lm[pose.LandmarkLeftShoulder] = pose.Landmark{X: 0.5, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkRightShoulder] = pose.Landmark{X: 0.7, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkLeftElbow] = pose.Landmark{X: 0.3, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkRightElbow] = pose.Landmark{X: 0.9, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkLeftWrist] = pose.Landmark{X: 0.1, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkRightWrist] = pose.Landmark{X: 1.1, Y: 0.3, Visibility: 1.0}
		lm[pose.LandmarkLeftHip] = pose.Landmark{X: 0.5, Y: 0.6, Visibility: 1.0}
		lm[pose.LandmarkRightHip] = pose.Landmark{X: 0.7, Y: 0.6, Visibility: 1.0}
		frames[i] = pose.Frame{FrameNumber: i, Timestamp: float64(i) / 30.0, Landmarks: lm}
	}
	return frames
}

func landmarksJSON(t *testing.T, frames []pose.Frame) []byte {
	t.Helper()
	data, err := json.Marshal(frames)
	if err != nil {
		t.Fatalf("failed to marshal frames: %v", err)
	}
	return data
}

func TestHandleAnalyze_Multipart(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	rec := &recordingFS{FileSystem: server.fs}
	server.fs = rec

	payload := landmarksJSON(t, tPoseFrames(8))
	req := testutil.NewMultipartRequest(t, "/analyze", "landmarks", "routine.json", payload)
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var report pose.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if report.TotalFrames != 8 {
		t.Errorf("Expected 8 total frames, got %d", report.TotalFrames)
	}
	if report.RunID == "" {
		t.Error("Expected report to carry a run ID")
	}
	summary, ok := report.DetectedPoses[string(pose.ArchetypeTPose)]
	if !ok {
		t.Fatalf("Expected a T-Pose detection, got %v", report.DetectedPoses)
	}
	if summary.Count != 8 {
		t.Errorf("Expected 8 confirmed T-Pose frames, got %d", summary.Count)
	}

	// The run is stored with its full report.
	run, err := server.store.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("Expected stored run, got error: %v", err)
	}
	if run.SourceName != "routine.json" {
		t.Errorf("Expected source name 'routine.json', got %q", run.SourceName)
	}
	if run.Report == nil {
		t.Fatal("Expected stored run to carry the report")
	}
	if len(run.Report.MotionStats.VelocitySeries) != 7 {
		t.Errorf("Expected 7 velocity samples persisted, got %d", len(run.Report.MotionStats.VelocitySeries))
	}

	// The staged upload was written once and cleaned up afterwards.
	if len(rec.written) != 1 {
		t.Fatalf("Expected 1 staged write, got %d", len(rec.written))
	}
	if len(rec.removed) != 1 || rec.removed[0] != rec.written[0] {
		t.Errorf("Expected staged file %q to be removed, got removals %v", rec.written[0], rec.removed)
	}
	if !strings.HasSuffix(filepath.Base(rec.written[0]), "_routine.json") {
		t.Errorf("Expected staged name '<uuid>_routine.json', got %q", rec.written[0])
	}
}

func TestHandleAnalyze_SanitizesFilename(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	payload := landmarksJSON(t, tPoseFrames(4))
	req := testutil.NewMultipartRequest(t, "/analyze", "landmarks", "../../etc/my routine.json", payload)
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var report pose.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	run, err := server.store.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("Expected stored run, got error: %v", err)
	}
	if strings.Contains(run.SourceName, "..") || strings.Contains(run.SourceName, "/") || strings.Contains(run.SourceName, " ") {
		t.Errorf("Expected sanitized source name, got %q", run.SourceName)
	}
}

func TestHandleAnalyze_RawJSONBody(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	body := fmt.Sprintf(`{"frames": %s}`, landmarksJSON(t, tPoseFrames(6)))
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var report pose.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if report.TotalFrames != 6 {
		t.Errorf("Expected 6 total frames, got %d", report.TotalFrames)
	}

	run, err := server.store.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("Expected stored run, got error: %v", err)
	}
	if run.SourceName != "inline" {
		t.Errorf("Expected source name 'inline' for a JSON body, got %q", run.SourceName)
	}
}

func TestHandleAnalyze_MissingField(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	payload := landmarksJSON(t, tPoseFrames(4))
	req := testutil.NewMultipartRequest(t, "/analyze", "file", "routine.json", payload)
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["error"] != "No landmarks file provided" {
		t.Errorf("Expected error 'No landmarks file provided', got %q", body["error"])
	}
}

func TestHandleAnalyze_InvalidFileType(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	tests := []struct {
		name         string
		filename     string
		wantReceived string
	}{
		{"text extension", "routine.txt", "txt"},
		{"video extension", "routine.mp4", "mp4"},
		{"no extension", "routine", "unknown"},
	}

	payload := landmarksJSON(t, tPoseFrames(4))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewMultipartRequest(t, "/analyze", "landmarks", tt.filename, payload)
			w := httptest.NewRecorder()
			server.handleAnalyze(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["error"] != "Invalid file type" {
				t.Errorf("Expected error 'Invalid file type', got %q", body["error"])
			}
			if body["received"] != tt.wantReceived {
				t.Errorf("Expected received %q, got %q", tt.wantReceived, body["received"])
			}
		})
	}
}

func TestHandleAnalyze_InvalidPayload(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", "{ this is not json", "Invalid landmarks file"},
		{"json object without frames", "{}", "Invalid landmarks file"},
		{"empty frame array", "[]", "No landmark frames found"},
		{"wrapped empty frame array", `{"frames": []}`, "No landmark frames found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewMultipartRequest(t, "/analyze", "landmarks", "routine.json", []byte(tt.payload))
			w := httptest.NewRecorder()
			server.handleAnalyze(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["error"] != tt.wantErr {
				t.Errorf("Expected error %q, got %q", tt.wantErr, body["error"])
			}
		})
	}
}

func TestHandleAnalyze_StagedFileRemovedOnParseFailure(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	rec := &recordingFS{FileSystem: server.fs}
	server.fs = rec

	req := testutil.NewMultipartRequest(t, "/analyze", "landmarks", "routine.json", []byte("{ broken"))
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if len(rec.written) != 1 {
		t.Fatalf("Expected 1 staged write, got %d", len(rec.written))
	}
	if len(rec.removed) != 1 || rec.removed[0] != rec.written[0] {
		t.Errorf("Expected staged file %q to be removed after failure, got removals %v", rec.written[0], rec.removed)
	}
}

func TestHandleAnalyze_BodyTooLarge(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	limit := int64(64)
	server.cfg.MaxUploadBytes = &limit

	body := fmt.Sprintf(`{"frames": %s}`, landmarksJSON(t, tPoseFrames(4)))
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d", w.Code)
	}
	var respBody map[string]string
	if err := json.NewDecoder(w.Body).Decode(&respBody); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if respBody["error"] != "File too large" {
		t.Errorf("Expected error 'File too large', got %q", respBody["error"])
	}
}

func TestHandleAnalyze_UnsupportedContentType(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("frames"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["error"] != "No landmarks file provided" {
		t.Errorf("Expected error 'No landmarks file provided', got %q", body["error"])
	}
}

func TestHandleAnalyze_MethodNotAllowed(t *testing.T) {
	server, dbInst := setupTestServer(t)
	defer cleanupTestServer(t, dbInst)

	req := httptest.NewRequest(http.MethodGet, "/analyze", nil)
	w := httptest.NewRecorder()
	server.handleAnalyze(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
