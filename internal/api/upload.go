package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AIchemizt/dance-analysis-server/internal/httputil"
	"github.com/AIchemizt/dance-analysis-server/internal/monitoring"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
	"github.com/AIchemizt/dance-analysis-server/internal/security"
)

// uploadField is the multipart form key carrying the landmark frames file.
const uploadField = "landmarks"

// handleAnalyze accepts a landmark frames document, runs the analysis
// pipeline over it, persists the run, and responds with the report. The
// document arrives either as a multipart upload under the "landmarks" field
// or as a raw application/json body.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.GetMaxUploadBytes())

	var payload []byte
	var sourceName string

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error":   "File too large",
					"message": fmt.Sprintf("Uploads are capped at %d bytes", s.cfg.GetMaxUploadBytes()),
				})
				return
			}
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "No landmarks file provided",
				"message": `Request must include a landmarks file with key "landmarks"`,
			})
			return
		}
		defer file.Close()

		if header.Filename == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "Empty filename",
				"message": "Uploaded file has no name",
			})
			return
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
		if ext != "json" {
			received := ext
			if received == "" {
				received = "unknown"
			}
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":    "Invalid file type",
				"message":  "Allowed types: json",
				"received": received,
			})
			return
		}

		payload, err = io.ReadAll(file)
		if err != nil {
			httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Internal server error",
				"message": "Failed to read uploaded file",
				"details": err.Error(),
			})
			return
		}
		sourceName = security.SanitizeFilename(header.Filename)

	case strings.HasPrefix(contentType, "application/json"):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error":   "File too large",
					"message": fmt.Sprintf("Uploads are capped at %d bytes", s.cfg.GetMaxUploadBytes()),
				})
				return
			}
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "Invalid request body",
				"message": "Could not read request body",
			})
			return
		}
		payload = data
		sourceName = "inline"

	default:
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "No landmarks file provided",
			"message": `Request must include a landmarks file with key "landmarks" or a JSON body`,
		})
		return
	}

	// Stage the document under a collision-proof name before analysis, the
	// same lifecycle as the original collector uploads.
	uploadDir := s.cfg.GetUploadDir()
	if err := s.fs.MkdirAll(uploadDir, 0755); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": "Failed to prepare upload directory",
			"details": err.Error(),
		})
		return
	}

	stagedPath := filepath.Join(uploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), sourceName))
	if err := security.ValidatePathWithinDirectory(stagedPath, uploadDir); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid filename",
			"message": "Resolved upload path escapes the upload directory",
		})
		return
	}
	if err := s.fs.WriteFile(stagedPath, payload, 0644); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": "Failed to stage upload",
			"details": err.Error(),
		})
		return
	}
	defer func() {
		if err := s.fs.Remove(stagedPath); err != nil {
			monitoring.Logf("could not delete staged upload %s: %v", stagedPath, err)
		}
	}()

	frames, err := pose.ParseFrames(payload)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid landmarks file",
			"message": "Could not parse frame records from the uploaded file",
			"details": err.Error(),
		})
		return
	}
	if len(frames) == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "No landmark frames found",
			"message": "File contained no frame records. It may be empty or not a landmarks export.",
		})
		return
	}

	report := pose.BuildReport(frames, s.cfg.AnalyzerConfig())
	run := pose.NewAnalysisRun(sourceName, report, s.clock.Now())
	if err := s.store.SaveRun(run); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": "Failed to persist analysis run",
			"details": err.Error(),
		})
		return
	}

	httputil.WriteJSONOK(w, report)
}
