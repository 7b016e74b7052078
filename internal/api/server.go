// Package api implements the HTTP surface of the dance analysis service:
// landmark upload and analysis, stored run retrieval, and the echarts
// dashboard pages.
package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AIchemizt/dance-analysis-server/internal/config"
	"github.com/AIchemizt/dance-analysis-server/internal/fsutil"
	"github.com/AIchemizt/dance-analysis-server/internal/httputil"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
	"github.com/AIchemizt/dance-analysis-server/internal/timeutil"
	"github.com/AIchemizt/dance-analysis-server/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxListLimit caps how many runs a single listing request may return.
const maxListLimit = 500

type Server struct {
	store pose.RunStore
	cfg   *config.TuningConfig
	fs    fsutil.FileSystem
	clock timeutil.Clock
}

// NewServer wires the HTTP handlers to a run store and tuning config. A nil
// fs or clock falls back to the OS filesystem and wall clock.
func NewServer(store pose.RunStore, cfg *config.TuningConfig, fs fsutil.FileSystem, clock timeutil.Clock) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		store: store,
		cfg:   cfg,
		fs:    fs,
		clock: clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/runs", s.handleListRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/charts/run", s.handleRunChart)
	mux.HandleFunc("/charts/runs", s.handleRunsOverview)
	return mux
}

// handleHealth answers load-balancer probes. No dependencies are checked so
// the response stays fast.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "service": "dance-analysis-server", "version": %q}`, version.Version)
}

// handleIndex serves JSON API documentation at the root.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "no such endpoint")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	docs := map[string]interface{}{
		"service": "Dance Movement Analysis Server",
		"version": version.Version,
		"endpoints": map[string]interface{}{
			"/health": map[string]interface{}{
				"method":      "GET",
				"description": "Health check endpoint",
			},
			"/analyze": map[string]interface{}{
				"method":      "POST",
				"description": "Analyze a landmark frames file for poses and movement patterns",
				"request": map[string]interface{}{
					"content_type":     "multipart/form-data or application/json",
					"field":            "landmarks",
					"accepted_formats": []string{"json"},
					"max_size":         "100MB",
				},
				"response": map[string]interface{}{
					"total_frames":      "Number of processed frames",
					"duration_seconds":  "Sequence duration",
					"detected_poses":    "Dictionary of detected poses with frame numbers",
					"movement_analysis": "Movement intensity and symmetry metrics",
				},
			},
			"/api/runs": map[string]interface{}{
				"method":      "GET",
				"description": "List stored analysis runs (query: limit, offset)",
			},
			"/api/runs/{id}": map[string]interface{}{
				"method":      "GET, DELETE",
				"description": "Fetch or delete one stored run including its report",
			},
			"/charts/run": map[string]interface{}{
				"method":      "GET",
				"description": "Movement dashboard for one run (query: id)",
			},
			"/charts/runs": map[string]interface{}{
				"method":      "GET",
				"description": "Overview dashboard across stored runs",
			},
		},
		"example_curl": `curl -X POST -F "landmarks=@routine.json" http://localhost:8080/analyze`,
	}
	httputil.WriteJSONOK(w, docs)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := s.cfg.GetListRunsLimit()
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.BadRequest(w, "Invalid 'offset' parameter")
			return
		}
		offset = parsed
	}

	runs, err := s.store.ListRuns(limit, offset)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*pose.AnalysisRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.NotFound(w, "no such endpoint")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.store.GetRun(id)
		if err == pose.ErrRunNotFound {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
			return
		}
		httputil.WriteJSONOK(w, run)

	case http.MethodDelete:
		err := s.store.DeleteRun(id)
		if err == pose.ErrRunNotFound {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "deleted", "id": id})

	default:
		httputil.MethodNotAllowed(w)
	}
}
