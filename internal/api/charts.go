package api

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/AIchemizt/dance-analysis-server/internal/httputil"
	"github.com/AIchemizt/dance-analysis-server/internal/pose"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridis ramp shared by the dashboard visual maps.
var viridisColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleRunChart renders the per-run movement dashboard (HTML) with
// go-echarts: joint intensity, the smoothed velocity profile against the
// peak threshold, and the confirmed-pose timeline.
// Query params:
//   - id (required) run to chart
func (s *Server) handleRunChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return
	}

	run, err := s.store.GetRun(id)
	if err == pose.ErrRunNotFound {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
		return
	}
	if run.Report == nil {
		httputil.NotFound(w, "no report stored for run")
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(
		s.intensityBar(run),
		s.velocityLine(run),
		s.poseTimelineScatter(run),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) intensityBar(run *pose.AnalysisRun) *charts.Bar {
	report := run.Report
	names := make([]string, 0, len(report.Movement.MovementIntensity))
	for name := range report.Movement.MovementIntensity {
		names = append(names, name)
	}
	sort.Strings(names)

	y := make([]opts.BarData, len(names))
	for i, name := range names {
		y[i] = opts.BarData{Value: report.Movement.MovementIntensity[name]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Dashboard", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Joint Movement Intensity", Subtitle: fmt.Sprintf("run=%s source=%s frames=%d", run.ID, html.EscapeString(run.SourceName), run.TotalFrames)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("intensity", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func (s *Server) velocityLine(run *pose.AnalysisRun) *charts.Line {
	report := run.Report
	series := report.MotionStats.VelocitySeries
	threshold := s.cfg.GetPeakVelocityThreshold()

	// Velocity offset i describes the step into frame i+1.
	x := make([]string, len(series))
	velocity := make([]opts.LineData, len(series))
	flat := make([]opts.LineData, len(series))
	for i, v := range series {
		x[i] = strconv.Itoa(i + 1)
		velocity[i] = opts.LineData{Value: v}
		flat[i] = opts.LineData{Value: threshold}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Dashboard", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Smoothed Movement Velocity", Subtitle: fmt.Sprintf("threshold=%g peaks=%d", threshold, len(report.Movement.HighMovementFrames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Velocity"}),
	)
	line.SetXAxis(x).
		AddSeries("velocity", velocity, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)})).
		AddSeries("threshold", flat, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func (s *Server) poseTimelineScatter(run *pose.AnalysisRun) *charts.Scatter {
	report := run.Report
	order := pose.Archetypes()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Dashboard", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Confirmed Pose Timeline", Subtitle: fmt.Sprintf("high-movement frames=%d", len(report.Movement.HighMovementFrames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1.0, Max: float64(len(order) + 1)}),
	)

	// Lane 0 carries the peak markers; each archetype gets its own lane.
	peaks := make([]opts.ScatterData, 0, len(report.Movement.HighMovementFrames))
	for _, frame := range report.Movement.HighMovementFrames {
		peaks = append(peaks, opts.ScatterData{Value: []interface{}{frame, 0}})
	}
	scatter.AddSeries("high movement", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	for lane, archetype := range order {
		summary, ok := report.DetectedPoses[string(archetype)]
		if !ok {
			continue
		}
		pts := make([]opts.ScatterData, 0, len(summary.Frames))
		for _, frame := range summary.Frames {
			pts = append(pts, opts.ScatterData{Value: []interface{}{frame, lane + 1}})
		}
		scatter.AddSeries(string(archetype), pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	return scatter
}

// handleRunsOverview renders the cross-run dashboard: per-archetype
// detection tallies and a symmetry/duration scatter over recent runs.
// Query params:
//   - limit (optional) number of recent runs to include
func (s *Server) handleRunsOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := s.cfg.GetListRunsLimit()
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}

	runs, err := s.store.ListRuns(limit, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if len(runs) == 0 {
		httputil.NotFound(w, "no stored runs to chart")
		return
	}

	counts, err := s.store.ListArchetypeCounts()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to tally archetypes: %v", err))
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(
		archetypeCountsBar(counts),
		runsOverviewScatter(runs),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func archetypeCountsBar(counts []pose.ArchetypeCount) *charts.Bar {
	x := make([]string, len(counts))
	runCounts := make([]opts.BarData, len(counts))
	avgFrames := make([]opts.BarData, len(counts))
	for i, c := range counts {
		x[i] = c.Archetype
		runCounts[i] = opts.BarData{Value: c.RunCount}
		avgFrames[i] = opts.BarData{Value: c.AvgFrames}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Runs Overview", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Detections by Archetype", Subtitle: fmt.Sprintf("archetypes=%d", len(counts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("runs", runCounts, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("avg confirmed frames", avgFrames)
	return bar
}

func runsOverviewScatter(runs []*pose.AnalysisRun) *charts.Scatter {
	pts := make([]opts.ScatterData, 0, len(runs))
	maxFrames := 1
	for _, run := range runs {
		if run.TotalFrames > maxFrames {
			maxFrames = run.TotalFrames
		}
		pts = append(pts, opts.ScatterData{Value: []interface{}{run.DurationSeconds, run.SymmetryScore, run.TotalFrames}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Runs Overview", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Symmetry vs Duration", Subtitle: fmt.Sprintf("runs=%d", len(runs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Duration (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0.0, Max: 1.0, Name: "Symmetry", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxFrames),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	scatter.AddSeries("runs", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	return scatter
}
