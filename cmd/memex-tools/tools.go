package main

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"memex/internal/observability"
	"memex/internal/toolservice"
	"memex/internal/version"
)

// logged wraps a tool handler so every call is logged at debug level with
// its (redacted) arguments and, when a trace is active, the request's
// trace/span id — so tool-call logs correlate with OTel traces the same
// way capture-tick logs do.
func logged[In, Out any](name string, h func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		logger := observability.LoggerWithTrace(ctx)
		if b, err := json.Marshal(in); err == nil {
			logger.Debug().Str("tool", name).RawJSON("args", observability.RedactJSON(b)).Msg("tool call")
		}
		return h(ctx, req, in)
	}
}

// server wraps a toolservice.Service with its MCP registration.
type server struct {
	svc *toolservice.Service
	mcp *mcp.Server
}

func newServer(svc *toolservice.Service) *server {
	s := &server{svc: svc}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "memex-tools", Version: version.Version}, nil)
	s.registerTools()
	return s
}

func (s *server) serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search-screenshots",
		Description: "Search captured screen text by free-text query, optionally narrowed by screen name or date range. Falls back to a direct file scan when the vector index is unreachable.",
	}, logged("search-screenshots", s.handleSearchScreenshots))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "vector-search-windowed",
		Description: "Find the best-matching capture in each of 4 to 48 equal-width windows spanning the trailing lookback period, useful for a roughly-even sampling of relevant activity over time.",
	}, logged("vector-search-windowed", s.handleVectorSearchWindowed))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search-recent-relevant",
		Description: "Search recent captures, blending embedding relevance with recency, expanding the lookback window automatically until enough results qualify.",
	}, logged("search-recent-relevant", s.handleSearchRecentRelevant))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sample-time-range",
		Description: "Sample the earliest capture from each of several equal windows across a date range, reporting empty windows explicitly rather than interpolating.",
	}, logged("sample-time-range", s.handleSampleTimeRange))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "time-range-summary",
		Description: "Summarize a date range: a sweep of up to 24 samples (fewer for ranges under 6 hours, one per 15 minutes) plus total record count and the number of windows with no activity.",
	}, logged("time-range-summary", s.handleTimeRangeSummary))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "daily-summary",
		Description: "Summarize a single day across its six fixed 4-hour periods: record counts, top screens, and a handful of samples per period.",
	}, logged("daily-summary", s.handleDailySummary))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "activity-graph",
		Description: "Zero-filled activity histogram over the trailing day, week, or month, bucketed by hour or day.",
	}, logged("activity-graph", s.handleActivityGraph))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get-stats",
		Description: "Report the record store's extent (count, time bounds, distinct screens) and the vector index's entry count, when reachable.",
	}, logged("get-stats", s.handleGetStats))

	log.Info().Int("count", 8).Msg("tool service: tools registered")
}

// SearchScreenshotsInput is the MCP input schema for search-screenshots.
type SearchScreenshotsInput struct {
	Query      string `json:"query" jsonschema:"free-text query to match against captured screen text"`
	ScreenName string `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
	StartDate  string `json:"start_date,omitempty" jsonschema:"YYYY-MM-DD or RFC3339, inclusive lower bound"`
	EndDate    string `json:"end_date,omitempty" jsonschema:"YYYY-MM-DD or RFC3339, inclusive upper bound"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum results, default 10"`
}

// HitOutput is a single retrieval result in MCP responses.
type HitOutput struct {
	ID         string  `json:"id"`
	ScreenName string  `json:"screen_name"`
	Text       string  `json:"text"`
	Timestamp  string  `json:"timestamp"`
	Score      float64 `json:"score"`
}

// SearchScreenshotsOutput is the MCP output schema for search-screenshots.
type SearchScreenshotsOutput struct {
	Mode    string      `json:"mode"`
	Results []HitOutput `json:"results"`
}

func (s *server) handleSearchScreenshots(ctx context.Context, _ *mcp.CallToolRequest, in SearchScreenshotsInput) (*mcp.CallToolResult, SearchScreenshotsOutput, error) {
	resp, err := s.svc.SearchScreenshots(ctx, toolservice.SearchScreenshotsRequest{
		Query:      in.Query,
		ScreenName: in.ScreenName,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, SearchScreenshotsOutput{}, err
	}
	return nil, SearchScreenshotsOutput{Mode: resp.Mode, Results: toHitOutputs(resp.Results)}, nil
}

// VectorSearchWindowedInput is the MCP input schema for vector-search-windowed.
type VectorSearchWindowedInput struct {
	Query        string  `json:"query" jsonschema:"free-text query to match against captured screen text"`
	ScreenName   string  `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
	HoursBack    int     `json:"hours_back,omitempty" jsonschema:"total lookback span in hours, default 24; partitioned into clamp(hours_back,4,48) equal windows"`
	MinRelevance float64 `json:"min_relevance,omitempty" jsonschema:"drop window matches below this relevance, 0 to 1, default 0.5"`
	Limit        int     `json:"limit,omitempty" jsonschema:"maximum results"`
}

// VectorSearchWindowedOutput is the MCP output schema for vector-search-windowed.
type VectorSearchWindowedOutput struct {
	WindowCount int         `json:"window_count"`
	Results     []HitOutput `json:"results"`
}

func (s *server) handleVectorSearchWindowed(ctx context.Context, _ *mcp.CallToolRequest, in VectorSearchWindowedInput) (*mcp.CallToolResult, VectorSearchWindowedOutput, error) {
	resp, err := s.svc.VectorSearchWindowed(ctx, toolservice.VectorSearchWindowedRequest{
		Query:        in.Query,
		ScreenName:   in.ScreenName,
		HoursBack:    in.HoursBack,
		MinRelevance: in.MinRelevance,
		Limit:        in.Limit,
	})
	if err != nil {
		return nil, VectorSearchWindowedOutput{}, err
	}
	return nil, VectorSearchWindowedOutput{WindowCount: resp.WindowCount, Results: toHitOutputs(resp.Results)}, nil
}

// SearchRecentRelevantInput is the MCP input schema for search-recent-relevant.
type SearchRecentRelevantInput struct {
	Query         string  `json:"query" jsonschema:"free-text query to match against captured screen text"`
	ScreenName    string  `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
	InitialDays   int     `json:"initial_days,omitempty" jsonschema:"starting lookback window in days, default 7"`
	MaxDays       int     `json:"max_days,omitempty" jsonschema:"maximum lookback window in days, default 90"`
	RecencyWeight float64 `json:"recency_weight,omitempty" jsonschema:"weight on recency vs relevance, 0 to 1, default 0.5"`
	MinScore      float64 `json:"min_score,omitempty" jsonschema:"drop results below this blended score, default 0.6"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum results, default 10"`
}

// SearchRecentRelevantOutput is the MCP output schema for search-recent-relevant.
type SearchRecentRelevantOutput struct {
	WindowDays int         `json:"window_days"`
	Results    []HitOutput `json:"results"`
}

func (s *server) handleSearchRecentRelevant(ctx context.Context, _ *mcp.CallToolRequest, in SearchRecentRelevantInput) (*mcp.CallToolResult, SearchRecentRelevantOutput, error) {
	resp, err := s.svc.SearchRecentRelevant(ctx, toolservice.SearchRecentRelevantRequest{
		Query:         in.Query,
		ScreenName:    in.ScreenName,
		InitialDays:   in.InitialDays,
		MaxDays:       in.MaxDays,
		RecencyWeight: in.RecencyWeight,
		MinScore:      in.MinScore,
		Limit:         in.Limit,
	})
	if err != nil {
		return nil, SearchRecentRelevantOutput{}, err
	}
	return nil, SearchRecentRelevantOutput{WindowDays: resp.WindowDays, Results: toHitOutputs(resp.Results)}, nil
}

// SampleTimeRangeInput is the MCP input schema for sample-time-range.
type SampleTimeRangeInput struct {
	StartDate        string `json:"start_date" jsonschema:"YYYY-MM-DD or RFC3339, inclusive lower bound"`
	EndDate          string `json:"end_date" jsonschema:"YYYY-MM-DD (that whole day included) or RFC3339 (exclusive upper bound)"`
	ScreenName       string `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
	MaxSamples       int    `json:"max_samples,omitempty" jsonschema:"maximum number of windows, default 24"`
	MinWindowMinutes int    `json:"min_window_minutes,omitempty" jsonschema:"minimum window width in minutes, default 15"`
}

// SampleOutput is one window's result in sample-time-range/time-range-summary/daily-summary.
type SampleOutput struct {
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Empty       bool   `json:"empty"`
	ID          string `json:"id,omitempty"`
	ScreenName  string `json:"screen_name,omitempty"`
	Text        string `json:"text,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// SampleTimeRangeOutput is the MCP output schema for sample-time-range.
type SampleTimeRangeOutput struct {
	Samples []SampleOutput `json:"samples"`
}

func (s *server) handleSampleTimeRange(ctx context.Context, _ *mcp.CallToolRequest, in SampleTimeRangeInput) (*mcp.CallToolResult, SampleTimeRangeOutput, error) {
	resp, err := s.svc.SampleTimeRange(ctx, toolservice.SampleTimeRangeRequest{
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		ScreenName:       in.ScreenName,
		MaxSamples:       in.MaxSamples,
		MinWindowMinutes: in.MinWindowMinutes,
	})
	if err != nil {
		return nil, SampleTimeRangeOutput{}, err
	}
	return nil, SampleTimeRangeOutput{Samples: toSampleOutputs(resp.Samples)}, nil
}

// TimeRangeSummaryInput is the MCP input schema for time-range-summary.
type TimeRangeSummaryInput struct {
	StartDate  string `json:"start_date" jsonschema:"YYYY-MM-DD or RFC3339, inclusive lower bound"`
	EndDate    string `json:"end_date" jsonschema:"YYYY-MM-DD (that whole day included) or RFC3339 (exclusive upper bound)"`
	ScreenName string `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
}

// TimeRangeSummaryOutput is the MCP output schema for time-range-summary.
type TimeRangeSummaryOutput struct {
	Samples      []SampleOutput `json:"samples"`
	TotalRecords int            `json:"total_records"`
	EmptyWindows int            `json:"empty_windows"`
}

func (s *server) handleTimeRangeSummary(ctx context.Context, _ *mcp.CallToolRequest, in TimeRangeSummaryInput) (*mcp.CallToolResult, TimeRangeSummaryOutput, error) {
	resp, err := s.svc.TimeRangeSummary(ctx, toolservice.TimeRangeSummaryRequest{
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		ScreenName: in.ScreenName,
	})
	if err != nil {
		return nil, TimeRangeSummaryOutput{}, err
	}
	return nil, TimeRangeSummaryOutput{
		Samples:      toSampleOutputs(resp.Samples),
		TotalRecords: resp.TotalRecords,
		EmptyWindows: resp.EmptyWindows,
	}, nil
}

// DailySummaryInput is the MCP input schema for daily-summary.
type DailySummaryInput struct {
	Date       string `json:"date" jsonschema:"YYYY-MM-DD, the day to summarize"`
	ScreenName string `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
}

// ScreenCountOutput is a screen_name/count pair.
type ScreenCountOutput struct {
	ScreenName string `json:"screen_name"`
	Count      int    `json:"count"`
}

// DailyPeriodOutput is one of a day's six fixed 4-hour periods.
type DailyPeriodOutput struct {
	Start       string              `json:"start"`
	End         string              `json:"end"`
	RecordCount int                 `json:"record_count"`
	TopScreens  []ScreenCountOutput `json:"top_screens"`
	Samples     []SampleOutput      `json:"samples"`
}

// DailySummaryOutput is the MCP output schema for daily-summary.
type DailySummaryOutput struct {
	Periods []DailyPeriodOutput `json:"periods"`
}

func (s *server) handleDailySummary(ctx context.Context, _ *mcp.CallToolRequest, in DailySummaryInput) (*mcp.CallToolResult, DailySummaryOutput, error) {
	resp, err := s.svc.DailySummary(ctx, toolservice.DailySummaryRequest{Date: in.Date, ScreenName: in.ScreenName})
	if err != nil {
		return nil, DailySummaryOutput{}, err
	}
	periods := make([]DailyPeriodOutput, len(resp.Periods))
	for i, p := range resp.Periods {
		screens := make([]ScreenCountOutput, len(p.TopScreens))
		for j, sc := range p.TopScreens {
			screens[j] = ScreenCountOutput{ScreenName: sc.ScreenName, Count: sc.Count}
		}
		periods[i] = DailyPeriodOutput{
			Start:       p.Start.Format(timeFormat),
			End:         p.End.Format(timeFormat),
			RecordCount: p.RecordCount,
			TopScreens:  screens,
			Samples:     toSampleOutputs(p.Samples),
		}
	}
	return nil, DailySummaryOutput{Periods: periods}, nil
}

// ActivityGraphInput is the MCP input schema for activity-graph.
type ActivityGraphInput struct {
	Range       string `json:"range" jsonschema:"one of day, week, month"`
	Granularity string `json:"granularity" jsonschema:"one of hour, day"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"defaults to now"`
	ScreenName  string `json:"screen_name,omitempty" jsonschema:"restrict to captures from this screen"`
}

// ActivityBucketOutput is one zero-filled bucket of the activity graph.
type ActivityBucketOutput struct {
	BucketStart     string `json:"bucket_start"`
	RecordCount     int    `json:"record_count"`
	DistinctScreens int    `json:"distinct_screens"`
}

// ActivityGraphOutput is the MCP output schema for activity-graph.
type ActivityGraphOutput struct {
	Buckets []ActivityBucketOutput `json:"buckets"`
}

func (s *server) handleActivityGraph(ctx context.Context, _ *mcp.CallToolRequest, in ActivityGraphInput) (*mcp.CallToolResult, ActivityGraphOutput, error) {
	resp, err := s.svc.ActivityGraph(ctx, toolservice.ActivityGraphRequest{
		Range:       in.Range,
		Granularity: in.Granularity,
		EndDate:     in.EndDate,
		ScreenName:  in.ScreenName,
	})
	if err != nil {
		return nil, ActivityGraphOutput{}, err
	}
	buckets := make([]ActivityBucketOutput, len(resp.Buckets))
	for i, b := range resp.Buckets {
		buckets[i] = ActivityBucketOutput{
			BucketStart:     b.BucketStart.Format(timeFormat),
			RecordCount:     b.RecordCount,
			DistinctScreens: b.DistinctScreens,
		}
	}
	return nil, ActivityGraphOutput{Buckets: buckets}, nil
}

// GetStatsInput is the MCP input schema for get-stats; it takes no parameters.
type GetStatsInput struct{}

// GetStatsOutput is the MCP output schema for get-stats.
type GetStatsOutput struct {
	RecordCountOnDisk int    `json:"record_count_on_disk"`
	IndexCount        *int   `json:"index_count"`
	FirstTimestamp    string `json:"first_timestamp,omitempty"`
	LastTimestamp     string `json:"last_timestamp,omitempty"`
	DistinctScreens   int    `json:"distinct_screens"`
	IndexAvailable    bool   `json:"index_available"`
}

func (s *server) handleGetStats(ctx context.Context, _ *mcp.CallToolRequest, _ GetStatsInput) (*mcp.CallToolResult, GetStatsOutput, error) {
	resp, err := s.svc.GetStats(ctx)
	if err != nil {
		return nil, GetStatsOutput{}, err
	}
	out := GetStatsOutput{
		RecordCountOnDisk: resp.RecordCountOnDisk,
		IndexCount:        resp.IndexCount,
		DistinctScreens:   resp.DistinctScreens,
		IndexAvailable:    resp.IndexAvailable,
	}
	if resp.FirstTimestamp != nil {
		out.FirstTimestamp = resp.FirstTimestamp.Format(timeFormat)
	}
	if resp.LastTimestamp != nil {
		out.LastTimestamp = resp.LastTimestamp.Format(timeFormat)
	}
	return nil, out, nil
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func toHitOutputs(hits []toolservice.Hit) []HitOutput {
	out := make([]HitOutput, len(hits))
	for i, h := range hits {
		out[i] = HitOutput{
			ID:         h.ID,
			ScreenName: h.ScreenName,
			Text:       h.Text,
			Timestamp:  h.Timestamp.Format(timeFormat),
			Score:      h.Score,
		}
	}
	return out
}

func toSampleOutputs(samples []toolservice.Sample) []SampleOutput {
	out := make([]SampleOutput, len(samples))
	for i, sm := range samples {
		o := SampleOutput{
			WindowStart: sm.WindowStart.Format(timeFormat),
			WindowEnd:   sm.WindowEnd.Format(timeFormat),
			Empty:       sm.Empty,
		}
		if !sm.Empty {
			o.ID = sm.ID
			o.ScreenName = sm.ScreenName
			o.Text = sm.Text
			o.Timestamp = sm.Timestamp.Format(timeFormat)
		}
		out[i] = o
	}
	return out
}
