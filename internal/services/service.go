/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"

    "github.com/HamedShams/issue-pulse/internal/analysis"
    "github.com/HamedShams/issue-pulse/internal/config"
    "github.com/HamedShams/issue-pulse/internal/domain"
    "github.com/HamedShams/issue-pulse/internal/render"
    "github.com/rs/zerolog"
)

// IssueSource is the acquisition boundary: records arrive fully in memory
// before the run begins.
type IssueSource interface {
    GetIssues(ctx context.Context) ([]domain.Issue, error)
}

type Renderer interface {
    Render(req render.Request) (string, error)
}

type Notifier interface {
    SendMessage(ctx context.Context, chatID int64, text string) error
    SendMessagePlain(ctx context.Context, chatID int64, text string) error
    SendPhoto(ctx context.Context, chatID int64, path, caption string) error
}

type LLM interface {
    Summarize(ctx context.Context, stats []domain.LabelStat, bottlenecks []domain.LabelCount) (string, error)
}

// RunStore records analysis runs and keeps the issue snapshot current.
type RunStore interface {
    StartAnalysisRun(ctx context.Context, source string) (int64, error)
    FinishAnalysisRun(ctx context.Context, id int64, issuesScanned, chartsRendered int, success bool, errStr string) error
    BulkUpsertIssues(ctx context.Context, issues []domain.Issue) error
    GetLastRun(ctx context.Context) (*domain.AnalysisRun, error)
}

type Service struct {
    cfg      config.Config
    log      zerolog.Logger
    store    RunStore
    source   IssueSource
    renderer Renderer
    llm      LLM
    tg       Notifier
    analyzer *analysis.Analyzer
}

func New(cfg config.Config, log zerolog.Logger, store RunStore, source IssueSource, renderer Renderer, llm LLM, tg Notifier) *Service {
    // the label filter is read from config exactly once, here
    return &Service{
        cfg:      cfg,
        log:      log,
        store:    store,
        source:   source,
        renderer: renderer,
        llm:      llm,
        tg:       tg,
        analyzer: analysis.New(cfg.LabelFilter, log),
    }
}

// RunLifecycleAnalysis executes the full batch pipeline: load, derive
// durations, run the three aggregations, render each result, deliver. Empty
// aggregates skip their chart; degenerate input (no issues, or no issue
// with a duration) aborts the run.
func (s *Service) RunLifecycleAnalysis(ctx context.Context) (err error) {
    var runID int64
    if s.store != nil {
        var serr error
        runID, serr = s.store.StartAnalysisRun(ctx, s.cfg.IssueSource)
        if serr != nil { s.log.Error().Err(serr).Msg("start analysis run failed") }
    }
    s.log.Info().Str("source", s.cfg.IssueSource).Str("label_filter", s.cfg.LabelFilter).Msg("lifecycle analysis: start")

    issuesScanned := 0
    chartsRendered := 0
    defer func() {
        if s.store != nil && runID != 0 {
            errStr := ""
            if err != nil { errStr = err.Error() }
            _ = s.store.FinishAnalysisRun(ctx, runID, issuesScanned, chartsRendered, err == nil, errStr)
        }
    }()

    issues, err := s.source.GetIssues(ctx)
    if err != nil { return fmt.Errorf("load issues: %w", err) }
    if len(issues) == 0 { return analysis.ErrNoIssues }
    issuesScanned = len(issues)

    // keep the snapshot current when loading live
    if s.store != nil && s.cfg.IssueSource == "jira" {
        if serr := s.store.BulkUpsertIssues(ctx, issues); serr != nil {
            s.log.Error().Err(serr).Msg("issue snapshot upsert failed")
        }
    }

    derived := s.analyzer.DeriveDurations(issues)

    stats := s.analyzer.LabelDurations(derived)
    labelChart, err := s.renderer.Render(labelDurationsRequest(stats))
    if err != nil { return err }

    created, closed := s.analyzer.MonthlyTrends(derived)
    trendChart, err := s.renderer.Render(monthlyTrendsRequest(created, closed))
    if err != nil { return err }

    bottlenecks, err := s.analyzer.Bottlenecks(derived)
    if err != nil { return err }
    bottleneckChart, err := s.renderer.Render(bottlenecksRequest(bottlenecks))
    if err != nil { return err }

    var charts []chartResult
    for _, c := range []chartResult{
        {path: labelChart, caption: "Average Time-to-Close by Label"},
        {path: trendChart, caption: "Monthly Trends of Issues Created and Closed"},
        {path: bottleneckChart, caption: "Bottleneck Issues by Label"},
    } {
        if c.path != "" { charts = append(charts, c) }
    }
    chartsRendered = len(charts)

    s.deliver(ctx, issuesScanned, charts, stats, bottlenecks)
    s.log.Info().Int("issues", issuesScanned).Int("charts", chartsRendered).Msg("lifecycle analysis: done")
    return nil
}

type chartResult struct {
    path    string
    caption string
}

func labelDurationsRequest(stats []domain.LabelStat) render.Request {
    pairs := make([]render.Pair, 0, len(stats))
    for _, st := range stats { pairs = append(pairs, render.Pair{Key: st.Label, Value: st.MeanDays}) }
    return render.Request{
        Slug:   "label-durations",
        Title:  "Average Time-to-Close by Label",
        XLabel: "Labels",
        YLabel: "Average Time-to-Close (days)",
        Bar:    true,
        Series: []render.Series{{Label: "labels", Color: render.ColorSkyBlue, Pairs: pairs}},
    }
}

func monthlyTrendsRequest(created, closed []domain.MonthCount) render.Request {
    cp := make([]render.Pair, 0, len(created))
    for _, m := range created { cp = append(cp, render.Pair{Key: m.Month, Value: float64(m.Count)}) }
    up := make([]render.Pair, 0, len(closed))
    for _, m := range closed { up = append(up, render.Pair{Key: m.Month, Value: float64(m.Count)}) }
    return render.Request{
        Slug:   "monthly-trends",
        Title:  "Monthly Trends of Issues Created and Closed",
        XLabel: "Month",
        YLabel: "Number of Issues",
        Series: []render.Series{
            {Label: "Issues Created", Color: render.ColorBlue, Pairs: cp},
            {Label: "Issues Closed", Color: render.ColorRed, Pairs: up},
        },
    }
}

func bottlenecksRequest(counts []domain.LabelCount) render.Request {
    pairs := make([]render.Pair, 0, len(counts))
    for _, c := range counts { pairs = append(pairs, render.Pair{Key: c.Label, Value: float64(c.Count)}) }
    return render.Request{
        Slug:   "bottlenecks",
        Title:  "Bottleneck Issues by Label",
        XLabel: "Labels",
        YLabel: "Count of Bottleneck Issues",
        Bar:    true,
        Series: []render.Series{{Label: "labels", Color: render.ColorSalmon, Pairs: pairs}},
    }
}

// deliver pushes the rendered charts and a short summary to every
// configured chat. Delivery failures are logged, never fatal: the analysis
// itself already succeeded.
func (s *Service) deliver(ctx context.Context, issues int, charts []chartResult, stats []domain.LabelStat, bottlenecks []domain.LabelCount) {
    if s.tg == nil || len(s.cfg.TelegramChatIDs) == 0 { return }
    summary := fmt.Sprintf("*Issue Pulse*\nLifecycle analysis complete.\nIssues analyzed: %d\nCharts: %d", issues, len(charts))
    if s.cfg.LabelFilter != "" { summary += fmt.Sprintf("\nLabel filter: %s", s.cfg.LabelFilter) }
    for _, chat := range s.cfg.TelegramChatIDs {
        if err := s.tg.SendMessage(ctx, chat, summary); err != nil {
            s.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
        }
        for _, c := range charts {
            if err := s.tg.SendPhoto(ctx, chat, c.path, c.caption); err != nil {
                s.log.Error().Err(err).Int64("chat", chat).Str("chart", c.path).Msg("telegram photo failed")
            }
        }
    }
    if s.llm != nil && s.cfg.OpenAIKey != "" && (len(stats) > 0 || len(bottlenecks) > 0) {
        note, err := s.llm.Summarize(ctx, stats, bottlenecks)
        if err != nil {
            s.log.Error().Err(err).Msg("llm summary failed")
            return
        }
        for _, chat := range s.cfg.TelegramChatIDs { _ = s.tg.SendMessagePlain(ctx, chat, note) }
    }
}

func (s *Service) GetLastRun(ctx context.Context) (*domain.AnalysisRun, error) {
    if s.store == nil { return nil, fmt.Errorf("no run store configured") }
    return s.store.GetLastRun(ctx)
}

// SendHelp replies with bot capabilities and commands.
func (s *Service) SendHelp(ctx context.Context, chatID int64) error {
    if chatID == 0 || s.tg == nil { return nil }
    help := "Issue Pulse Bot\n" +
        "Issue lifecycle analytics: durations by label, monthly trends, bottlenecks.\n\n" +
        "Commands:\n" +
        "- /analyze — run the lifecycle analysis and post the charts\n" +
        "Setup: Admin configures the issue source, label filter, and schedule."
    return s.tg.SendMessagePlain(ctx, chatID, help)
}
