/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analysis

import (
    "errors"
    "math"
    "sort"

    "github.com/HamedShams/issue-pulse/internal/domain"
    "github.com/rs/zerolog"
)

var (
    ErrNoIssues    = errors.New("analysis: no issues loaded")
    ErrNoDurations = errors.New("analysis: no issue has a derived duration")
)

// Analyzer runs the lifecycle passes over an in-memory issue slice. The
// label filter is fixed at construction and only narrows the per-label
// duration view; trends and bottlenecks always see the full set.
type Analyzer struct {
    labelFilter string
    log         zerolog.Logger
}

func New(labelFilter string, log zerolog.Logger) *Analyzer {
    return &Analyzer{labelFilter: labelFilter, log: log}
}

// DeriveDurations returns a copy of issues with DurationDays populated for
// every issue carrying both timestamps. The day difference is floored and
// signed; an update before creation yields a negative duration. Issues
// missing either timestamp are copied through untouched.
func (a *Analyzer) DeriveDurations(issues []domain.Issue) []domain.Issue {
    out := make([]domain.Issue, len(issues))
    copy(out, issues)
    for i := range out {
        if out[i].CreatedAt == nil || out[i].UpdatedAt == nil { continue }
        days := int(math.Floor(out[i].UpdatedAt.Sub(*out[i].CreatedAt).Hours() / 24))
        d := days
        out[i].DurationDays = &d
    }
    return out
}

// LabelDurations computes the mean open duration per label. An issue with
// several labels contributes its duration to each of them. Issues without a
// derived duration are excluded, so a label only appears when at least one
// qualifying issue carries it. Output follows label encounter order.
func (a *Analyzer) LabelDurations(issues []domain.Issue) []domain.LabelStat {
    sums := map[string]float64{}
    counts := map[string]int{}
    var order []string
    for _, is := range issues {
        if a.labelFilter != "" && !hasLabel(is, a.labelFilter) { continue }
        if is.DurationDays == nil { continue }
        for _, l := range is.Labels {
            if _, seen := counts[l]; !seen { order = append(order, l) }
            sums[l] += float64(*is.DurationDays)
            counts[l]++
        }
    }
    out := make([]domain.LabelStat, 0, len(order))
    for _, l := range order {
        out = append(out, domain.LabelStat{Label: l, MeanDays: sums[l] / float64(counts[l])})
    }
    return out
}

// MonthlyTrends buckets creation and update timestamps by calendar month.
// Each series covers only issues where that timestamp is present, keys are
// ascending, and months without occurrences are not synthesized.
func (a *Analyzer) MonthlyTrends(issues []domain.Issue) (created, closed []domain.MonthCount) {
    createdCounts := map[string]int{}
    closedCounts := map[string]int{}
    for _, is := range issues {
        if is.CreatedAt != nil { createdCounts[is.CreatedAt.Format("2006-01")]++ }
        if is.UpdatedAt != nil { closedCounts[is.UpdatedAt.Format("2006-01")]++ }
    }
    return sortMonths(createdCounts), sortMonths(closedCounts)
}

// Bottlenecks counts, per label, the issues whose duration strictly exceeds
// the population mean. The mean covers every issue with a derived duration;
// if none exists the computation is undefined and ErrNoDurations is
// returned rather than a zero result. Output is sorted by count descending,
// ties keeping encounter order.
func (a *Analyzer) Bottlenecks(issues []domain.Issue) ([]domain.LabelCount, error) {
    sum := 0.0
    n := 0
    for _, is := range issues {
        if is.DurationDays == nil { continue }
        sum += float64(*is.DurationDays)
        n++
    }
    if n == 0 { return nil, ErrNoDurations }
    avg := sum / float64(n)

    counts := map[string]int{}
    var order []string
    for _, is := range issues {
        if is.DurationDays == nil || float64(*is.DurationDays) <= avg { continue }
        for _, l := range is.Labels {
            if _, seen := counts[l]; !seen { order = append(order, l) }
            counts[l]++
        }
    }
    a.log.Debug().Float64("avg_days", avg).Int("labels", len(order)).Msg("bottleneck threshold computed")
    out := make([]domain.LabelCount, 0, len(order))
    for _, l := range order { out = append(out, domain.LabelCount{Label: l, Count: counts[l]}) }
    sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
    return out, nil
}

func hasLabel(is domain.Issue, label string) bool {
    for _, l := range is.Labels {
        if l == label { return true }
    }
    return false
}

// "2006-01" keys sort chronologically as plain strings.
func sortMonths(m map[string]int) []domain.MonthCount {
    keys := make([]string, 0, len(m))
    for k := range m { keys = append(keys, k) }
    sort.Strings(keys)
    out := make([]domain.MonthCount, 0, len(keys))
    for _, k := range keys { out = append(out, domain.MonthCount{Month: k, Count: m[k]}) }
    return out
}
