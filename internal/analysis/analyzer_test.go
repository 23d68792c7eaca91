package analysis

import (
    "testing"
    "time"

    "github.com/HamedShams/issue-pulse/internal/domain"
    "github.com/rs/zerolog"
)

func ts(s string) *time.Time {
    t, err := time.Parse(time.RFC3339, s)
    if err != nil { panic(err) }
    return &t
}

func withDuration(days int, labels ...string) domain.Issue {
    d := days
    return domain.Issue{Labels: labels, DurationDays: &d}
}

func newAnalyzer(filter string) *Analyzer { return New(filter, zerolog.Nop()) }

func TestDeriveDurations_WholeDaysFloored(t *testing.T) {
    issues := []domain.Issue{
        {Key: "A-1", CreatedAt: ts("2024-01-01T00:00:00Z"), UpdatedAt: ts("2024-01-05T23:00:00Z")},
        {Key: "A-2", CreatedAt: ts("2024-01-01T12:00:00Z"), UpdatedAt: ts("2024-01-02T11:59:00Z")},
    }
    out := newAnalyzer("").DeriveDurations(issues)
    if out[0].DurationDays == nil || *out[0].DurationDays != 4 {
        t.Fatalf("expected 4 days, got %v", out[0].DurationDays)
    }
    // 23h59m is less than a full day
    if out[1].DurationDays == nil || *out[1].DurationDays != 0 {
        t.Fatalf("expected 0 days, got %v", out[1].DurationDays)
    }
}

func TestDeriveDurations_SignedNotClamped(t *testing.T) {
    issues := []domain.Issue{
        {Key: "A-1", CreatedAt: ts("2024-03-10T00:00:00Z"), UpdatedAt: ts("2024-03-07T00:00:00Z")},
    }
    out := newAnalyzer("").DeriveDurations(issues)
    if out[0].DurationDays == nil || *out[0].DurationDays != -3 {
        t.Fatalf("expected -3 days, got %v", out[0].DurationDays)
    }
}

func TestDeriveDurations_MissingTimestampsSkipped(t *testing.T) {
    issues := []domain.Issue{
        {Key: "A-1", CreatedAt: ts("2024-01-01T00:00:00Z")},
        {Key: "A-2", UpdatedAt: ts("2024-01-09T00:00:00Z")},
        {Key: "A-3"},
    }
    out := newAnalyzer("").DeriveDurations(issues)
    for i, is := range out {
        if is.DurationDays != nil { t.Fatalf("issue %d should have no duration, got %d", i, *is.DurationDays) }
    }
}

func TestDeriveDurations_InputUntouched(t *testing.T) {
    issues := []domain.Issue{
        {Key: "A-1", CreatedAt: ts("2024-01-01T00:00:00Z"), UpdatedAt: ts("2024-01-08T00:00:00Z")},
    }
    _ = newAnalyzer("").DeriveDurations(issues)
    if issues[0].DurationDays != nil { t.Fatalf("input slice was mutated") }
}

// Scenario: durations 4 and 10 with labels {bug} and {bug,ui} fan out to
// bug=(4+10)/2 and ui=10.
func TestLabelDurations_MultiLabelFanOut(t *testing.T) {
    issues := []domain.Issue{
        withDuration(4, "bug"),
        withDuration(10, "bug", "ui"),
    }
    stats := newAnalyzer("").LabelDurations(issues)
    if len(stats) != 2 { t.Fatalf("expected 2 labels, got %d: %#v", len(stats), stats) }
    if stats[0].Label != "bug" || stats[0].MeanDays != 7.0 {
        t.Fatalf("expected bug mean 7.0, got %#v", stats[0])
    }
    if stats[1].Label != "ui" || stats[1].MeanDays != 10.0 {
        t.Fatalf("expected ui mean 10.0, got %#v", stats[1])
    }
}

func TestLabelDurations_FilterRestrictsView(t *testing.T) {
    issues := []domain.Issue{
        withDuration(4, "bug"),
        withDuration(10, "bug", "ui"),
    }
    stats := newAnalyzer("ui").LabelDurations(issues)
    // only the second issue qualifies; its bug label still fans out
    if len(stats) != 2 { t.Fatalf("expected 2 labels, got %#v", stats) }
    for _, s := range stats {
        if s.MeanDays != 10.0 { t.Fatalf("expected mean 10.0 for %s, got %f", s.Label, s.MeanDays) }
    }
    stats = newAnalyzer("backend").LabelDurations(issues)
    if len(stats) != 0 { t.Fatalf("expected empty output for absent filter label, got %#v", stats) }
}

func TestLabelDurations_MissingDurationExcluded(t *testing.T) {
    issues := []domain.Issue{
        withDuration(6, "bug"),
        {Labels: []string{"bug", "docs"}}, // no duration
    }
    stats := newAnalyzer("").LabelDurations(issues)
    if len(stats) != 1 { t.Fatalf("expected only bug, got %#v", stats) }
    if stats[0].Label != "bug" || stats[0].MeanDays != 6.0 {
        t.Fatalf("docs must not appear and bug mean must ignore the missing duration: %#v", stats)
    }
}

func TestLabelDurations_NoLabelsNoOutput(t *testing.T) {
    stats := newAnalyzer("").LabelDurations([]domain.Issue{withDuration(3)})
    if len(stats) != 0 { t.Fatalf("expected empty output, got %#v", stats) }
}

func TestMonthlyTrends_CountsAndOrder(t *testing.T) {
    issues := []domain.Issue{
        {CreatedAt: ts("2024-01-03T10:00:00Z"), UpdatedAt: ts("2024-02-01T10:00:00Z")},
        {CreatedAt: ts("2024-01-20T10:00:00Z"), UpdatedAt: ts("2024-02-15T10:00:00Z")},
        {CreatedAt: ts("2024-01-31T10:00:00Z"), UpdatedAt: ts("2024-02-28T10:00:00Z")},
    }
    created, closed := newAnalyzer("").MonthlyTrends(issues)
    if len(created) != 1 || created[0].Month != "2024-01" || created[0].Count != 3 {
        t.Fatalf("expected created {2024-01: 3}, got %#v", created)
    }
    if len(closed) != 1 || closed[0].Month != "2024-02" || closed[0].Count != 3 {
        t.Fatalf("expected closed {2024-02: 3}, got %#v", closed)
    }
}

func TestMonthlyTrends_PartialTimestampsAndSort(t *testing.T) {
    issues := []domain.Issue{
        {CreatedAt: ts("2024-03-01T00:00:00Z")},
        {UpdatedAt: ts("2023-12-05T00:00:00Z")},
        {CreatedAt: ts("2023-11-01T00:00:00Z"), UpdatedAt: ts("2024-01-02T00:00:00Z")},
    }
    created, closed := newAnalyzer("").MonthlyTrends(issues)
    if len(created) != 2 || created[0].Month != "2023-11" || created[1].Month != "2024-03" {
        t.Fatalf("created series out of order or wrong: %#v", created)
    }
    if len(closed) != 2 || closed[0].Month != "2023-12" || closed[1].Month != "2024-01" {
        t.Fatalf("closed series out of order or wrong: %#v", closed)
    }
}

// Scenario: durations [2,4,6,20], labels [A,A,B,B] -> avg 8.0, only the
// 20-day issue exceeds it.
func TestBottlenecks_MeanAndStrictThreshold(t *testing.T) {
    issues := []domain.Issue{
        withDuration(2, "A"),
        withDuration(4, "A"),
        withDuration(6, "B"),
        withDuration(20, "B"),
    }
    counts, err := newAnalyzer("").Bottlenecks(issues)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(counts) != 1 || counts[0].Label != "B" || counts[0].Count != 1 {
        t.Fatalf("expected {B: 1}, got %#v", counts)
    }
}

func TestBottlenecks_AtMeanNotCounted(t *testing.T) {
    issues := []domain.Issue{
        withDuration(5, "A"),
        withDuration(5, "B"),
    }
    counts, err := newAnalyzer("").Bottlenecks(issues)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(counts) != 0 { t.Fatalf("durations equal to the mean must not count: %#v", counts) }
}

func TestBottlenecks_MeanIgnoresMissingDurations(t *testing.T) {
    // with the missing-duration issue excluded, avg = 6 and only the 10-day
    // issue exceeds it; counting it against len(issues) would give avg 4.5
    // and wrongly include the 6-day issue
    issues := []domain.Issue{
        withDuration(2, "A"),
        withDuration(6, "A"),
        withDuration(10, "B"),
        {Labels: []string{"B"}},
    }
    counts, err := newAnalyzer("").Bottlenecks(issues)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(counts) != 1 || counts[0].Label != "B" || counts[0].Count != 1 {
        t.Fatalf("expected {B: 1}, got %#v", counts)
    }
}

func TestBottlenecks_MultiLabelCountsOncePerLabel(t *testing.T) {
    issues := []domain.Issue{
        withDuration(1, "A"),
        withDuration(1, "B"),
        withDuration(30, "A", "B"),
        withDuration(40, "B"),
    }
    counts, err := newAnalyzer("").Bottlenecks(issues)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(counts) != 2 { t.Fatalf("expected 2 labels, got %#v", counts) }
    if counts[0].Label != "B" || counts[0].Count != 2 {
        t.Fatalf("expected B first with count 2, got %#v", counts)
    }
    if counts[1].Label != "A" || counts[1].Count != 1 {
        t.Fatalf("expected A with count 1, got %#v", counts)
    }
}

func TestBottlenecks_TiesKeepEncounterOrder(t *testing.T) {
    issues := []domain.Issue{
        withDuration(1),
        withDuration(20, "zeta", "alpha"),
    }
    counts, err := newAnalyzer("").Bottlenecks(issues)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(counts) != 2 || counts[0].Label != "zeta" || counts[1].Label != "alpha" {
        t.Fatalf("tie must keep encounter order, got %#v", counts)
    }
}

func TestBottlenecks_NoDurationsIsFatal(t *testing.T) {
    issues := []domain.Issue{
        {Labels: []string{"A"}},
        {Labels: []string{"B"}},
    }
    if _, err := newAnalyzer("").Bottlenecks(issues); err != ErrNoDurations {
        t.Fatalf("expected ErrNoDurations, got %v", err)
    }
}

func TestPipeline_Idempotent(t *testing.T) {
    raw := []domain.Issue{
        {Key: "P-1", CreatedAt: ts("2024-01-01T00:00:00Z"), UpdatedAt: ts("2024-01-05T00:00:00Z"), Labels: []string{"bug"}},
        {Key: "P-2", CreatedAt: ts("2024-01-02T00:00:00Z"), UpdatedAt: ts("2024-01-12T00:00:00Z"), Labels: []string{"bug", "ui"}},
        {Key: "P-3", CreatedAt: ts("2024-02-01T00:00:00Z")},
    }
    a := newAnalyzer("")
    run := func() ([]domain.LabelStat, []domain.MonthCount, []domain.MonthCount, []domain.LabelCount) {
        derived := a.DeriveDurations(raw)
        stats := a.LabelDurations(derived)
        created, closed := a.MonthlyTrends(derived)
        counts, err := a.Bottlenecks(derived)
        if err != nil { t.Fatalf("unexpected error: %v", err) }
        return stats, created, closed, counts
    }
    s1, cr1, cl1, b1 := run()
    s2, cr2, cl2, b2 := run()
    if len(s1) != len(s2) || len(cr1) != len(cr2) || len(cl1) != len(cl2) || len(b1) != len(b2) {
        t.Fatalf("second run produced different shapes")
    }
    for i := range s1 {
        if s1[i] != s2[i] { t.Fatalf("label stats differ at %d: %#v vs %#v", i, s1[i], s2[i]) }
    }
    for i := range cr1 {
        if cr1[i] != cr2[i] { t.Fatalf("created series differ at %d", i) }
    }
    for i := range cl1 {
        if cl1[i] != cl2[i] { t.Fatalf("closed series differ at %d", i) }
    }
    for i := range b1 {
        if b1[i] != b2[i] { t.Fatalf("bottleneck counts differ at %d", i) }
    }
}
