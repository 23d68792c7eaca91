package domain

import "time"

// Issue is one tracked unit of work as delivered by an issue source.
// DurationDays stays nil until the duration pass has run, and remains nil
// for issues missing either timestamp.
type Issue struct {
    ID           int64
    Key          string
    Project      string
    Type         string
    StatusLast   string
    CreatedAt    *time.Time
    UpdatedAt    *time.Time
    Labels       []string
    DurationDays *int
}

// LabelStat is the mean open duration for one label, in days.
type LabelStat struct {
    Label    string
    MeanDays float64
}

// MonthCount is a "YYYY-MM" bucket with its occurrence count.
type MonthCount struct {
    Month string
    Count int
}

// LabelCount counts bottleneck issues per label.
type LabelCount struct {
    Label string
    Count int
}

type AnalysisRun struct {
    ID             int64
    StartedAt      time.Time
    FinishedAt     *time.Time
    Source         string
    IssuesScanned  int
    ChartsRendered int
    Success        bool
    Error          string
}
