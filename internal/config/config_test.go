package config

import (
    "testing"
    "time"
)

func TestParseHelpers(t *testing.T) {
    if got := parseStrings(" PULSE, OPS ,,"); len(got) != 2 || got[0] != "PULSE" || got[1] != "OPS" {
        t.Fatalf("parseStrings wrong: %#v", got)
    }
    if got := parseInt64s("77,-12, x ,9"); len(got) != 3 || got[0] != 77 || got[1] != -12 || got[2] != 9 {
        t.Fatalf("parseInt64s wrong: %#v", got)
    }
    if got := dur("NOT_SET_ANYWHERE", 5*time.Second); got != 5*time.Second {
        t.Fatalf("dur default wrong: %v", got)
    }
}

func TestLoad_UnknownSourceFallsBack(t *testing.T) {
    t.Setenv("ISSUE_SOURCE", "csv")
    t.Setenv("LABEL_FILTER", "  ui  ")
    cfg := Load()
    if cfg.IssueSource != "jira" { t.Fatalf("unknown source must fall back to jira, got %q", cfg.IssueSource) }
    if cfg.LabelFilter != "ui" { t.Fatalf("label filter must be trimmed, got %q", cfg.LabelFilter) }
}
